// Package callback runs the single-shot loopback HTTP listener that receives
// the authorization code redirect of the browser login flow.
package callback
