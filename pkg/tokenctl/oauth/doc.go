// Package oauth talks to the authorization server: it requests device
// authorizations, exchanges grants at the token endpoint and classifies the
// server's responses into the error vocabulary used by the login flows.
package oauth
