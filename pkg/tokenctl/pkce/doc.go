// Package pkce generates RFC 7636 code verifier/challenge pairs and the opaque
// state nonces used to correlate authorization redirects.
package pkce
