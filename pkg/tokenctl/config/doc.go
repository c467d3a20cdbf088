// Package config loads the tokenctl configuration file and resolves it into
// the client identity and server endpoints the flows run against.
package config
