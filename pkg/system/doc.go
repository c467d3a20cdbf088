// Package system provides the zap logger constructors shared by tokenctl
// commands and tests.
package system
