// Package cmd implements the cobra command tree for the tokenctl CLI: the
// browser and device login commands, version and shell completion.
package cmd
