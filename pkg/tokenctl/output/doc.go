// Package output renders tokens and device flow prompts for the terminal.
package output
