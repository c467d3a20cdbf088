// Package flow drives the two token acquisition state machines: the browser
// based authorization code flow and the polling device authorization flow.
package flow
