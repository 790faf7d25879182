// Package protocol defines the JSON frames exchanged between chat clients and
// the relay, the stored message model, and the helpers that interpret frame
// content: control commands, display-name sanitizing and data URI inspection.
package protocol
