// Package cli implements the authflow command: an interactive walkthrough
// of the sign-in flow, a YAML scenario runner and the language preference.
package cli
