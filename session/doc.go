// Package session persists identity-provider sessions in Redis using a
// compact binary record.
//
// # Binary encoding
//
// Records carry a leading version byte. Decode accepts every version this
// package has written and rejects anything else.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model. It does not parse
// tokens or decide whether a caller is authenticated; the identity package
// does that.
package session
