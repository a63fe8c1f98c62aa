// Package stores provides Redis-backed, short-lived record stores for the
// one-time code challenges issued to an email address or phone number.
//
// # Design
//
// Each challenge is a versioned, binary-encoded record stored with a TTL.
// Issuing a code overwrites any outstanding challenge for the same
// identifier. Consume runs one Lua script that validates expiry, channel and
// attempt count, then deletes the record on success. Secret comparisons are
// repeated in Go with constant-time compare.
//
// # What this package must NOT do
//
//   - Import authflow or any sibling internal package.
//   - Log or expose plaintext codes.
//   - Generate codes or enforce rate limits.
package stores
