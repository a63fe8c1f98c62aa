// Package internal holds helpers private to authflow: random identifiers and
// one-time codes.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - limiters: OTP send and verify limits
//   - rate: fixed-window Redis rate limit primitives
//   - stores: Redis OTP challenge store
package internal
