// Package rate provides the Redis fixed-window counter used by every
// authflow limiter, plus the password login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - afl: login per identifier
//   - afos: OTP issuance per identifier (internal/limiters)
//   - afov: OTP verification per identifier (internal/limiters)
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the authflow module.
package rate
