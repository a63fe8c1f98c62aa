// Package limiters provides the OTP rate limiters built on top of the
// internal/rate fixed-window primitive.
//
// # Limiters
//
//   - [OTPLimiter]: per-identifier budgets for code issuance and verification.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import authflow or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting. The identity provider decides consequences.
package limiters
