// Package identity is a Redis-backed identity service implementing
// [live.IdentityProvider]. It stores users, issues one-time codes through a
// [Sender], hashes passwords with argon2id and hands out signed session
// tokens backed by a server-side session record.
//
// Expected failures (wrong password, bad code, rate limit, missing session)
// are returned as *authflow.BackendError. Redis failures are returned as
// wrapped errors and surface as transport failures in the flow.
package identity
