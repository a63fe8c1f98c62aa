// Package middleware exposes HTTP guards for routes served after the flow
// reaches the authenticated state.
//
// # Guards
//
//   - [RequireToken] verifies the session JWT signature and claims only.
//   - [RequireSession] also asks the identity service whether the session
//     is still live and loads the user.
//
// Each guard reads the Authorization header and injects what it validated
// into the request context.
//
// # What this package must NOT do
//
//   - Issue or refresh tokens.
//   - Access Redis directly. Session lookups go through [SessionVerifier].
package middleware
