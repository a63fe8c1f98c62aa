package authflow

import "context"

// Backend is the auth backend adapter contract consumed by [Flow].
//
// Expected domain failures (wrong credentials, invalid or expired code,
// duplicate account) are reported as an [AuthResult] with Success false and a
// nil error. A non-nil error always means an unexpected transport failure;
// the flow converts it into a generic message.
//
// Exactly one implementation is chosen at startup. Call sites never branch
// on which one is active.
type Backend interface {
	// CheckUserExists reports whether an account exists for id. It fails
	// closed: any backend error yields false after one fallback read.
	CheckUserExists(ctx context.Context, id Identifier) bool

	// SendOTP issues a fresh one-time code to the identifier's channel.
	// Repeated calls re-issue the code.
	SendOTP(ctx context.Context, id Identifier) (AuthResult, error)

	// VerifyOTP validates code and on success establishes a session bound
	// to id. The session is the precondition for Register and ResetPassword.
	VerifyOTP(ctx context.Context, id Identifier, code string) (AuthResult, error)

	// Login authenticates with a long-term password. When id.Kind is
	// KindUnknown the kind is derived with ClassifyIdentifier. On success
	// the profile record is attached to the result user.
	Login(ctx context.Context, id Identifier, password string) (AuthResult, error)

	// Register sets credentials and metadata on the verified identity, or
	// signs up a fresh one when no session exists, then creates the
	// profile record at most once.
	Register(ctx context.Context, draft RegistrationDraft) (AuthResult, error)

	// ResetPassword sets a new password on the session's identity.
	ResetPassword(ctx context.Context, password string) (AuthResult, error)
}

// SessionChecker is implemented by backends that can report an existing
// session at startup.
type SessionChecker interface {
	CurrentSession(ctx context.Context) (*Session, bool, error)
	HasProfile(ctx context.Context, userID string) (bool, error)
}

// SignOuter is implemented by backends that hold a session which can be
// discarded.
type SignOuter interface {
	SignOut(ctx context.Context) error
}
