package live

import (
	"context"

	"github.com/rentoapp/authflow"
)

// SignUpRequest creates a fresh identity with a password.
type SignUpRequest struct {
	Identifier authflow.Identifier
	Password   string
	FirstName  string
	LastName   string
}

// UserUpdate changes credentials or metadata of the session's identity.
// Empty fields are left unchanged.
type UserUpdate struct {
	Password  string
	FirstName string
	LastName  string
}

// IdentityProvider is the hosted identity service. Expected failures are
// returned as *authflow.BackendError; any other error is a transport failure.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, id authflow.Identifier, password string) (*authflow.User, *authflow.Session, error)
	SignInWithOTP(ctx context.Context, id authflow.Identifier) error
	VerifyOTP(ctx context.Context, id authflow.Identifier, code string) (*authflow.User, *authflow.Session, error)
	SignUp(ctx context.Context, req SignUpRequest) (*authflow.User, *authflow.Session, error)
	UpdateUser(ctx context.Context, accessToken string, update UserUpdate) (*authflow.User, error)
	GetUser(ctx context.Context, accessToken string) (*authflow.User, error)
	SignOut(ctx context.Context, accessToken string) error
}

// ProfileStore holds profile records keyed by identity id.
type ProfileStore interface {
	// CheckUserExists is the privileged existence check.
	CheckUserExists(ctx context.Context, id authflow.Identifier) (bool, error)
	// FindIDByIdentifier is the direct-read fallback. It returns
	// authflow.ErrProfileNotFound when nothing matches.
	FindIDByIdentifier(ctx context.Context, id authflow.Identifier) (string, error)
	// GetProfile returns authflow.ErrProfileNotFound when nothing matches.
	GetProfile(ctx context.Context, userID string) (authflow.Profile, error)
	// InsertProfile returns authflow.ErrProfileExists on a duplicate id.
	InsertProfile(ctx context.Context, p authflow.Profile) error
}
