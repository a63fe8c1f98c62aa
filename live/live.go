// Package live implements [authflow.Backend] on top of a hosted identity
// provider and a profile store.
package live

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rentoapp/authflow"
)

// Backend is the live adapter. It holds at most one session at a time.
type Backend struct {
	idp      IdentityProvider
	profiles ProfileStore
	session  *SessionHolder
	logger   *zap.Logger
	now      func() time.Time

	profileFailures atomic.Uint64
}

var (
	_ authflow.Backend        = (*Backend)(nil)
	_ authflow.SessionChecker = (*Backend)(nil)
	_ authflow.SignOuter      = (*Backend)(nil)
)

// Option configures a [Backend].
type Option func(*Backend)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSessionHolder shares a session holder with other components.
func WithSessionHolder(h *SessionHolder) Option {
	return func(b *Backend) {
		if h != nil {
			b.session = h
		}
	}
}

// New returns a live backend.
func New(idp IdentityProvider, profiles ProfileStore, opts ...Option) *Backend {
	b := &Backend{
		idp:      idp,
		profiles: profiles,
		session:  &SessionHolder{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.Named("live")
	return b
}

// Session exposes the holder, mainly for callers that persist sessions.
func (b *Backend) Session() *SessionHolder {
	return b.session
}

// ProfileInsertFailures returns how many registrations left no profile record.
func (b *Backend) ProfileInsertFailures() uint64 {
	return b.profileFailures.Load()
}

// result maps a collaborator error: domain failures become an unsuccessful
// result, everything else is returned as a transport error.
func result(err error) (authflow.AuthResult, error) {
	if msg, ok := authflow.DomainMessage(err); ok {
		return authflow.Failure(msg), nil
	}
	return authflow.AuthResult{}, err
}

// CheckUserExists asks the profile store, then falls back to a direct read.
// Any error on the fallback yields false.
func (b *Backend) CheckUserExists(ctx context.Context, id authflow.Identifier) bool {
	id = id.Resolved()

	exists, err := b.profiles.CheckUserExists(ctx, id)
	if err == nil {
		return exists
	}
	b.logger.Warn("check_user_exists rpc failed, using direct read", zap.Error(err))

	userID, err := b.profiles.FindIDByIdentifier(ctx, id)
	if err != nil {
		if !errors.Is(err, authflow.ErrProfileNotFound) {
			b.logger.Warn("profile fallback read failed", zap.Error(err))
		}
		return false
	}
	return userID != ""
}

// SendOTP issues a code through the identity provider.
func (b *Backend) SendOTP(ctx context.Context, id authflow.Identifier) (authflow.AuthResult, error) {
	if err := b.idp.SignInWithOTP(ctx, id.Resolved()); err != nil {
		return result(err)
	}
	return authflow.AuthResult{Success: true}, nil
}

// VerifyOTP validates code and holds the resulting session.
func (b *Backend) VerifyOTP(ctx context.Context, id authflow.Identifier, code string) (authflow.AuthResult, error) {
	user, sess, err := b.idp.VerifyOTP(ctx, id.Resolved(), code)
	if err != nil {
		return result(err)
	}
	b.session.Set(sess)

	res := authflow.AuthResult{Success: true, Session: sess, User: &authflow.User{}}
	if user != nil {
		res.User.ID = user.ID
	}
	return res, nil
}

// Login signs in with a password and attaches the profile record when one
// exists. A failed profile read does not fail the login.
func (b *Backend) Login(ctx context.Context, id authflow.Identifier, password string) (authflow.AuthResult, error) {
	user, sess, err := b.idp.SignInWithPassword(ctx, id.Resolved(), password)
	if err != nil {
		return result(err)
	}
	b.session.Set(sess)

	res := authflow.AuthResult{Success: true, Session: sess, User: user}
	if user == nil {
		return res, nil
	}

	profile, err := b.profiles.GetProfile(ctx, user.ID)
	switch {
	case err == nil:
		merged := profile.User()
		if merged.Email == "" {
			merged.Email = user.Email
		}
		if merged.Phone == "" {
			merged.Phone = user.Phone
		}
		res.User = merged
	case errors.Is(err, authflow.ErrProfileNotFound):
	default:
		b.logger.Warn("profile read after login failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
	return res, nil
}

// Register completes the identity created by OTP verification, or signs up
// a new one when no session is held, then creates the profile record at
// most once. A profile write failure is reported as ProfileIncomplete.
func (b *Backend) Register(ctx context.Context, draft authflow.RegistrationDraft) (authflow.AuthResult, error) {
	var userID string

	if sess := b.session.Get(); sess != nil {
		user, err := b.idp.UpdateUser(ctx, sess.AccessToken, UserUpdate{
			Password:  draft.Password,
			FirstName: draft.FirstName,
			LastName:  draft.LastName,
		})
		if err != nil {
			return result(err)
		}
		if user != nil {
			userID = user.ID
		}
	} else {
		user, sess, err := b.idp.SignUp(ctx, SignUpRequest{
			Identifier: draft.Identifier.Resolved(),
			Password:   draft.Password,
			FirstName:  draft.FirstName,
			LastName:   draft.LastName,
		})
		if err != nil {
			return result(err)
		}
		b.session.Set(sess)
		if user != nil {
			userID = user.ID
		}
	}

	res := authflow.AuthResult{Success: true, User: &authflow.User{ID: userID}}
	if userID == "" {
		return res, nil
	}

	if !b.ensureProfile(ctx, userID, draft) {
		b.profileFailures.Add(1)
		res.ProfileIncomplete = true
	}
	return res, nil
}

// ensureProfile reports whether a profile record for userID exists after
// the call.
func (b *Backend) ensureProfile(ctx context.Context, userID string, draft authflow.RegistrationDraft) bool {
	_, err := b.profiles.GetProfile(ctx, userID)
	if err == nil {
		return true
	}
	if !errors.Is(err, authflow.ErrProfileNotFound) {
		b.logger.Warn("profile lookup before insert failed", zap.String("user_id", userID), zap.Error(err))
	}

	id := draft.Identifier.Resolved()
	p := authflow.Profile{
		ID:        userID,
		FirstName: draft.FirstName,
		LastName:  draft.LastName,
		UserType:  draft.UserType,
		CreatedAt: b.now().UTC(),
	}
	if !p.UserType.Valid() {
		p.UserType = authflow.UserTypeTenant
	}
	switch id.Kind {
	case authflow.KindEmail:
		p.Email = id.Value
	case authflow.KindPhone:
		p.Phone = id.Value
	}

	err = b.profiles.InsertProfile(ctx, p)
	switch {
	case err == nil:
		return true
	case errors.Is(err, authflow.ErrProfileExists):
		// The conflict may be on email or phone rather than on the id, so
		// only a record under userID counts.
		if _, err := b.profiles.GetProfile(ctx, userID); err == nil {
			b.logger.Info("profile already present", zap.String("user_id", userID))
			return true
		}
		b.logger.Error("profile insert conflicted with another user's record",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return false
	default:
		b.logger.Error("profile creation failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
}

// ResetPassword sets a new password on the held session's identity.
func (b *Backend) ResetPassword(ctx context.Context, password string) (authflow.AuthResult, error) {
	sess := b.session.Get()
	if sess == nil {
		return authflow.Failure(authflow.MsgSessionMissing), nil
	}
	if _, err := b.idp.UpdateUser(ctx, sess.AccessToken, UserUpdate{Password: password}); err != nil {
		return result(err)
	}
	return authflow.AuthResult{Success: true}, nil
}

// CurrentSession returns the held session when the identity provider still
// accepts it.
func (b *Backend) CurrentSession(ctx context.Context) (*authflow.Session, bool, error) {
	sess := b.session.Get()
	if sess == nil {
		return nil, false, nil
	}
	if sess.Expired(b.now()) {
		b.session.Clear()
		return nil, false, nil
	}

	user, err := b.idp.GetUser(ctx, sess.AccessToken)
	if err != nil {
		if authflow.IsDomainError(err) {
			b.session.Clear()
			return nil, false, nil
		}
		return nil, false, err
	}
	if user != nil && sess.UserID == "" {
		sess.UserID = user.ID
	}
	return sess, true, nil
}

// HasProfile reports whether a profile record exists for userID.
func (b *Backend) HasProfile(ctx context.Context, userID string) (bool, error) {
	_, err := b.profiles.GetProfile(ctx, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, authflow.ErrProfileNotFound) {
		return false, nil
	}
	return false, err
}

// SignOut revokes the held session. The local handle is dropped even when
// revocation fails.
func (b *Backend) SignOut(ctx context.Context) error {
	sess := b.session.Get()
	b.session.Clear()
	if sess == nil {
		return nil
	}
	return b.idp.SignOut(ctx, sess.AccessToken)
}
