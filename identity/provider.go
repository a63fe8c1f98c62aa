package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/internal"
	"github.com/rentoapp/authflow/internal/limiters"
	"github.com/rentoapp/authflow/internal/rate"
	"github.com/rentoapp/authflow/internal/stores"
	"github.com/rentoapp/authflow/jwt"
	"github.com/rentoapp/authflow/live"
	"github.com/rentoapp/authflow/password"
	"github.com/rentoapp/authflow/session"
)

var _ live.IdentityProvider = (*Provider)(nil)

// Provider is the Redis identity service. It is safe for concurrent use.
type Provider struct {
	cfg Config

	users        *userStore
	otps         *stores.OTPStore
	otpLimiter   *limiters.OTPLimiter
	loginLimiter *rate.Limiter
	hasher       *password.Argon2
	tokens       *jwt.Manager
	sessions     *session.Store

	sender Sender
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a [Provider].
type Option func(*Provider)

// WithSender sets where codes are delivered. The default logs them.
func WithSender(s Sender) Option {
	return func(p *Provider) {
		if s != nil {
			p.sender = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// New validates cfg and returns a provider over rdb.
func New(rdb redis.UniversalClient, cfg Config, opts ...Option) (*Provider, error) {
	if rdb == nil {
		return nil, fmt.Errorf("%w: redis client is required", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	hasher, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	tokens, err := jwt.NewManager(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	p := &Provider{
		cfg:   cfg,
		users: &userStore{redis: rdb, prefix: cfg.KeyPrefix},
		otps:  stores.NewOTPStore(rdb, cfg.KeyPrefix+":otp"),
		otpLimiter: limiters.NewOTPLimiter(rdb, limiters.OTPConfig{
			MaxSends:     cfg.MaxOTPSends,
			SendWindow:   cfg.OTPSendWindow,
			MaxVerifies:  cfg.MaxOTPVerifies,
			VerifyWindow: cfg.OTPVerifyWindow,
		}),
		loginLimiter: rate.New(rdb, rate.Config{
			MaxLoginAttempts:      cfg.MaxLoginAttempts,
			LoginCooldownDuration: cfg.LoginCooldown,
		}),
		hasher:   hasher,
		tokens:   tokens,
		sessions: session.NewStore(rdb, cfg.KeyPrefix+":sess"),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("identity")
	if p.sender == nil {
		p.sender = LogSender{Logger: p.logger}
	}
	return p, nil
}

func channelOf(kind authflow.IdentifierKind) stores.Channel {
	if kind == authflow.KindPhone {
		return stores.ChannelPhone
	}
	return stores.ChannelEmail
}

func limiterKey(id authflow.Identifier) string {
	return string(id.Kind) + ":" + stores.NormalizeIdentifier(id.Value)
}

// SignInWithPassword checks a password. Failed attempts count towards the
// login limiter; a success resets it.
func (p *Provider) SignInWithPassword(ctx context.Context, id authflow.Identifier, pw string) (*authflow.User, *authflow.Session, error) {
	id = id.Resolved()
	key := limiterKey(id)

	if err := p.loginLimiter.CheckLogin(ctx, key); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return nil, nil, errRateLimited
		}
		return nil, nil, err
	}

	rec, err := p.users.findByIdentifier(ctx, id)
	if err != nil && !errors.Is(err, errUserNotFound) {
		return nil, nil, err
	}

	ok := false
	if rec != nil && rec.PasswordHash != "" {
		ok, err = p.hasher.Verify(pw, rec.PasswordHash)
		if err != nil {
			p.logger.Warn("stored password hash unreadable", zap.String("user_id", rec.ID), zap.Error(err))
			ok = false
		}
	}
	if !ok {
		if err := p.loginLimiter.IncrementLogin(ctx, key); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			p.logger.Warn("login limiter increment failed", zap.Error(err))
		}
		return nil, nil, errInvalidCredentials
	}

	if err := p.loginLimiter.ResetLogin(ctx, key); err != nil {
		p.logger.Warn("login limiter reset failed", zap.Error(err))
	}
	p.maybeRehash(ctx, rec, pw)

	sess, err := p.openSession(ctx, rec.ID, id.Kind)
	if err != nil {
		return nil, nil, err
	}
	return rec.user(), sess, nil
}

func (p *Provider) maybeRehash(ctx context.Context, rec *userRecord, pw string) {
	upgrade, err := p.hasher.NeedsUpgrade(rec.PasswordHash)
	if err != nil || !upgrade {
		return
	}
	hash, err := p.hasher.Hash(pw)
	if err != nil {
		return
	}
	if err := p.users.update(ctx, rec.ID, map[string]any{"password_hash": hash}); err != nil {
		p.logger.Warn("password rehash failed", zap.String("user_id", rec.ID), zap.Error(err))
	}
}

// SignInWithOTP issues a code for id, replacing any outstanding one.
func (p *Provider) SignInWithOTP(ctx context.Context, id authflow.Identifier) error {
	id = id.Resolved()

	if err := p.otpLimiter.CheckSend(ctx, limiterKey(id)); err != nil {
		if errors.Is(err, limiters.ErrOTPRateLimited) {
			return errRateLimited
		}
		return err
	}

	var subject string
	userID, err := p.users.lookup(ctx, id)
	switch {
	case err == nil:
		subject = userID
	case !errors.Is(err, errUserNotFound):
		return err
	}

	code, err := internal.NewOTP(p.cfg.OTPDigits)
	if err != nil {
		return err
	}
	record := &stores.OTPRecord{
		Channel:    channelOf(id.Kind),
		Subject:    subject,
		SecretHash: stores.HashCode(id.Value, code),
		ExpiresAt:  p.now().Add(p.cfg.OTPTTL).Unix(),
	}
	if err := p.otps.Save(ctx, id.Value, record, p.cfg.OTPTTL); err != nil {
		return err
	}

	return p.sender.Send(ctx, Delivery{Identifier: id, Code: code, ExpiresIn: p.cfg.OTPTTL})
}

// VerifyOTP consumes the outstanding code. An identifier with no account
// gets a password-less user, completed later through UpdateUser.
func (p *Provider) VerifyOTP(ctx context.Context, id authflow.Identifier, code string) (*authflow.User, *authflow.Session, error) {
	id = id.Resolved()
	key := limiterKey(id)

	if err := p.otpLimiter.CheckVerify(ctx, key); err != nil {
		if errors.Is(err, limiters.ErrOTPRateLimited) {
			return nil, nil, errRateLimited
		}
		return nil, nil, err
	}

	record, err := p.otps.Consume(ctx, channelOf(id.Kind), id.Value, code, p.cfg.OTPMaxAttempts)
	switch {
	case err == nil:
	case errors.Is(err, stores.ErrOTPRedisUnavailable):
		return nil, nil, err
	default:
		p.logger.Debug("otp rejected", zap.Error(err))
		return nil, nil, errInvalidOTP
	}
	if err := p.otpLimiter.ResetVerify(ctx, key); err != nil {
		p.logger.Warn("otp verify limiter reset failed", zap.Error(err))
	}

	var rec *userRecord
	if record.Subject != "" {
		rec, err = p.users.get(ctx, record.Subject)
	} else {
		rec, err = p.findOrCreate(ctx, id)
	}
	if err != nil {
		return nil, nil, err
	}

	sess, err := p.openSession(ctx, rec.ID, id.Kind)
	if err != nil {
		return nil, nil, err
	}
	return rec.user(), sess, nil
}

func (p *Provider) findOrCreate(ctx context.Context, id authflow.Identifier) (*userRecord, error) {
	rec, err := p.users.create(ctx, id, userRecord{}, p.now())
	if errors.Is(err, errUserDuplicate) {
		return p.users.findByIdentifier(ctx, id)
	}
	return rec, err
}

// SignUp creates an identity with a password and opens a session.
func (p *Provider) SignUp(ctx context.Context, req live.SignUpRequest) (*authflow.User, *authflow.Session, error) {
	id := req.Identifier.Resolved()

	hash, err := p.hashPassword(req.Password)
	if err != nil {
		return nil, nil, err
	}
	rec, err := p.users.create(ctx, id, userRecord{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
	}, p.now())
	if err != nil {
		if errors.Is(err, errUserDuplicate) {
			return nil, nil, errUserExists
		}
		return nil, nil, err
	}

	sess, err := p.openSession(ctx, rec.ID, id.Kind)
	if err != nil {
		return nil, nil, err
	}
	return rec.user(), sess, nil
}

func (p *Provider) hashPassword(pw string) (string, error) {
	hash, err := p.hasher.Hash(pw)
	if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
		return "", errWeakPassword
	}
	return hash, err
}

// UpdateUser changes the session owner's password or names.
func (p *Provider) UpdateUser(ctx context.Context, accessToken string, update live.UserUpdate) (*authflow.User, error) {
	rec, err := p.resolve(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if update.Password != "" {
		hash, err := p.hashPassword(update.Password)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = hash
		rec.PasswordHash = hash
	}
	if update.FirstName != "" {
		fields["first_name"] = update.FirstName
		rec.FirstName = update.FirstName
	}
	if update.LastName != "" {
		fields["last_name"] = update.LastName
		rec.LastName = update.LastName
	}
	if err := p.users.update(ctx, rec.ID, fields); err != nil {
		return nil, err
	}

	if update.Password != "" {
		for _, id := range rec.identifiers() {
			if err := p.loginLimiter.ResetLogin(ctx, limiterKey(id)); err != nil {
				p.logger.Warn("login limiter reset failed", zap.Error(err))
			}
		}
	}
	return rec.user(), nil
}

// GetUser returns the session owner.
func (p *Provider) GetUser(ctx context.Context, accessToken string) (*authflow.User, error) {
	rec, err := p.resolve(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return rec.user(), nil
}

// SignOut deletes the server-side session. Unknown tokens are ignored.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := p.tokens.Parse(accessToken)
	if err != nil {
		return nil
	}
	return p.sessions.Delete(ctx, claims.SID)
}

func (p *Provider) openSession(ctx context.Context, userID string, kind authflow.IdentifierKind) (*authflow.Session, error) {
	sid, err := internal.NewToken(16)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := p.tokens.Create(userID, sid, string(kind))
	if err != nil {
		return nil, err
	}

	now := p.now()
	err = p.sessions.Save(ctx, &session.Session{
		SessionID: sid,
		UserID:    userID,
		Channel:   string(kind),
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}, p.tokens.TTL())
	if err != nil {
		return nil, err
	}
	return &authflow.Session{AccessToken: token, UserID: userID, ExpiresAt: expiresAt}, nil
}

// resolve maps a token to its live user record.
func (p *Provider) resolve(ctx context.Context, accessToken string) (*userRecord, error) {
	claims, err := p.tokens.Parse(accessToken)
	if err != nil {
		return nil, errSessionMissing
	}
	sess, err := p.sessions.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, errSessionMissing
		}
		return nil, err
	}
	if sess.UserID != claims.UID {
		return nil, errSessionMissing
	}

	rec, err := p.users.get(ctx, sess.UserID)
	if errors.Is(err, errUserNotFound) {
		return nil, errSessionMissing
	}
	return rec, err
}

func (u *userRecord) identifiers() []authflow.Identifier {
	var ids []authflow.Identifier
	if u.Email != "" {
		ids = append(ids, authflow.Identifier{Value: u.Email, Kind: authflow.KindEmail})
	}
	if u.Phone != "" {
		ids = append(ids, authflow.Identifier{Value: u.Phone, Kind: authflow.KindPhone})
	}
	return ids
}
