// Package mock implements a deterministic [authflow.Backend] with simulated
// network latency. It holds no state between calls.
package mock

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rentoapp/authflow"
)

const (
	// ValidOTP is the only code VerifyOTP accepts.
	ValidOTP = "1234"
	// ValidPassword is the only password Login accepts.
	ValidPassword = "password"
	// UserID is the id returned for every authenticated mock user.
	UserID = "mock-id"

	existsMarker = "exist"
)

// Delays are the simulated latencies per operation.
type Delays struct {
	CheckUserExists time.Duration
	SendOTP         time.Duration
	VerifyOTP       time.Duration
	Login           time.Duration
	Register        time.Duration
	ResetPassword   time.Duration
}

// DefaultDelays returns latencies close to a real mobile round trip.
func DefaultDelays() Delays {
	return Delays{
		CheckUserExists: 800 * time.Millisecond,
		SendOTP:         1000 * time.Millisecond,
		VerifyOTP:       1000 * time.Millisecond,
		Login:           1000 * time.Millisecond,
		Register:        1500 * time.Millisecond,
		ResetPassword:   1000 * time.Millisecond,
	}
}

// NoDelays returns zero latencies, for tests and scripted runs.
func NoDelays() Delays {
	return Delays{}
}

// Backend is the mock adapter.
type Backend struct {
	delays Delays
	logger *zap.Logger
}

var _ authflow.Backend = (*Backend)(nil)

// New returns a mock backend. A nil logger disables logging.
func New(delays Delays, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		delays: delays,
		logger: logger.Named("mock"),
	}
}

func (b *Backend) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckUserExists reports true when the identifier contains "exist". A
// cancelled wait reports false.
func (b *Backend) CheckUserExists(ctx context.Context, id authflow.Identifier) bool {
	b.logger.Debug("mock api: checking if user exists", zap.String("kind", string(id.Kind)))
	if err := b.wait(ctx, b.delays.CheckUserExists); err != nil {
		return false
	}
	return strings.Contains(id.Value, existsMarker)
}

// SendOTP always succeeds.
func (b *Backend) SendOTP(ctx context.Context, id authflow.Identifier) (authflow.AuthResult, error) {
	b.logger.Debug("mock api: sending otp", zap.String("kind", string(id.Kind)))
	if err := b.wait(ctx, b.delays.SendOTP); err != nil {
		return authflow.AuthResult{}, err
	}
	return authflow.AuthResult{Success: true}, nil
}

// VerifyOTP accepts only [ValidOTP].
func (b *Backend) VerifyOTP(ctx context.Context, id authflow.Identifier, code string) (authflow.AuthResult, error) {
	b.logger.Debug("mock api: verifying otp", zap.String("kind", string(id.Kind)))
	if err := b.wait(ctx, b.delays.VerifyOTP); err != nil {
		return authflow.AuthResult{}, err
	}
	if code != ValidOTP {
		return authflow.Failure(authflow.MsgInvalidOTP), nil
	}
	return authflow.AuthResult{Success: true, User: &authflow.User{ID: UserID}}, nil
}

// Login accepts only [ValidPassword] and returns a tenant.
func (b *Backend) Login(ctx context.Context, id authflow.Identifier, password string) (authflow.AuthResult, error) {
	b.logger.Debug("mock api: login", zap.String("kind", string(id.Resolved().Kind)))
	if err := b.wait(ctx, b.delays.Login); err != nil {
		return authflow.AuthResult{}, err
	}
	if password != ValidPassword {
		return authflow.Failure(authflow.MsgInvalidCredentials), nil
	}
	return authflow.AuthResult{
		Success: true,
		User:    &authflow.User{ID: UserID, UserType: authflow.UserTypeTenant},
	}, nil
}

// Register always succeeds.
func (b *Backend) Register(ctx context.Context, draft authflow.RegistrationDraft) (authflow.AuthResult, error) {
	b.logger.Debug("mock api: registering user")
	if err := b.wait(ctx, b.delays.Register); err != nil {
		return authflow.AuthResult{}, err
	}
	return authflow.AuthResult{Success: true}, nil
}

// ResetPassword always succeeds.
func (b *Backend) ResetPassword(ctx context.Context, password string) (authflow.AuthResult, error) {
	b.logger.Debug("mock api: resetting password")
	if err := b.wait(ctx, b.delays.ResetPassword); err != nil {
		return authflow.AuthResult{}, err
	}
	return authflow.AuthResult{Success: true}, nil
}
