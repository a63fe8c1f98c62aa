package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is a fixed-window counter with a per-window budget.
type Window struct {
	redis       redis.UniversalClient
	maxAttempts int
	ttl         time.Duration
}

// NewWindow returns a window allowing maxAttempts hits per ttl.
func NewWindow(redisClient redis.UniversalClient, maxAttempts int, ttl time.Duration) *Window {
	return &Window{
		redis:       redisClient,
		maxAttempts: maxAttempts,
		ttl:         ttl,
	}
}

// Hit records one attempt on key and reports ErrRateLimited once the budget
// is exceeded.
func (w *Window) Hit(ctx context.Context, key string) error {
	count, err := w.incrementWithTTL(ctx, key)
	if err != nil {
		return err
	}
	if count > int64(w.maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Check reports ErrRateLimited when key is already over budget. It does not
// record an attempt.
func (w *Window) Check(ctx context.Context, key string) error {
	count, err := w.Count(ctx, key)
	if err != nil {
		return err
	}
	if count > w.maxAttempts {
		return ErrRateLimited
	}
	return nil
}

// Count returns the attempts recorded on key in the current window.
// Missing keys return zero.
func (w *Window) Count(ctx context.Context, key string) (int, error) {
	count, err := w.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears keys.
func (w *Window) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := w.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (w *Window) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := w.redis.Expire(ctx, key, w.ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// Config holds the password login throttle.
type Config struct {
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// Limiter throttles failed password logins per identifier.
type Limiter struct {
	login *Window
}

// New creates a login [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		login: NewWindow(redisClient, cfg.MaxLoginAttempts, cfg.LoginCooldownDuration),
	}
}

// CheckLogin returns ErrRateLimited when identifier has exhausted its
// failed-login budget.
func (l *Limiter) CheckLogin(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	return l.login.Check(ctx, loginKey(identifier))
}

// IncrementLogin records a failed login attempt for identifier.
func (l *Limiter) IncrementLogin(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	return l.login.Hit(ctx, loginKey(identifier))
}

// ResetLogin clears the failed-login counter after a successful login or
// password change.
func (l *Limiter) ResetLogin(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	return l.login.Reset(ctx, loginKey(identifier))
}

// GetLoginAttempts returns the current attempt counter for identifier.
func (l *Limiter) GetLoginAttempts(ctx context.Context, identifier string) (int, error) {
	if l == nil {
		return 0, nil
	}
	return l.login.Count(ctx, loginKey(identifier))
}

func loginKey(identifier string) string {
	return "afl:" + identifier
}
