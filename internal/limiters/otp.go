package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rentoapp/authflow/internal/rate"
)

var (
	ErrOTPRateLimited        = errors.New("otp rate limited")
	ErrOTPLimiterUnavailable = errors.New("otp limiter unavailable")
)

type OTPConfig struct {
	MaxSends     int
	SendWindow   time.Duration
	MaxVerifies  int
	VerifyWindow time.Duration
}

// OTPLimiter throttles code issuance and verification per identifier key.
type OTPLimiter struct {
	send   *rate.Window
	verify *rate.Window
}

func NewOTPLimiter(redisClient redis.UniversalClient, cfg OTPConfig) *OTPLimiter {
	return &OTPLimiter{
		send:   rate.NewWindow(redisClient, cfg.MaxSends, cfg.SendWindow),
		verify: rate.NewWindow(redisClient, cfg.MaxVerifies, cfg.VerifyWindow),
	}
}

// CheckSend records one issuance for identifierKey.
func (l *OTPLimiter) CheckSend(ctx context.Context, identifierKey string) error {
	if l == nil {
		return nil
	}
	return mapRateError(l.send.Hit(ctx, otpSendKey(identifierKey)))
}

// CheckVerify records one verification attempt for identifierKey.
func (l *OTPLimiter) CheckVerify(ctx context.Context, identifierKey string) error {
	if l == nil {
		return nil
	}
	return mapRateError(l.verify.Hit(ctx, otpVerifyKey(identifierKey)))
}

// ResetVerify clears the verification budget after a successful code.
func (l *OTPLimiter) ResetVerify(ctx context.Context, identifierKey string) error {
	if l == nil {
		return nil
	}
	return mapRateError(l.verify.Reset(ctx, otpVerifyKey(identifierKey)))
}

func mapRateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrOTPRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrOTPLimiterUnavailable, err)
	}
}

func otpSendKey(identifierKey string) string {
	return "afos:" + identifierKey
}

func otpVerifyKey(identifierKey string) string {
	return "afov:" + identifierKey
}
