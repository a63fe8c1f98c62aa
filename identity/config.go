package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/jwt"
	"github.com/rentoapp/authflow/password"
)

// ErrInvalidConfig wraps configuration failures returned by [New].
var ErrInvalidConfig = errors.New("invalid identity config")

// Config configures a [Provider].
type Config struct {
	// KeyPrefix namespaces every Redis key written by the provider.
	KeyPrefix string

	OTPDigits      int
	OTPTTL         time.Duration
	OTPMaxAttempts int

	MaxOTPSends     int
	OTPSendWindow   time.Duration
	MaxOTPVerifies  int
	OTPVerifyWindow time.Duration

	MaxLoginAttempts int
	LoginCooldown    time.Duration

	Session  jwt.Config
	Password password.Config
}

// DefaultConfig returns production defaults. Session.PrivateKey is left
// empty and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:        "afid",
		OTPDigits:        authflow.OTPLength,
		OTPTTL:           5 * time.Minute,
		OTPMaxAttempts:   5,
		MaxOTPSends:      5,
		OTPSendWindow:    15 * time.Minute,
		MaxOTPVerifies:   10,
		OTPVerifyWindow:  15 * time.Minute,
		MaxLoginAttempts: 5,
		LoginCooldown:    15 * time.Minute,
		Session: jwt.Config{
			SessionTTL:    time.Hour,
			SigningMethod: jwt.MethodHS256,
			Issuer:        "authflow",
		},
		Password: password.DefaultConfig(),
	}
}

func (c Config) validate() error {
	switch {
	case c.KeyPrefix == "":
		return fmt.Errorf("%w: key prefix must be set", ErrInvalidConfig)
	case c.OTPDigits < 4 || c.OTPDigits > 10:
		return fmt.Errorf("%w: otp digits must be within [4, 10]", ErrInvalidConfig)
	case c.OTPTTL <= 0:
		return fmt.Errorf("%w: otp ttl must be > 0", ErrInvalidConfig)
	case c.OTPMaxAttempts <= 0:
		return fmt.Errorf("%w: otp max attempts must be > 0", ErrInvalidConfig)
	case c.MaxOTPSends <= 0 || c.OTPSendWindow <= 0:
		return fmt.Errorf("%w: otp send limit must be > 0", ErrInvalidConfig)
	case c.MaxOTPVerifies <= 0 || c.OTPVerifyWindow <= 0:
		return fmt.Errorf("%w: otp verify limit must be > 0", ErrInvalidConfig)
	case c.MaxLoginAttempts <= 0 || c.LoginCooldown <= 0:
		return fmt.Errorf("%w: login limit must be > 0", ErrInvalidConfig)
	}
	return nil
}
