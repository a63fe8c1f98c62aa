package rate

import "errors"

var (
	// ErrRateLimited is returned when a fixed window is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps every Redis failure seen by a window.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
