package rate

import "errors"

var (
	// ErrRateLimited signals that the attempt budget is spent for the window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("rate limiter redis unavailable")
)
