package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitByIP limits requests per client IP to the given number per minute,
// using a sliding window. Used in front of the login endpoint so a flood of
// attempts is shed before it reaches the credential check.
func RateLimitByIP(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// RateLimitByAuthorization limits requests per Authorization header value, so
// each API key gets its own budget. Requests without the header fall into a
// shared anonymous bucket; they fail authentication anyway.
func RateLimitByAuthorization(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return r.Header.Get("Authorization"), nil
		}),
	)
}
