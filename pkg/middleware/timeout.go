package middleware

import (
	"net/http"
	"time"
)

// Timeout answers 503 with a JSON error when next has not finished within
// timeout. The request context is cancelled at the deadline.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"error":"request timeout"}`)
	}
}
