package middleware

import "net/http"

// MaxInFlight rejects requests with 503 while n requests are already being
// served. n <= 0 disables the limit.
func MaxInFlight(n int) func(http.Handler) http.Handler {
	if n <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	sem := make(chan struct{}, n)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case sem <- struct{}{}:
			default:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"too many concurrent runs"}`))
				return
			}
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		})
	}
}
