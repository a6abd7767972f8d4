package middleware

import (
	"net/http"
	"time"
)

// HTTPObserver records one finished request. *metrics.Metrics implements it.
type HTTPObserver interface {
	ObserveHTTP(route, method string, status int, elapsed time.Duration)
}

// Metrics reports every request to obs, labelled by chi route pattern.
func Metrics(obs HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)

			next.ServeHTTP(wrapped, r)

			obs.ObserveHTTP(routePattern(r), r.Method, wrapped.statusCode, time.Since(start))
		})
	}
}
