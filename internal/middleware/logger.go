package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"genbroker/internal/infra"
)

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logger logs one line per request. When a GeoIP database is configured the
// caller's country code is attached; geo is nil-safe.
func Logger(l zerolog.Logger, geo *infra.GeoIP) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			event := l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Dur("duration", time.Since(start)).
				Str("request_id", RequestIDFromContext(r.Context()))
			if country := geo.CountryCode(clientIPForRateLimit(r)); country != "" {
				event = event.Str("country", country)
			}
			event.Msg("request")
		})
	}
}
