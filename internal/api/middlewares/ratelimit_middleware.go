package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/lexcora/rased/internal/api/handlers"
	"github.com/lexcora/rased/internal/core/auth"
	"github.com/lexcora/rased/internal/core/ratelimit"
	"github.com/lexcora/rased/internal/metrics"
)

// RateLimit admits at most the limiter's budget per caller and window. It
// runs before authentication: callers presenting an accepted credential are
// counted by its digest, everyone else by client address. A failing store
// rejects the request.
func RateLimit(l *ratelimit.Limiter, gate *auth.Gate, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), identity(r, gate))
			if err != nil {
				log.Error().Err(err).Msg("rate limit check failed")
				handlers.WriteError(w, http.StatusServiceUnavailable, "Rate limiter unavailable.")
				return
			}

			resetSecs := int(math.Ceil(d.ResetIn.Seconds()))
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.Itoa(resetSecs))

			if !d.Allowed {
				m.RateLimited()
				h.Set("Retry-After", strconv.Itoa(max(resetSecs, 1)))
				handlers.WriteError(w, http.StatusTooManyRequests, "Too many requests.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identity(r *http.Request, gate *auth.Gate) string {
	if c := auth.Credential(r); c != "" && gate.Known(c) {
		return "key:" + auth.Fingerprint(c)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
