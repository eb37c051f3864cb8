package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/ratelimit"
	"github.com/frahmantamala/acuhire/internal/transport"
)

type KeyFunc func(r *http.Request) string

func ByClientIP(r *http.Request) string {
	ip := transport.ClientIP(r)
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimit takes one token per request from the bucket named scope+key.
// Limiter errors let the request through.
func RateLimit(l ratelimit.Limiter, scope string, keyFn KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(logger)
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + keyFn(r)
			res, err := l.Take(r.Context(), key)
			if err != nil {
				base.Logger.Warn("rate limiter unavailable, allowing request", "scope", scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				secs := int(math.Ceil(res.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				base.Logger.Warn("rate limit exceeded", "scope", scope, "key", key, "retry_after", secs)
				base.WriteAppError(w, internal.NewTooManyRequestsError("Too many attempts, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
