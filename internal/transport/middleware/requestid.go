package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"

	"github.com/frahmantamala/acuhire/pkg/logger"
)

const TraceHeader = "X-Trace-ID"

// RequestID propagates or mints a trace id, echoes it on the response and
// seeds the request logger with it. Mount it after chi's RequestID so the
// logger also carries the per-process request id.
func RequestID(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = logger.LoggerWrapper()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceHeader)
			if traceID == "" || len(traceID) > 128 {
				traceID = uuid.NewString()
			}
			w.Header().Set(TraceHeader, traceID)

			lg := base.With("traceID", traceID)
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				lg = lg.With("request_id", reqID)
			}
			next.ServeHTTP(w, r.WithContext(logger.Into(r.Context(), lg)))
		})
	}
}
