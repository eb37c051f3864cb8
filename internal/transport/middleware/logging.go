package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/acuhire/pkg/logger"
)

// bodies larger than this are not echoed into debug logs
const maxLoggedBody = 4 << 10

const redacted = "[REDACTED]"

// credentialKeys are JSON keys whose values never reach the log, compared
// case-insensitively against the whole key.
var credentialKeys = map[string]struct{}{
	"password":        {},
	"newpassword":     {},
	"currentpassword": {},
	"passwordhash":    {},
	"password_hash":   {},
	"token":           {},
	"code":            {},
	"passcode":        {},
	"secret":          {},
}

// AccessLog writes one line per request through the request logger. At debug
// level the JSON request body is included with credentials redacted.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lg := logger.From(r.Context())

		var body string
		if lg.Enabled(r.Context(), slog.LevelDebug) {
			body = peekBody(r)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		}
		if body != "" {
			attrs = append(attrs, "body", body)
		}
		lg.Log(r.Context(), level, "http request", attrs...)
	})
}

// peekBody reads the request body for logging and puts it back untouched.
func peekBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
	if err != nil || len(raw) == 0 {
		return ""
	}
	if len(raw) > maxLoggedBody {
		return "[truncated]"
	}
	return RedactJSON(raw)
}

// RedactJSON replaces credential values in a JSON document. Input that is not
// JSON is withheld entirely, since it cannot be inspected.
func RedactJSON(raw []byte) string {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "[non-json body]"
	}
	out, err := json.Marshal(redactValue(doc))
	if err != nil {
		return "[unloggable body]"
	}
	return string(out)
}

func redactValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if _, hit := credentialKeys[strings.ToLower(k)]; hit {
				t[k] = redacted
				continue
			}
			t[k] = redactValue(val)
		}
		return t
	case []interface{}:
		for i := range t {
			t[i] = redactValue(t[i])
		}
		return t
	default:
		return v
	}
}
