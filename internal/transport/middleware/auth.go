package middleware

import (
	"net/http"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/pkg/logger"
)

// CallerLogContext tags the request logger with the authenticated caller.
// Mount it after the session middleware.
func CallerLogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := internal.CallerFromContext(r.Context()); ok {
			ctx := logger.With(r.Context(), "userID", c.UserID, "role", c.Role)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}
