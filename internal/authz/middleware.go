package authz

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/auth"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	"github.com/frahmantamala/acuhire/internal/transport"
	"github.com/frahmantamala/acuhire/pkg/logger"
)

// Gate applies the Policy to HTTP traffic. Pages get redirects, APIs get
// 401/403 JSON.
type Gate struct {
	*transport.BaseHandler
	policy   *Policy
	sessions *auth.SessionTransport
}

func NewGate(policy *Policy, sessions *auth.SessionTransport, lg *slog.Logger) *Gate {
	return &Gate{
		BaseHandler: transport.NewBaseHandler(lg),
		policy:      policy,
		sessions:    sessions,
	}
}

func (g *Gate) caller(r *http.Request) *internal.Caller {
	if c, ok := internal.CallerFromContext(r.Context()); ok {
		return c
	}
	if claims, ok := g.sessions.CurrentCaller(r); ok {
		return auth.CallerFromClaims(claims)
	}
	return nil
}

// PageGate redirects browsers according to the policy.
func (g *Gate) PageGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := g.caller(r)
		d := g.policy.Decide(r.URL.Path, caller)
		if d.Action != ActionContinue {
			logger.From(r.Context()).Debug("page gate redirect", "path", r.URL.Path, "decision", d.Action, "location", d.Location)
			http.Redirect(w, r, d.Location, http.StatusFound)
			return
		}
		if caller != nil {
			r = r.WithContext(internal.ContextWithCaller(r.Context(), caller))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles is the API form of the gate. Super roles get no bypass here;
// list them explicitly.
func (g *Gate) RequireRoles(roles ...coreUser.Role) func(http.Handler) http.Handler {
	allowed := make(map[coreUser.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := g.caller(r)
			if caller == nil {
				g.WriteAppError(w, internal.ErrUnauthenticated)
				return
			}
			role, ok := coreUser.ParseRole(caller.Role)
			if _, permitted := allowed[role]; !ok || !permitted {
				logger.From(r.Context()).Warn("access denied: role not permitted",
					"user_id", caller.UserID,
					"role", caller.Role,
					"path", r.URL.Path)
				g.WriteAppError(w, internal.ErrForbiddenRole)
				return
			}
			next.ServeHTTP(w, r.WithContext(internal.ContextWithCaller(r.Context(), caller)))
		})
	}
}

// Authorize serves GET /auth/authorize?path=... so the front end can ask for
// a decision without duplicating the table.
func (g *Gate) Authorize(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("path")
	if target == "" {
		g.WriteAppError(w, internal.NewValidationFieldError("path", "path is required", internal.ErrCodeValidationFailed))
		return
	}
	g.WriteJSON(w, http.StatusOK, g.policy.Decide(target, g.caller(r)))
}
