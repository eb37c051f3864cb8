package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/transport"
	"github.com/go-chi/jwtauth/v5"
)

const CookieName = "token"

// TokenVerifier is the read side of TokenIssuer.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string, purpose Purpose) (*Claims, error)
}

// SessionTransport moves the session token between client and server. The
// cookie is the primary carrier; a Bearer header is accepted for API clients.
type SessionTransport struct {
	*transport.BaseHandler
	verifier TokenVerifier
	secure   bool
}

func NewSessionTransport(v TokenVerifier, secure bool, lg *slog.Logger) *SessionTransport {
	return &SessionTransport{
		BaseHandler: transport.NewBaseHandler(lg),
		verifier:    v,
		secure:      secure,
	}
}

func (s *SessionTransport) SetSession(w http.ResponseWriter, tok Token) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    tok.Value,
		Path:     "/",
		MaxAge:   int(tok.TTL / time.Second),
		Expires:  tok.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear expires the cookie immediately (Max-Age=0 on the wire).
func (s *SessionTransport) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// candidates lists the presented tokens, cookie first.
func (s *SessionTransport) candidates(r *http.Request) []string {
	var out []string
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		out = append(out, c.Value)
	}
	if h := jwtauth.TokenFromHeader(r); h != "" && (len(out) == 0 || out[0] != h) {
		out = append(out, h)
	}
	return out
}

// resolve returns the first presented token that verifies. The cookie wins
// when both are valid; a stale cookie does not hide a valid bearer header.
func (s *SessionTransport) resolve(r *http.Request) (string, *Claims, bool) {
	for _, raw := range s.candidates(r) {
		claims, err := s.verifier.Verify(r.Context(), raw, PurposeSession)
		if err == nil {
			return raw, claims, true
		}
		var verr *VerificationError
		if errors.As(err, &verr) {
			s.Logger.Debug("session token rejected", "kind", verr.Kind, "path", r.URL.Path)
		} else {
			s.Logger.Warn("session token verification failed", "error", err)
		}
	}
	return "", nil, false
}

// RawToken is the presented token that currently authenticates the request,
// or "" when none does.
func (s *SessionTransport) RawToken(r *http.Request) string {
	raw, _, _ := s.resolve(r)
	return raw
}

// CurrentCaller never fails the request: a missing or bad token is just
// "unauthenticated".
func (s *SessionTransport) CurrentCaller(r *http.Request) (*Claims, bool) {
	_, claims, ok := s.resolve(r)
	return claims, ok
}

func CallerFromClaims(c *Claims) *internal.Caller {
	return &internal.Caller{
		UserID:    c.Subject,
		Email:     c.Email,
		Name:      c.Name,
		Role:      c.Role,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAtTime(),
	}
}

// Authenticate attaches the caller to the context when a valid session is
// present and lets every request through.
func (s *SessionTransport) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := s.CurrentCaller(r); ok {
			r = r.WithContext(internal.ContextWithCaller(r.Context(), CallerFromClaims(claims)))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession answers 401 unless a caller was attached by Authenticate.
func (s *SessionTransport) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := internal.CallerFromContext(r.Context()); !ok {
			s.WriteAppError(w, internal.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
