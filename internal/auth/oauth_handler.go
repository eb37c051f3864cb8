package auth

import (
	"crypto/subtle"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/audit"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	"github.com/frahmantamala/acuhire/internal/transport"
	"golang.org/x/oauth2"
)

const (
	StateCookieName = "oauth_state"
	stateCookiePath = "/auth/oauth"
	stateTTL        = 10 * time.Minute
)

// landingPage finishes the flow with a same-site navigation. A redirect
// chain that began at the provider would not carry the SameSite=Strict
// session cookie.
const landingPage = `<!doctype html><meta http-equiv="refresh" content="0;url=%[1]s"><a href="%[1]s">Continue</a>`

// OAuthHandler delegates sign-in to an identity provider and ends with the
// same session cookie a password login sets.
type OAuthHandler struct {
	*transport.BaseHandler
	Service   ExternalSignIn
	Provider  IdentityProvider
	Sessions  *SessionTransport
	home      func(coreUser.Role) string
	loginPath string
	secure    bool
}

func NewOAuthHandler(svc ExternalSignIn, p IdentityProvider, sessions *SessionTransport, home func(coreUser.Role) string, loginPath string, secure bool, lg *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Provider:    p,
		Sessions:    sessions,
		home:        home,
		loginPath:   loginPath,
		secure:      secure,
	}
}

// Start redirects to the provider. State and the PKCE verifier wait in a
// short-lived cookie scoped to the callback.
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := internal.RandomSecret(32)
	if err != nil {
		h.HandleServiceError(w, r, internal.NewInternalError("failed to start sign-in", err))
		return
	}
	verifier := oauth2.GenerateVerifier()

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state + "." + verifier,
		Path:     stateCookiePath,
		MaxAge:   int(stateTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secure,
		// Lax so the cookie survives the top-level redirect back from the provider
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.Provider.AuthCodeURL(state, verifier), http.StatusFound)
}

func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state, verifier, ok := h.takeState(w, r)
	q := r.URL.Query()
	if !ok || subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(state)) != 1 {
		h.Logger.Warn("oauth callback state mismatch", "provider", h.Provider.Name(), "ip", transport.ClientIP(r))
		h.fail(w, r)
		return
	}
	if e := q.Get("error"); e != "" {
		h.Logger.Info("oauth sign-in declined", "provider", h.Provider.Name(), "error", e)
		h.fail(w, r)
		return
	}
	code := q.Get("code")
	if code == "" {
		h.fail(w, r)
		return
	}

	id, err := h.Provider.Identify(r.Context(), code, verifier)
	if err != nil {
		h.Logger.Warn("oauth identify failed", "provider", h.Provider.Name(), "error", err)
		h.fail(w, r)
		return
	}
	res, err := h.Service.SignInExternal(r.Context(), *id, audit.MetaFromRequest(r))
	if err != nil {
		h.Logger.Warn("oauth sign-in rejected", "provider", h.Provider.Name(), "error", err)
		h.fail(w, r)
		return
	}

	h.Sessions.SetSession(w, res.Token)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, landingPage, html.EscapeString(h.home(res.User.Role)))
}

// takeState reads and always expires the state cookie, so a callback URL can
// be redeemed once.
func (h *OAuthHandler) takeState(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	c, err := r.Cookie(StateCookieName)
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     stateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	if err != nil {
		return "", "", false
	}
	state, verifier, ok := strings.Cut(c.Value, ".")
	if !ok || state == "" || verifier == "" {
		return "", "", false
	}
	return state, verifier, true
}

func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.loginPath+"?error=oauth", http.StatusFound)
}
