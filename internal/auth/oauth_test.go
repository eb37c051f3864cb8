package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/audit"
	"github.com/frahmantamala/acuhire/internal/auth"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	"github.com/frahmantamala/acuhire/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

type fakeProvider struct {
	identity *auth.ExternalIdentity
	err      error

	calls    int
	code     string
	verifier string
}

func (p *fakeProvider) Name() string { return "google" }

func (p *fakeProvider) AuthCodeURL(state, verifier string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Identify(_ context.Context, code, verifier string) (*auth.ExternalIdentity, error) {
	p.calls++
	p.code, p.verifier = code, verifier
	if p.err != nil {
		return nil, p.err
	}
	id := *p.identity
	return &id, nil
}

var _ = Describe("OAuth sign-in", func() {
	var (
		store    *memoryStore
		recorder *recordingAudit
		provider *fakeProvider
		issuer   *auth.TokenIssuer
		handler  *auth.OAuthHandler
	)

	homes := map[coreUser.Role]string{
		coreUser.RoleCandidate: "/dashboard/candidate",
		coreUser.RoleCompany:   "/dashboard/company",
	}

	BeforeEach(func() {
		store = newMemoryStore()
		recorder = &recordingAudit{}
		issuer = newTestIssuer(time.Now, auth.NewMemoryDenyList())
		provider = &fakeProvider{identity: &auth.ExternalIdentity{
			Provider: "google", Email: "Ada@Example.com", EmailVerified: true, Name: "Ada Lovelace",
		}}
		svc := auth.NewService(store, auth.NewBcryptHasher(bcrypt.MinCost), issuer, recorder, nil, logger.Discard(), auth.Options{})
		sessions := auth.NewSessionTransport(issuer, false, logger.Discard())
		handler = auth.NewOAuthHandler(svc, provider, sessions,
			func(r coreUser.Role) string { return homes[r] }, "/login", false, logger.Discard())
	})

	start := func() *http.Cookie {
		w := httptest.NewRecorder()
		handler.Start(w, httptest.NewRequest(http.MethodGet, "/auth/oauth/google", nil))
		Expect(w.Code).To(Equal(http.StatusFound))
		c := findCookie(w.Result(), auth.StateCookieName)
		Expect(c).NotTo(BeNil())
		return c
	}

	callback := func(query string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/auth/oauth/google/callback?"+query, nil)
		for _, c := range cookies {
			r.AddCookie(c)
		}
		w := httptest.NewRecorder()
		handler.Callback(w, r)
		return w
	}

	stateOf := func(c *http.Cookie) string {
		state, _, ok := strings.Cut(c.Value, ".")
		Expect(ok).To(BeTrue())
		return state
	}

	It("sends the browser to the provider with a fresh state", func() {
		w := httptest.NewRecorder()
		handler.Start(w, httptest.NewRequest(http.MethodGet, "/auth/oauth/google", nil))

		Expect(w.Code).To(Equal(http.StatusFound))
		c := findCookie(w.Result(), auth.StateCookieName)
		Expect(c).NotTo(BeNil())
		Expect(c.HttpOnly).To(BeTrue())
		Expect(c.SameSite).To(Equal(http.SameSiteLaxMode))
		Expect(c.Path).To(Equal("/auth/oauth"))
		Expect(w.Header().Get("Location")).To(ContainSubstring("state=" + url.QueryEscape(stateOf(c))))

		Expect(stateOf(start())).NotTo(Equal(stateOf(c)))
	})

	It("creates a candidate on first sign-in and sets the session cookie", func() {
		c := start()
		w := callback("code=abc&state="+url.QueryEscape(stateOf(c)), c)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("url=/dashboard/candidate"))
		Expect(w.Header().Get("Cache-Control")).To(Equal("no-store"))

		_, verifier, _ := strings.Cut(c.Value, ".")
		Expect(provider.code).To(Equal("abc"))
		Expect(provider.verifier).To(Equal(verifier))

		session := findCookie(w.Result(), auth.CookieName)
		Expect(session).NotTo(BeNil())
		claims, err := issuer.Verify(context.Background(), session.Value, auth.PurposeSession)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.Role).To(Equal("candidate"))
		Expect(claims.Email).To(Equal("ada@example.com"))

		cleared := findCookie(w.Result(), auth.StateCookieName)
		Expect(cleared).NotTo(BeNil())
		Expect(cleared.MaxAge).To(BeNumerically("<", 0))

		u, err := store.GetByEmail(context.Background(), "ada@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(u).NotTo(BeNil())
		Expect(u.Role).To(Equal(coreUser.RoleCandidate))
		Expect(u.Name).To(Equal("Ada Lovelace"))
		Expect(u.PasswordHash).NotTo(BeEmpty())
		Expect(recorder.actions()).To(Equal([]audit.ActionType{audit.ActionUserRegister, audit.ActionUserLogin}))
	})

	It("signs an existing account in with its own role", func() {
		Expect(store.Create(context.Background(), &coreUser.User{
			ID: "company-1", Email: "ada@example.com", Name: "Acme", PasswordHash: "x", Role: coreUser.RoleCompany,
		})).To(Succeed())

		c := start()
		w := callback("code=abc&state="+url.QueryEscape(stateOf(c)), c)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("url=/dashboard/company"))
		u, _ := store.GetByEmail(context.Background(), "ada@example.com")
		Expect(u.ID).To(Equal("company-1"))
		Expect(u.PasswordHash).To(Equal("x"))
		Expect(recorder.actions()).To(Equal([]audit.ActionType{audit.ActionUserLogin}))
	})

	DescribeTable("sends the browser back to login without a session",
		func(query func(state string) string, withCookie bool) {
			c := start()
			var cookies []*http.Cookie
			if withCookie {
				cookies = append(cookies, c)
			}
			w := callback(query(stateOf(c)), cookies...)

			Expect(w.Code).To(Equal(http.StatusFound))
			Expect(w.Header().Get("Location")).To(Equal("/login?error=oauth"))
			Expect(findCookie(w.Result(), auth.CookieName)).To(BeNil())
			Expect(provider.calls).To(BeZero())
		},
		Entry("state does not match", func(string) string { return "code=abc&state=forged" }, true),
		Entry("state cookie missing", func(s string) string { return "code=abc&state=" + url.QueryEscape(s) }, false),
		Entry("state parameter missing", func(string) string { return "code=abc" }, true),
		Entry("provider reported an error", func(s string) string { return "error=access_denied&state=" + url.QueryEscape(s) }, true),
		Entry("code missing", func(s string) string { return "state=" + url.QueryEscape(s) }, true),
	)

	It("refuses an email the provider did not verify", func() {
		provider.identity.EmailVerified = false
		c := start()
		w := callback("code=abc&state="+url.QueryEscape(stateOf(c)), c)

		Expect(w.Header().Get("Location")).To(Equal("/login?error=oauth"))
		Expect(findCookie(w.Result(), auth.CookieName)).To(BeNil())
		u, _ := store.GetByEmail(context.Background(), "ada@example.com")
		Expect(u).To(BeNil())
		Expect(recorder.last().ActionType).To(Equal(audit.ActionSecurityEvent))
	})

	It("sends the browser back to login when the code exchange fails", func() {
		provider.err = errors.New("invalid_grant")
		c := start()
		w := callback("code=abc&state="+url.QueryEscape(stateOf(c)), c)

		Expect(w.Header().Get("Location")).To(Equal("/login?error=oauth"))
		Expect(findCookie(w.Result(), auth.CookieName)).To(BeNil())
	})

	It("answers a second sign-in for the same email with the same account", func() {
		svc := auth.NewService(store, auth.NewBcryptHasher(bcrypt.MinCost), issuer, recorder, nil, logger.Discard(), auth.Options{})
		id := auth.ExternalIdentity{Provider: "google", Email: "twice@example.com", EmailVerified: true}

		first, err := svc.SignInExternal(context.Background(), id, audit.RequestMeta{})
		Expect(err).NotTo(HaveOccurred())
		second, err := svc.SignInExternal(context.Background(), id, audit.RequestMeta{})
		Expect(err).NotTo(HaveOccurred())

		Expect(second.User.ID).To(Equal(first.User.ID))
		Expect(first.User.Name).To(Equal("twice"))
	})

	It("maps an unverified identity to an unauthorized error", func() {
		svc := auth.NewService(store, auth.NewBcryptHasher(bcrypt.MinCost), issuer, recorder, nil, logger.Discard(), auth.Options{})
		_, err := svc.SignInExternal(context.Background(), auth.ExternalIdentity{Provider: "google", Email: "not-an-email", EmailVerified: true}, audit.RequestMeta{})
		Expect(errors.Is(err, auth.ErrUnverifiedIdentity)).To(BeTrue())

		var appErr *internal.AppError
		Expect(errors.As(err, &appErr)).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusUnauthorized))
	})
})

var _ = Describe("GoogleProvider", func() {
	var (
		server   *httptest.Server
		form     url.Values
		userInfo string
	)

	BeforeEach(func() {
		form = nil
		userInfo = `{"email":"ada@example.com","email_verified":true,"name":"Ada"}`
		mux := http.NewServeMux()
		mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			form = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "at-1", "token_type": "Bearer", "expires_in": 3600,
			})
		})
		mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer at-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(userInfo))
		})
		server = httptest.NewServer(mux)
		DeferCleanup(server.Close)
	})

	provider := func() *auth.GoogleProvider {
		return auth.NewGoogleProvider(internal.OAuthClientConfig{
			ClientID:     "client-1",
			ClientSecret: "secret-1",
			RedirectURL:  "http://localhost:8080/auth/oauth/google/callback",
		}, auth.WithGoogleEndpoints(oauth2.Endpoint{
			AuthURL:   server.URL + "/auth",
			TokenURL:  server.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}, server.URL+"/userinfo"))
	}

	It("asks for the email scope with a PKCE challenge", func() {
		raw := provider().AuthCodeURL("st-1", oauth2.GenerateVerifier())
		u, err := url.Parse(raw)
		Expect(err).NotTo(HaveOccurred())
		q := u.Query()
		Expect(q.Get("state")).To(Equal("st-1"))
		Expect(q.Get("client_id")).To(Equal("client-1"))
		Expect(q.Get("scope")).To(ContainSubstring("email"))
		Expect(q.Get("code_challenge_method")).To(Equal("S256"))
		Expect(q.Get("code_challenge")).NotTo(BeEmpty())
	})

	It("exchanges the code with the verifier and reads the profile", func() {
		id, err := provider().Identify(context.Background(), "code-1", "verifier-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(form.Get("code")).To(Equal("code-1"))
		Expect(form.Get("code_verifier")).To(Equal("verifier-1"))
		Expect(*id).To(Equal(auth.ExternalIdentity{
			Provider: "google", Email: "ada@example.com", EmailVerified: true, Name: "Ada",
		}))
	})

	It("fails when the profile cannot be read", func() {
		userInfo = `{not json`
		_, err := provider().Identify(context.Background(), "code-1", "verifier-1")
		Expect(err).To(MatchError(ContainSubstring("decode userinfo")))
	})
})
