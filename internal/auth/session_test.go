package auth_test

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/auth"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	"github.com/frahmantamala/acuhire/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

var _ = Describe("SessionTransport", func() {
	var (
		issuer   *auth.TokenIssuer
		sessions *auth.SessionTransport
	)

	BeforeEach(func() {
		issuer = newTestIssuer(time.Now, auth.NewMemoryDenyList())
		sessions = auth.NewSessionTransport(issuer, true, logger.Discard())
	})

	It("sets a hardened session cookie", func() {
		tok, err := issuer.IssueSession("user-1", coreUser.RoleCandidate, auth.ExtraClaims{})
		Expect(err).NotTo(HaveOccurred())

		w := httptest.NewRecorder()
		sessions.SetSession(w, tok)

		c := findCookie(w.Result(), auth.CookieName)
		Expect(c).NotTo(BeNil())
		Expect(c.Value).To(Equal(tok.Value))
		Expect(c.HttpOnly).To(BeTrue())
		Expect(c.Secure).To(BeTrue())
		Expect(c.SameSite).To(Equal(http.SameSiteStrictMode))
		Expect(c.Path).To(Equal("/"))
		Expect(c.MaxAge).To(Equal(int((24 * time.Hour).Seconds())))
	})

	It("omits Secure for local development", func() {
		local := auth.NewSessionTransport(issuer, false, logger.Discard())
		tok, _ := issuer.IssueSession("user-1", coreUser.RoleCandidate, auth.ExtraClaims{})
		w := httptest.NewRecorder()
		local.SetSession(w, tok)

		Expect(findCookie(w.Result(), auth.CookieName).Secure).To(BeFalse())
	})

	It("expires the cookie on Clear", func() {
		w := httptest.NewRecorder()
		sessions.Clear(w)

		c := findCookie(w.Result(), auth.CookieName)
		Expect(c).NotTo(BeNil())
		Expect(c.Value).To(BeEmpty())
		Expect(c.MaxAge).To(BeNumerically("<", 0))
		Expect(w.Header().Get("Set-Cookie")).To(ContainSubstring("Max-Age=0"))
	})

	Describe("RawToken", func() {
		var cookieTok, headerTok auth.Token

		BeforeEach(func() {
			var err error
			cookieTok, err = issuer.IssueSession("from-cookie", coreUser.RoleCandidate, auth.ExtraClaims{})
			Expect(err).NotTo(HaveOccurred())
			headerTok, err = issuer.IssueSession("from-header", coreUser.RoleCompany, auth.ExtraClaims{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("prefers the cookie when both carriers are valid", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: cookieTok.Value})
			r.Header.Set("Authorization", "Bearer "+headerTok.Value)
			Expect(sessions.RawToken(r)).To(Equal(cookieTok.Value))
		})

		It("falls back to a bearer header", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "Bearer "+headerTok.Value)
			Expect(sessions.RawToken(r)).To(Equal(headerTok.Value))
		})

		It("does not let a stale cookie hide a valid bearer header", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "left-over-from-last-week"})
			r.Header.Set("Authorization", "Bearer "+headerTok.Value)

			Expect(sessions.RawToken(r)).To(Equal(headerTok.Value))
			claims, ok := sessions.CurrentCaller(r)
			Expect(ok).To(BeTrue())
			Expect(claims.Subject).To(Equal("from-header"))
		})

		It("is empty when nothing verifies", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "garbage"})
			r.Header.Set("Authorization", "Bearer also-garbage")
			Expect(sessions.RawToken(r)).To(BeEmpty())
			_, ok := sessions.CurrentCaller(r)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Authenticate", func() {
		var seen *internal.Caller

		handler := func() http.Handler {
			return sessions.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = internal.CallerFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))
		}

		BeforeEach(func() { seen = nil })

		It("attaches the caller for a valid cookie", func() {
			tok, _ := issuer.IssueSession("user-9", coreUser.RoleAdmin, auth.ExtraClaims{Email: "root@acuhire.dev"})
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: tok.Value})

			handler().ServeHTTP(httptest.NewRecorder(), r)

			Expect(seen).NotTo(BeNil())
			Expect(seen.UserID).To(Equal("user-9"))
			Expect(seen.Role).To(Equal("admin"))
			Expect(seen.TokenID).To(Equal(tok.ID))
		})

		It("lets anonymous and invalid requests through without a caller", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "garbage"})
			w := httptest.NewRecorder()

			handler().ServeHTTP(w, r)

			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(seen).To(BeNil())
		})
	})

	It("RequireSession answers 401 without a caller", func() {
		w := httptest.NewRecorder()
		sessions.RequireSession(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			Fail("handler must not run")
		})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})
})
