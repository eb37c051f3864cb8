package rest

import (
	"log/slog"
	"net/http/httputil"
	"net/netip"
	"net/url"

	"github.com/frahmantamala/acuhire/internal/audit"
	"github.com/frahmantamala/acuhire/internal/auth"
	"github.com/frahmantamala/acuhire/internal/authz"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	"github.com/frahmantamala/acuhire/internal/interview"
	"github.com/frahmantamala/acuhire/internal/job"
	"github.com/frahmantamala/acuhire/internal/ratelimit"
	"github.com/frahmantamala/acuhire/internal/transport/middleware"
	"github.com/frahmantamala/acuhire/internal/transport/swagger"
	"github.com/frahmantamala/acuhire/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Routes bundles everything RegisterAllRoutes mounts. Nil handlers are skipped.
type Routes struct {
	Health    *HealthHandler
	Sessions  *auth.SessionTransport
	Gate      *authz.Gate
	Limiter   ratelimit.Limiter
	Auth      *auth.Handler
	OAuth     *auth.OAuthHandler
	Interview *interview.Handler
	Jobs      *job.Handler
	Users     *user.Handler
	Audit     *audit.Handler

	AllowedOrigins string
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix
	OpenAPIPath    string
	// FrontendURL, when set, is reverse proxied behind the page gate.
	FrontendURL string
}

func RegisterAllRoutes(router *chi.Mux, rt Routes, logger *slog.Logger) error {
	router.Use(middleware.CORS(rt.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.TrustedRealIP(rt.TrustedProxies))
	router.Use(middleware.RequestID(logger))
	router.Use(middleware.AccessLog)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(rt.Sessions.Authenticate)
	router.Use(middleware.CallerLogContext)

	if rt.Health != nil {
		router.Get("/ping", rt.Health.pingHandler)
		router.Get("/health", rt.Health.healthCheckHandler)
	}

	if rt.OpenAPIPath != "" {
		docs, err := swagger.New(rt.OpenAPIPath)
		if err != nil {
			return err
		}
		router.Get("/openapi.yml", docs.ServeSpec)
		router.Handle("/swagger/*", docs.UI())
	}

	if rt.Auth != nil {
		router.Route("/auth", func(ar chi.Router) {
			ar.Group(func(lr chi.Router) {
				lr.Use(middleware.RateLimit(rt.Limiter, "auth", middleware.ByClientIP, logger))
				lr.Post("/register", rt.Auth.Register)
				lr.Post("/login", rt.Auth.Login)
				lr.Post("/forgot-password", rt.Auth.ForgotPassword)
				lr.Post("/reset-password", rt.Auth.ResetPassword)
				if rt.OAuth != nil {
					base := "/oauth/" + rt.OAuth.Provider.Name()
					lr.Get(base, rt.OAuth.Start)
					lr.Get(base+"/callback", rt.OAuth.Callback)
				}
			})
			ar.Post("/logout", rt.Auth.Logout)
			ar.Get("/session", rt.Auth.Session)
			if rt.Gate != nil {
				ar.Get("/authorize", rt.Gate.Authorize)
			}
		})
	}

	if rt.Interview != nil {
		router.Group(func(ir chi.Router) {
			ir.Use(rt.Gate.RequireRoles(coreUser.RoleCandidate))
			ir.Use(middleware.RateLimit(rt.Limiter, "passcode", middleware.ByClientIP, logger))
			ir.Post("/verify-interview-code", rt.Interview.VerifyCode)
		})
	}

	if rt.Jobs != nil {
		router.Route("/jobs", func(jr chi.Router) {
			jr.Get("/", rt.Jobs.ListJobs)
			jr.Get("/{id}", rt.Jobs.GetJob)
			jr.Group(func(cr chi.Router) {
				cr.Use(rt.Gate.RequireRoles(coreUser.RoleCompany))
				cr.Post("/", rt.Jobs.CreateJob)
				cr.Post("/{id}/close", rt.Jobs.CloseJob)
			})
		})
	}

	if rt.Users != nil {
		router.Group(func(ur chi.Router) {
			ur.Use(rt.Sessions.RequireSession)
			ur.Get("/users/me", rt.Users.GetCurrentUser)
		})
	}

	if rt.Audit != nil {
		router.Group(func(adr chi.Router) {
			adr.Use(rt.Gate.RequireRoles(coreUser.RoleAdmin))
			adr.Get("/admin/audit-logs", rt.Audit.ListAuditLogs)
		})
	}

	if rt.FrontendURL != "" && rt.Gate != nil {
		target, err := url.Parse(rt.FrontendURL)
		if err != nil {
			return err
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		router.Group(func(pr chi.Router) {
			pr.Use(rt.Gate.PageGate)
			pr.Handle("/*", proxy)
		})
	}

	return nil
}
