package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/audit"
	auditPostgres "github.com/frahmantamala/acuhire/internal/audit/postgres"
	"github.com/frahmantamala/acuhire/internal/auth"
	authPostgres "github.com/frahmantamala/acuhire/internal/auth/postgres"
	"github.com/frahmantamala/acuhire/internal/authz"
	"github.com/frahmantamala/acuhire/internal/core/events"
	"github.com/frahmantamala/acuhire/internal/interview"
	interviewPostgres "github.com/frahmantamala/acuhire/internal/interview/postgres"
	"github.com/frahmantamala/acuhire/internal/job"
	jobPostgres "github.com/frahmantamala/acuhire/internal/job/postgres"
	"github.com/frahmantamala/acuhire/internal/ratelimit"
	"github.com/frahmantamala/acuhire/internal/transport/rest"
	"github.com/frahmantamala/acuhire/internal/user"
	"github.com/frahmantamala/acuhire/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config    *internal.Config
	DB        *sqlx.DB
	Redis     *redis.Client
	Router    *chi.Mux
	Logger    *slog.Logger
	closeFunc []func() error
}

func (d *Dependencies) Close() {
	for i := len(d.closeFunc) - 1; i >= 0; i-- {
		if err := d.closeFunc[i](); err != nil {
			d.Logger.Error("shutdown: close failed", "error", err)
		}
	}
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "env", deps.Config.App.Env)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	deps.Close()
	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps := &Dependencies{Config: config, DB: db, Logger: lg, Router: chi.NewRouter()}
	deps.closeFunc = append(deps.closeFunc, db.Close)

	gdb, err := initGorm(db, config.App.IsProduction())
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.Redis = initRedis(config.Redis, lg)
	if deps.Redis != nil {
		deps.closeFunc = append(deps.closeFunc, deps.Redis.Close)
	}

	// audit: local bus, optionally forwarded to the broker
	bus := events.NewEventBus(lg)
	var brokerProbe rest.Probe
	if config.Broker.Enabled() {
		conn, err := dialBroker(config.Broker)
		if err != nil {
			lg.Warn("audit forwarding disabled", "error", err)
		} else {
			fwd, err := openForwarder(conn, config.Broker.Queue, lg)
			if err != nil {
				_ = conn.Close()
				lg.Warn("audit forwarding disabled", "error", err)
			} else {
				fwd.Subscribe(bus)
				deps.closeFunc = append(deps.closeFunc, conn.Close, fwd.Close)
				brokerProbe = func(context.Context) error {
					if conn.IsClosed() {
						return errBrokerClosed
					}
					return nil
				}
			}
		}
	}
	if config.AuditSink.Enabled() {
		sink := audit.NewWebhookSink(audit.WebhookConfig{
			URL:         config.AuditSink.URL,
			APIKey:      config.AuditSink.APIKey,
			Timeout:     config.AuditSink.Timeout,
			MaxWorkers:  config.AuditSink.MaxWorkers,
			QueueSize:   config.AuditSink.QueueSize,
			MaxAttempts: config.AuditSink.MaxAttempts,
		}, lg)
		sink.Subscribe(bus)
		deps.closeFunc = append(deps.closeFunc, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			sink.Shutdown(ctx)
			return nil
		})
	}
	// runs before the forwarder and sink close, so queued events reach them
	deps.closeFunc = append(deps.closeFunc, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return bus.Drain(ctx)
	})
	auditService := audit.NewService(auditPostgres.NewAuditRepository(gdb), bus, lg)

	// tokens
	var denyList auth.DenyList = auth.NewMemoryDenyList()
	if deps.Redis != nil {
		denyList = auth.NewRedisDenyList(deps.Redis, "")
	}
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:     []byte(config.Security.JWTSecret),
		Issuer:     config.Security.Issuer,
		Audience:   config.Security.Audience,
		SessionTTL: config.Security.SessionTTL,
		ResetTTL:   config.Security.ResetTTL,
	}, auth.WithDenyList(denyList), auth.WithIssuerLogger(lg))
	if err != nil {
		deps.Close()
		return nil, err
	}

	credentials := authPostgres.NewCredentialRepository(gdb)
	authService := auth.NewService(
		credentials,
		auth.NewBcryptHasher(config.Security.BCryptCost),
		tokens,
		auditService,
		auth.NewLogResetNotifier(lg, config.Security.ResetURL, !config.App.IsProduction()),
		lg,
		auth.Options{PasswordMinLength: config.Security.PasswordMinLength},
	)
	sessions := auth.NewSessionTransport(tokens, !config.App.IsLocal(), lg)

	policy, err := authz.NewPolicy(config.Authz)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to build route policy: %w", err)
	}

	var limiter ratelimit.Limiter
	if config.RateLimit.Enabled {
		rlCfg := ratelimit.ConfigFrom(config.RateLimit)
		if deps.Redis != nil {
			limiter = ratelimit.NewRedisLimiter(deps.Redis, rlCfg)
		} else {
			limiter = ratelimit.NewMemoryLimiter(rlCfg)
		}
	}

	proxies, err := config.Server.TrustedProxyPrefixes()
	if err != nil {
		deps.Close()
		return nil, err
	}

	var oauth *auth.OAuthHandler
	if config.OAuth.Google.Enabled() {
		oauth = auth.NewOAuthHandler(authService, auth.NewGoogleProvider(config.OAuth.Google), sessions,
			policy.Home, policy.LoginPath(), !config.App.IsLocal(), lg)
	}

	health := rest.NewHealthHandler(db, deps.Redis)
	health.AddProbe("broker", brokerProbe)

	routes := rest.Routes{
		Health:         health,
		Sessions:       sessions,
		Gate:           authz.NewGate(policy, sessions, lg),
		Limiter:        limiter,
		Auth:           auth.NewHandler(authService, sessions, lg),
		OAuth:          oauth,
		Interview:      interview.NewHandler(interview.NewService(interviewPostgres.NewPasscodeRepository(db), lg), lg),
		Jobs:           job.NewHandler(job.NewService(jobPostgres.NewJobRepository(gdb), auditService, lg), lg),
		Users:          user.NewHandler(user.NewService(credentials), lg),
		Audit:          audit.NewHandler(auditService, lg),
		AllowedOrigins: config.Server.AllowedOrigins,
		TrustedProxies: proxies,
		OpenAPIPath:    config.Server.OpenAPIPath,
		FrontendURL:    config.Server.FrontendURL,
	}
	if err := rest.RegisterAllRoutes(deps.Router, routes, lg); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	return deps, nil
}
