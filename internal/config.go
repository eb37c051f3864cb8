package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Redis         RedisConfig         `mapstructure:"redis"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Broker        BrokerConfig        `mapstructure:"broker"`
	AuditSink     AuditSinkConfig     `mapstructure:"audit_sink"`
	Authz         AuthzConfig         `mapstructure:"authz"`
	OAuth         OAuthConfig         `mapstructure:"oauth"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// IsLocal reports whether cookies may be sent over plain http.
func (c AppConfig) IsLocal() bool {
	switch strings.ToLower(c.Env) {
	case EnvDevelopment, EnvTest, "local", "":
		return true
	}
	return false
}

type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	BaseURL        string `mapstructure:"base_url"`
	FrontendURL    string `mapstructure:"frontend_url"`
	AllowedOrigins string `mapstructure:"allowed_origins"`
	// TrustedProxies is a comma separated list of CIDRs or addresses whose
	// X-Forwarded-For / X-Real-IP headers are believed. Empty trusts nobody.
	TrustedProxies    string        `mapstructure:"trusted_proxies"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	Source          string        `mapstructure:"source"`
}

// SecurityConfig holds token and password settings. JWTSecret signs both
// session and password reset tokens with HS256.
type SecurityConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	Issuer            string        `mapstructure:"issuer"`
	Audience          string        `mapstructure:"audience"`
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	ResetTTL          time.Duration `mapstructure:"reset_ttl"`
	BCryptCost        int           `mapstructure:"bcrypt_cost"`
	PasswordMinLength int           `mapstructure:"password_min_length"`
	ResetURL          string        `mapstructure:"reset_url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Capacity       int           `mapstructure:"capacity"`
	RefillTokens   int           `mapstructure:"refill_tokens"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
	TTL            time.Duration `mapstructure:"ttl"`
	Prefix         string        `mapstructure:"prefix"`
}

type BrokerConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

func (c BrokerConfig) Enabled() bool {
	return c.URL != ""
}

// AuditSinkConfig points at an HTTP collector that receives every audit event.
type AuditSinkConfig struct {
	URL         string        `mapstructure:"url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxWorkers  int           `mapstructure:"max_workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

func (c AuditSinkConfig) Enabled() bool {
	return c.URL != ""
}

// AuthzConfig is the static route policy used by the page gate.
type AuthzConfig struct {
	LoginPath    string              `mapstructure:"login_path"`
	PublicRoutes []string            `mapstructure:"public_routes"`
	RoleRoutes   map[string][]string `mapstructure:"role_routes"`
	RoleHomes    map[string]string   `mapstructure:"role_homes"`
	SuperRoles   []string            `mapstructure:"super_roles"`
}

type OAuthConfig struct {
	Google OAuthClientConfig `mapstructure:"google"`
}

// OAuthClientConfig registers this service with an identity provider.
// RedirectURL must match the callback registered with the provider.
type OAuthClientConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

func (c OAuthClientConfig) Enabled() bool {
	return c.ClientID != ""
}

func (c *OAuthClientConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.ClientSecret == "" {
		return errors.New("client_secret is required with client_id")
	}
	if _, err := url.ParseRequestURI(c.RedirectURL); err != nil {
		return fmt.Errorf("invalid redirect_url: %w", err)
	}
	return nil
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- SECRETS -----------------

// EnsureSigningSecret refuses a missing secret in production. Anywhere else it
// installs a random per-process secret and warns, so tokens never get signed
// with a guessable default.
func (c *Config) EnsureSigningSecret(lg *slog.Logger) error {
	if c.Security.JWTSecret != "" {
		return nil
	}
	if c.App.IsProduction() {
		return errors.New("security.jwt_secret is required in production")
	}

	secret, err := RandomSecret(32)
	if err != nil {
		return fmt.Errorf("generate ephemeral signing secret: %w", err)
	}
	c.Security.JWTSecret = secret
	if lg != nil {
		lg.Warn("no jwt signing secret configured; using an ephemeral secret, sessions will not survive a restart",
			"env", c.App.Env)
	}
	return nil
}

func RandomSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(c.App.IsProduction()); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.RateLimit.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("rate limit config: %v", err))
	}

	if err := c.AuditSink.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("audit sink config: %v", err))
	}

	if err := c.Authz.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("authz config: %v", err))
	}

	if err := c.OAuth.Google.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("oauth.google config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if c.FrontendURL != "" {
		if _, err := url.ParseRequestURI(c.FrontendURL); err != nil {
			return fmt.Errorf("invalid frontend_url: %w", err)
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *SecurityConfig) Validate(production bool) error {
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if production && len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters in production")
	}
	if c.Issuer == "" || c.Audience == "" {
		return errors.New("issuer and audience are required")
	}
	if c.SessionTTL <= 0 || c.ResetTTL <= 0 {
		return errors.New("session_ttl and reset_ttl must be positive")
	}
	if c.BCryptCost < 4 || c.BCryptCost > 31 {
		return fmt.Errorf("bcrypt_cost %d out of range", c.BCryptCost)
	}
	if c.PasswordMinLength < 8 {
		return errors.New("password_min_length must be at least 8")
	}
	return nil
}

func (c *RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Capacity <= 0 || c.RefillTokens <= 0 || c.RefillInterval <= 0 {
		return errors.New("capacity, refill_tokens and refill_interval must be positive")
	}
	return nil
}

func (c *AuditSinkConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if _, err := url.ParseRequestURI(c.URL); err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	return nil
}

func (c *AuthzConfig) Validate() error {
	if c.LoginPath == "" {
		return errors.New("login_path is required")
	}
	for role := range c.RoleRoutes {
		if _, ok := c.RoleHomes[role]; !ok {
			return fmt.Errorf("role %q has routes but no home", role)
		}
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (c *ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(c.TrustedProxies, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", item, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", item, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
