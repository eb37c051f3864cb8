package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/audit"
	"github.com/frahmantamala/acuhire/internal/core/common/validation"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var ErrUnverifiedIdentity = internal.NewUnauthorizedError("The identity provider did not verify this email", internal.ErrCodeOAuthFailed)

// ExternalIdentity is an account an identity provider vouches for.
type ExternalIdentity struct {
	Provider      string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityProvider runs the authorization code flow against one provider.
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state, verifier string) string
	Identify(ctx context.Context, code, verifier string) (*ExternalIdentity, error)
}

type ExternalSignIn interface {
	SignInExternal(ctx context.Context, id ExternalIdentity, meta audit.RequestMeta) (*LoginResult, error)
}

// SignInExternal starts a session for the account owning a provider-verified
// email. Unknown emails become candidates; existing accounts keep their role
// and password.
func (s *Service) SignInExternal(ctx context.Context, id ExternalIdentity, meta audit.RequestMeta) (*LoginResult, error) {
	email := validation.NormalizeEmail(id.Email)
	if !validation.IsEmail(email) || !id.EmailVerified {
		s.record(ctx, audit.ActionSecurityEvent, "", meta, audit.StatusFailure, id.Provider+" sign-in without a verified email")
		return nil, ErrUnverifiedIdentity
	}

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, internal.NewInternalError("failed to authenticate", err)
	}
	if u == nil {
		if u, err = s.createExternal(ctx, email, id, meta); err != nil {
			return nil, err
		}
	}
	if _, ok := coreUser.ParseRole(string(u.Role)); !ok {
		return nil, internal.NewInternalError("failed to authenticate", fmt.Errorf("user %s has unknown role %q", u.ID, u.Role))
	}

	return s.startSession(ctx, u, meta, id.Provider+" sign-in")
}

func (s *Service) createExternal(ctx context.Context, email string, id ExternalIdentity, meta audit.RequestMeta) (*coreUser.User, error) {
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = email[:strings.IndexByte(email, '@')]
	}

	// nobody ever learns this password; the account signs in through the provider
	// or after a reset
	secret, err := internal.RandomSecret(32)
	if err != nil {
		return nil, internal.NewInternalError("failed to register user", err)
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, internal.NewInternalError("failed to register user", err)
	}

	now := s.now().UTC()
	u := &coreUser.User{
		ID:               uuid.NewString(),
		Email:            email,
		Name:             name,
		PasswordHash:     hash,
		Role:             coreUser.RoleCandidate,
		CandidateProfile: &coreUser.CandidateProfile{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		if !errors.Is(err, ErrEmailTaken) {
			return nil, internal.NewInternalError("failed to register user", err)
		}
		// a concurrent signup won the email
		existing, gerr := s.store.GetByEmail(ctx, email)
		if gerr != nil || existing == nil {
			return nil, internal.NewInternalError("failed to register user", err)
		}
		return existing, nil
	}

	s.logger.Info("user registered", "user_id", u.ID, "role", u.Role, "provider", id.Provider)
	s.record(ctx, audit.ActionUserRegister, u.ID, meta, audit.StatusSuccess, "registered via "+id.Provider)
	return u, nil
}

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider signs users in with Google using the code flow and PKCE.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

type GoogleOption func(*GoogleProvider)

// WithGoogleEndpoints points the provider at other authorization, token and
// userinfo URLs.
func WithGoogleEndpoints(ep oauth2.Endpoint, userInfoURL string) GoogleOption {
	return func(g *GoogleProvider) {
		g.config.Endpoint = ep
		g.userInfoURL = userInfoURL
	}
}

func NewGoogleProvider(cfg internal.OAuthClientConfig, opts ...GoogleOption) *GoogleProvider {
	g := &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GoogleProvider) Name() string {
	return "google"
}

func (g *GoogleProvider) AuthCodeURL(state, verifier string) string {
	return g.config.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

func (g *GoogleProvider) Identify(ctx context.Context, code, verifier string) (*ExternalIdentity, error) {
	tok, err := g.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.config.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var info struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &ExternalIdentity{
		Provider:      g.Name(),
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
	}, nil
}
