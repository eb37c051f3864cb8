package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeReset   Purpose = "password_reset"
)

// Claims is the payload of both session and reset tokens.
type Claims struct {
	Role    string  `json:"role,omitempty"`
	Email   string  `json:"email,omitempty"`
	Name    string  `json:"name,omitempty"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

type VerificationKind string

const (
	KindMalformed        VerificationKind = "malformed"
	KindBadSignature     VerificationKind = "bad_signature"
	KindExpired          VerificationKind = "expired"
	KindIssuerMismatch   VerificationKind = "issuer_mismatch"
	KindAudienceMismatch VerificationKind = "audience_mismatch"
	KindWrongPurpose     VerificationKind = "wrong_purpose"
	KindRevoked          VerificationKind = "revoked"
)

// VerificationError is returned for every rejected token. Callers reject the
// request regardless of Kind; Kind exists for logs.
type VerificationError struct {
	Kind VerificationKind
	Err  error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
	}
	return "token " + string(e.Kind)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

func (e *VerificationError) Is(target error) bool {
	t, ok := target.(*VerificationError)
	return ok && t.Kind == e.Kind
}

var (
	ErrTokenMalformed        = &VerificationError{Kind: KindMalformed}
	ErrTokenBadSignature     = &VerificationError{Kind: KindBadSignature}
	ErrTokenExpired          = &VerificationError{Kind: KindExpired}
	ErrTokenIssuerMismatch   = &VerificationError{Kind: KindIssuerMismatch}
	ErrTokenAudienceMismatch = &VerificationError{Kind: KindAudienceMismatch}
	ErrTokenWrongPurpose     = &VerificationError{Kind: KindWrongPurpose}
	ErrTokenRevoked          = &VerificationError{Kind: KindRevoked}
)

type TokenConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	SessionTTL time.Duration
	ResetTTL   time.Duration
}

// Token is a freshly minted, signed token.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
	TTL       time.Duration
}

type ExtraClaims struct {
	Email string
	Name  string
}

// TokenIssuer mints and verifies HS256 tokens. It is safe for concurrent use.
type TokenIssuer struct {
	cfg      TokenConfig
	now      func() time.Time
	denyList DenyList
	logger   *slog.Logger
}

type IssuerOption func(*TokenIssuer)

func WithClock(now func() time.Time) IssuerOption {
	return func(t *TokenIssuer) { t.now = now }
}

func WithDenyList(d DenyList) IssuerOption {
	return func(t *TokenIssuer) { t.denyList = d }
}

func WithIssuerLogger(lg *slog.Logger) IssuerOption {
	return func(t *TokenIssuer) { t.logger = lg }
}

func NewTokenIssuer(cfg TokenConfig, opts ...IssuerOption) (*TokenIssuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token issuer: signing secret is empty")
	}
	if cfg.SessionTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("token issuer: ttl must be positive")
	}
	t := &TokenIssuer{
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *TokenIssuer) SessionTTL() time.Duration {
	return t.cfg.SessionTTL
}

// IssueSession mints the login token carried by the session cookie.
func (t *TokenIssuer) IssueSession(userID string, role coreUser.Role, extra ExtraClaims) (Token, error) {
	return t.issue(userID, string(role), PurposeSession, t.cfg.SessionTTL, extra)
}

// IssueReset mints a password reset token. It carries no role and is never
// accepted as a session.
func (t *TokenIssuer) IssueReset(userID, email string) (Token, error) {
	return t.issue(userID, "", PurposeReset, t.cfg.ResetTTL, ExtraClaims{Email: email})
}

func (t *TokenIssuer) issue(subject, role string, purpose Purpose, ttl time.Duration, extra ExtraClaims) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("token issuer: subject is required")
	}
	now := t.now()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := &Claims{
		Role:    role,
		Email:   extra.Email,
		Name:    extra.Name,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    t.cfg.Issuer,
			Audience:  jwt.ClaimStrings{t.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.Secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ID: jti, ExpiresAt: claims.ExpiresAt.Time, TTL: ttl}, nil
}

// Verify checks signature, issuer, audience, expiry and purpose, then the
// deny-list. Every failure is a *VerificationError.
func (t *TokenIssuer) Verify(ctx context.Context, raw string, purpose Purpose) (*Claims, error) {
	if raw == "" {
		return nil, &VerificationError{Kind: KindMalformed, Err: errors.New("empty token")}
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// non-strict base64 ignores the spare bits of the final character
		jwt.WithStrictDecoding(),
		jwt.WithIssuer(t.cfg.Issuer),
		jwt.WithAudience(t.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Subject == "" {
		return nil, &VerificationError{Kind: KindMalformed, Err: errors.New("missing subject")}
	}
	if claims.Purpose != purpose {
		return nil, &VerificationError{Kind: KindWrongPurpose, Err: fmt.Errorf("want %s, got %q", purpose, claims.Purpose)}
	}
	if purpose == PurposeSession {
		if _, ok := coreUser.ParseRole(claims.Role); !ok {
			return nil, &VerificationError{Kind: KindMalformed, Err: fmt.Errorf("unknown role %q", claims.Role)}
		}
	}

	if t.denyList != nil && claims.ID != "" {
		revoked, err := t.denyList.IsRevoked(ctx, claims.ID)
		if err != nil {
			// fail open, the signature and expiry checks above still hold
			t.logger.Warn("token deny-list lookup failed", "jti", claims.ID, "error", err)
		} else if revoked {
			return nil, &VerificationError{Kind: KindRevoked}
		}
	}

	return claims, nil
}

// Revoke deny-lists the token until it would have expired anyway.
func (t *TokenIssuer) Revoke(ctx context.Context, claims *Claims) error {
	if t.denyList == nil || claims == nil || claims.ID == "" {
		return nil
	}
	remaining := claims.ExpiresAtTime().Sub(t.now())
	if remaining <= 0 {
		return nil
	}
	return t.denyList.Revoke(ctx, claims.ID, remaining)
}

func classify(err error) *VerificationError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &VerificationError{Kind: KindMalformed, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &VerificationError{Kind: KindBadSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &VerificationError{Kind: KindExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return &VerificationError{Kind: KindIssuerMismatch, Err: err}
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return &VerificationError{Kind: KindAudienceMismatch, Err: err}
	default:
		return &VerificationError{Kind: KindMalformed, Err: err}
	}
}
