package auth

import (
	"context"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/audit"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
)

var (
	ErrInvalidCredentials = internal.NewUnauthorizedError("Invalid email or password", internal.ErrCodeInvalidCredentials)
	ErrEmailTaken         = internal.NewConflictError("An account with this email already exists", internal.ErrCodeEmailTaken)
	ErrInvalidResetToken  = internal.NewValidationError("Reset token is invalid or has expired", internal.ErrCodeInvalidResetToken)
)

// CredentialStore persists users. Create must return ErrEmailTaken when the
// storage uniqueness constraint on email fires.
type CredentialStore interface {
	Create(ctx context.Context, u *coreUser.User) error
	GetByEmail(ctx context.Context, email string) (*coreUser.User, error)
	GetByID(ctx context.Context, id string) (*coreUser.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// Tokens is the subset of TokenIssuer the service needs.
type Tokens interface {
	IssueSession(userID string, role coreUser.Role, extra ExtraClaims) (Token, error)
	IssueReset(userID, email string) (Token, error)
	Verify(ctx context.Context, raw string, purpose Purpose) (*Claims, error)
	Revoke(ctx context.Context, claims *Claims) error
}

type ServiceAPI interface {
	Register(ctx context.Context, dto RegisterDTO, meta audit.RequestMeta) (*coreUser.User, error)
	Login(ctx context.Context, dto LoginDTO, meta audit.RequestMeta) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string, meta audit.RequestMeta)
	ForgotPassword(ctx context.Context, dto ForgotPasswordDTO, meta audit.RequestMeta) error
	ResetPassword(ctx context.Context, dto ResetPasswordDTO, meta audit.RequestMeta) error
}

type LoginResult struct {
	User  *coreUser.User
	Token Token
}
