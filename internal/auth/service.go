package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/audit"
	"github.com/frahmantamala/acuhire/internal/core/common/validation"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	"github.com/google/uuid"
)

type Options struct {
	PasswordMinLength int
}

// Service is the main auth service with dependencies
type Service struct {
	store    CredentialStore
	hasher   Hasher
	tokens   Tokens
	audit    audit.Recorder
	notifier ResetNotifier
	logger   *slog.Logger
	opts     Options
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewService(store CredentialStore, hasher Hasher, tokens Tokens, recorder audit.Recorder, notifier ResetNotifier, logger *slog.Logger, opts Options) *Service {
	if opts.PasswordMinLength < 8 {
		opts.PasswordMinLength = 8
	}
	return &Service{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		audit:    recorder,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

func (s *Service) Register(ctx context.Context, dto RegisterDTO, meta audit.RequestMeta) (*coreUser.User, error) {
	dto.Normalize()
	if err := dto.Validate(s.opts.PasswordMinLength); err != nil {
		return nil, err
	}
	role, ok := coreUser.ParseRole(dto.Role)
	if !ok || !role.Registrable() {
		return nil, internal.NewValidationFieldError("role", "role must be candidate or company", internal.ErrCodeInvalidRole)
	}

	hash, err := s.hasher.Hash(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to register user", err)
	}

	now := s.now().UTC()
	u := &coreUser.User{
		ID:               uuid.NewString(),
		Email:            dto.Email,
		Name:             dto.Name,
		PasswordHash:     hash,
		Role:             role,
		CompanyProfile:   dto.CompanyProfile,
		CandidateProfile: dto.CandidateProfile,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// the store's unique index decides, there is no pre-check to race
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.record(ctx, audit.ActionUserRegister, "", meta, audit.StatusFailure, "email already registered")
			return nil, ErrEmailTaken
		}
		return nil, internal.NewInternalError("failed to register user", err)
	}

	s.logger.Info("user registered", "user_id", u.ID, "role", u.Role)
	s.record(ctx, audit.ActionUserRegister, u.ID, meta, audit.StatusSuccess, "")
	return u, nil
}

func (s *Service) Login(ctx context.Context, dto LoginDTO, meta audit.RequestMeta) (*LoginResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	email := validation.NormalizeEmail(dto.Email)

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, internal.NewInternalError("failed to authenticate", err)
	}
	if u == nil {
		// burn the same bcrypt time as a real comparison
		s.hasher.Verify(dto.Password, s.dummy())
		s.record(ctx, audit.ActionSecurityEvent, "", meta, audit.StatusFailure, "login failed: unknown email")
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(dto.Password, u.PasswordHash) {
		s.record(ctx, audit.ActionSecurityEvent, u.ID, meta, audit.StatusFailure, "login failed: wrong password")
		return nil, ErrInvalidCredentials
	}
	if _, ok := coreUser.ParseRole(string(u.Role)); !ok {
		return nil, internal.NewInternalError("failed to authenticate", fmt.Errorf("user %s has unknown role %q", u.ID, u.Role))
	}

	return s.startSession(ctx, u, meta, "")
}

func (s *Service) startSession(ctx context.Context, u *coreUser.User, meta audit.RequestMeta, note string) (*LoginResult, error) {
	tok, err := s.tokens.IssueSession(u.ID, u.Role, ExtraClaims{Email: u.Email, Name: u.Name})
	if err != nil {
		return nil, internal.NewInternalError("failed to issue session", err)
	}

	now := s.now().UTC()
	if err := s.store.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn("failed to update last login", "user_id", u.ID, "error", err)
	} else {
		u.LastLogin = &now
	}

	s.record(ctx, audit.ActionUserLogin, u.ID, meta, audit.StatusSuccess, note)
	return &LoginResult{User: u, Token: tok}, nil
}

// Logout revokes the presented session token when it is still valid. The
// caller clears the cookie regardless.
func (s *Service) Logout(ctx context.Context, rawToken string, meta audit.RequestMeta) {
	if rawToken == "" {
		return
	}
	claims, err := s.tokens.Verify(ctx, rawToken, PurposeSession)
	if err != nil {
		return
	}
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		s.logger.Warn("failed to revoke session token", "user_id", claims.Subject, "error", err)
	}
	s.record(ctx, audit.ActionUserLogout, claims.Subject, meta, audit.StatusSuccess, "")
}

// ForgotPassword answers identically whether or not the email is registered.
func (s *Service) ForgotPassword(ctx context.Context, dto ForgotPasswordDTO, meta audit.RequestMeta) error {
	dto.Email = validation.NormalizeEmail(dto.Email)
	if err := dto.Validate(); err != nil {
		return err
	}

	u, err := s.store.GetByEmail(ctx, dto.Email)
	if err != nil {
		return internal.NewInternalError("failed to process request", err)
	}
	if u == nil {
		s.record(ctx, audit.ActionPasswordResetRequested, "", meta, audit.StatusFailure, "unknown email")
		return nil
	}

	tok, err := s.tokens.IssueReset(u.ID, u.Email)
	if err != nil {
		return internal.NewInternalError("failed to process request", err)
	}
	if s.notifier != nil {
		if err := s.notifier.SendPasswordReset(ctx, u, tok); err != nil {
			s.logger.Error("failed to deliver password reset", "user_id", u.ID, "error", err)
		}
	}
	s.record(ctx, audit.ActionPasswordResetRequested, u.ID, meta, audit.StatusSuccess, "")
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, dto ResetPasswordDTO, meta audit.RequestMeta) error {
	if err := dto.Validate(s.opts.PasswordMinLength); err != nil {
		return err
	}

	claims, err := s.tokens.Verify(ctx, dto.Token, PurposeReset)
	if err != nil {
		var verr *VerificationError
		if errors.As(err, &verr) {
			s.logger.Info("reset token rejected", "kind", verr.Kind)
		}
		s.record(ctx, audit.ActionSecurityEvent, "", meta, audit.StatusFailure, "password reset with invalid token")
		return ErrInvalidResetToken
	}

	u, err := s.store.GetByID(ctx, claims.Subject)
	if err != nil {
		return internal.NewInternalError("failed to reset password", err)
	}
	if u == nil || u.Email != claims.Email {
		return ErrInvalidResetToken
	}

	hash, err := s.hasher.Hash(dto.NewPassword)
	if err != nil {
		return internal.NewInternalError("failed to reset password", err)
	}
	if err := s.store.UpdatePassword(ctx, u.ID, hash); err != nil {
		return internal.NewInternalError("failed to reset password", err)
	}
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		s.logger.Warn("failed to revoke reset token", "user_id", u.ID, "error", err)
	}

	s.record(ctx, audit.ActionPasswordReset, u.ID, meta, audit.StatusSuccess, "")
	return nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.logger.Warn("failed to prepare timing hash", "error", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *Service) record(ctx context.Context, action audit.ActionType, userID string, meta audit.RequestMeta, status, msg string) {
	details := &audit.Details{Resource: "auth", ResourceID: userID, Status: status}
	if status == audit.StatusFailure {
		details.ErrorMessage = msg
	} else {
		details.Description = msg
	}
	audit.RecordOrWarn(ctx, s.audit, s.logger, audit.NewEntry(action, userID, meta, details))
}
