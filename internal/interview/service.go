package interview

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/acuhire/internal"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Redeem is read-only. It never tells a wrong code apart from the code of a
// closed posting.
func (s *Service) Redeem(ctx context.Context, code string) (*JobRef, error) {
	code = NormalizeCode(code)
	if code == "" || len(code) > maxCodeLength {
		return nil, ErrPasscodeNotFound
	}

	ref, err := s.repo.FindActiveByPasscode(ctx, code)
	if err != nil {
		return nil, internal.NewInternalError("failed to verify interview code", err)
	}
	if ref == nil {
		return nil, ErrPasscodeNotFound
	}

	s.logger.Debug("interview code redeemed", "job_id", ref.ID)
	return ref, nil
}
