package user

import (
	"context"

	"github.com/frahmantamala/acuhire/internal"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetProfile(ctx context.Context, id string) (*coreUser.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
