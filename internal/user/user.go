package user

import (
	"context"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
)

var ErrUserNotFound = internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)

type Repository interface {
	GetByID(ctx context.Context, id string) (*coreUser.User, error)
}

type ServiceAPI interface {
	GetProfile(ctx context.Context, id string) (*coreUser.User, error)
}

// ProfileResponse is the caller's own view of their account.
type ProfileResponse struct {
	ID               string                     `json:"id"`
	Email            string                     `json:"email"`
	Name             string                     `json:"name"`
	Role             string                     `json:"role"`
	CompanyProfile   *coreUser.CompanyProfile   `json:"companyProfile,omitempty"`
	CandidateProfile *coreUser.CandidateProfile `json:"candidateProfile,omitempty"`
	LastLogin        *time.Time                 `json:"lastLogin,omitempty"`
	CreatedAt        time.Time                  `json:"createdAt"`
}

func NewProfileResponse(u *coreUser.User) ProfileResponse {
	return ProfileResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Role:             string(u.Role),
		CompanyProfile:   u.CompanyProfile,
		CandidateProfile: u.CandidateProfile,
		LastLogin:        u.LastLogin,
		CreatedAt:        u.CreatedAt,
	}
}
