package user

import (
	"strings"
	"time"

	datamodel "github.com/frahmantamala/acuhire/internal/core/datamodel/user"
)

// Role is closed: values outside the three constants never leave ParseRole.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleCompany   Role = "company"
	RoleAdmin     Role = "admin"
)

var roles = []Role{RoleCandidate, RoleCompany, RoleAdmin}

func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// Registrable reports whether r may be chosen at public signup.
func (r Role) Registrable() bool {
	return r == RoleCandidate || r == RoleCompany
}

func (r Role) String() string {
	return string(r)
}

type (
	CompanyProfile   = datamodel.CompanyProfile
	CandidateProfile = datamodel.CandidateProfile
	SocialLinks      = datamodel.SocialLinks
)

// User is the domain view of a credential record.
type User struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	Role             Role
	CompanyProfile   *CompanyProfile
	CandidateProfile *CandidateProfile
	LastLogin        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func ToDataModel(u *User) *datamodel.User {
	if u == nil {
		return nil
	}
	return &datamodel.User{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		PasswordHash:     u.PasswordHash,
		Role:             string(u.Role),
		CompanyProfile:   u.CompanyProfile,
		CandidateProfile: u.CandidateProfile,
		LastLogin:        u.LastLogin,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// FromDataModel maps a stored row. An unknown stored role is kept verbatim so
// that the authorization layer treats it as unauthenticated.
func FromDataModel(d *datamodel.User) *User {
	if d == nil {
		return nil
	}
	return &User{
		ID:               d.ID,
		Email:            d.Email,
		Name:             d.Name,
		PasswordHash:     d.PasswordHash,
		Role:             Role(d.Role),
		CompanyProfile:   d.CompanyProfile,
		CandidateProfile: d.CandidateProfile,
		LastLogin:        d.LastLogin,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}
