package auth

import (
	"fmt"
	"strings"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/core/common/validation"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
)

// bcrypt ignores input past 72 bytes
const maxPasswordBytes = 72

// RegisterDTO accepts the nested profile blobs as well as the flat fields the
// signup forms send.
type RegisterDTO struct {
	Email            string                     `json:"email"`
	Password         string                     `json:"password"`
	Role             string                     `json:"role"`
	Name             string                     `json:"name"`
	FirstName        string                     `json:"firstName,omitempty"`
	LastName         string                     `json:"lastName,omitempty"`
	CompanyName      string                     `json:"companyName,omitempty"`
	Phone            string                     `json:"phone,omitempty"`
	LinkedIn         string                     `json:"linkedin,omitempty"`
	CompanyProfile   *coreUser.CompanyProfile   `json:"companyProfile,omitempty"`
	CandidateProfile *coreUser.CandidateProfile `json:"candidateProfile,omitempty"`
}

// Normalize folds flat fields into the profile for the chosen role.
func (d *RegisterDTO) Normalize() {
	d.Email = validation.NormalizeEmail(d.Email)
	d.Role = strings.ToLower(strings.TrimSpace(d.Role))
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		d.Name = strings.TrimSpace(strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName))
	}

	switch coreUser.Role(d.Role) {
	case coreUser.RoleCompany:
		if d.CompanyProfile == nil {
			d.CompanyProfile = &coreUser.CompanyProfile{}
		}
		d.CompanyProfile.CompanyName = strings.TrimSpace(d.CompanyProfile.CompanyName)
		if d.CompanyProfile.CompanyName == "" {
			d.CompanyProfile.CompanyName = strings.TrimSpace(d.CompanyName)
		}
		if d.CompanyProfile.CompanyName == "" {
			d.CompanyProfile.CompanyName = d.Name
		}
		if d.Name == "" {
			d.Name = d.CompanyProfile.CompanyName
		}
		d.CandidateProfile = nil
	case coreUser.RoleCandidate:
		if d.CandidateProfile == nil {
			d.CandidateProfile = &coreUser.CandidateProfile{}
		}
		d.CandidateProfile.Phone = strings.TrimSpace(d.CandidateProfile.Phone)
		d.CandidateProfile.SocialLinks.LinkedIn = strings.TrimSpace(d.CandidateProfile.SocialLinks.LinkedIn)
		if d.CandidateProfile.Phone == "" {
			d.CandidateProfile.Phone = strings.TrimSpace(d.Phone)
		}
		if d.CandidateProfile.SocialLinks.LinkedIn == "" {
			d.CandidateProfile.SocialLinks.LinkedIn = strings.TrimSpace(d.LinkedIn)
		}
		d.CompanyProfile = nil
	}
}

// Validate expects Normalize to have run.
func (d RegisterDTO) Validate(minPassword int) *internal.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required().Email()
	v.Field("password", d.Password).Required().Password(minPassword).Custom(maxBytes("password"))
	v.Field("role", d.Role).Required().OneOf(internal.ErrCodeInvalidRole, string(coreUser.RoleCandidate), string(coreUser.RoleCompany))
	v.Field("name", d.Name).Required().MaxLength(200)

	// candidates are reached by phone and vetted through LinkedIn
	switch coreUser.Role(d.Role) {
	case coreUser.RoleCandidate:
		var phone, linkedin string
		if d.CandidateProfile != nil {
			phone = d.CandidateProfile.Phone
			linkedin = d.CandidateProfile.SocialLinks.LinkedIn
		}
		v.Field("candidateProfile.phone", phone).Required().MaxLength(32)
		v.Field("candidateProfile.socialLinks.linkedin", linkedin).Required().MaxLength(500)
	case coreUser.RoleCompany:
		var company string
		if d.CompanyProfile != nil {
			company = d.CompanyProfile.CompanyName
		}
		v.Field("companyProfile.companyName", company).Required().MaxLength(200)
	}
	return v.Validate()
}

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required()
	v.Field("password", d.Password).Required()
	return v.Validate()
}

type ForgotPasswordDTO struct {
	Email string `json:"email"`
}

func (d ForgotPasswordDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required().Email()
	return v.Validate()
}

type ResetPasswordDTO struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (d ResetPasswordDTO) Validate(minPassword int) *internal.AppError {
	v := validation.NewValidator()
	v.Field("token", d.Token).Required()
	v.Field("newPassword", d.NewPassword).Required().Password(minPassword).Custom(maxBytes("newPassword"))
	return v.Validate()
}

func maxBytes(field string) func(interface{}) *internal.AppError {
	return func(value interface{}) *internal.AppError {
		if s, _ := value.(string); len(s) > maxPasswordBytes {
			return internal.NewValidationFieldError(field, fmt.Sprintf("%s must not exceed %d bytes", field, maxPasswordBytes), internal.ErrCodeWeakPassword)
		}
		return nil
	}
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type RegisterResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type SessionResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expiresAt"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func NewUserResponse(u *coreUser.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role)}
}
