package user

import "time"

// User is the persisted credential record. Email is stored lower-cased.
type User struct {
	ID               string            `gorm:"column:id;primaryKey"`
	Email            string            `gorm:"column:email;uniqueIndex;not null"`
	Name             string            `gorm:"column:name;not null"`
	PasswordHash     string            `gorm:"column:password_hash;not null"`
	Role             string            `gorm:"column:role;not null"`
	CompanyProfile   *CompanyProfile   `gorm:"column:company_profile;serializer:json"`
	CandidateProfile *CandidateProfile `gorm:"column:candidate_profile;serializer:json"`
	LastLogin        *time.Time        `gorm:"column:last_login"`
	CreatedAt        time.Time         `gorm:"column:created_at"`
	UpdatedAt        time.Time         `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}

type CompanyProfile struct {
	CompanyName string `json:"companyName"`
	Website     string `json:"website,omitempty"`
	Address     string `json:"address,omitempty"`
}

type SocialLinks struct {
	LinkedIn  string `json:"linkedin,omitempty"`
	GitHub    string `json:"github,omitempty"`
	Portfolio string `json:"portfolio,omitempty"`
}

type CandidateProfile struct {
	Phone          string      `json:"phone,omitempty"`
	ResumePath     string      `json:"resumePath,omitempty"`
	SocialLinks    SocialLinks `json:"socialLinks"`
	Education      []string    `json:"education,omitempty"`
	Certifications []string    `json:"certifications,omitempty"`
}
