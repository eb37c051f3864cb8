package job

import "time"

const (
	StatusActive = "active"
	StatusClosed = "closed"
)

type Job struct {
	ID          string     `gorm:"column:id;primaryKey"`
	CompanyID   string     `gorm:"column:company_id;not null;index"`
	Title       string     `gorm:"column:title;not null"`
	Slug        string     `gorm:"column:slug;not null"`
	Description string     `gorm:"column:description"`
	Location    string     `gorm:"column:location"`
	Passcode    string     `gorm:"column:passcode;not null;uniqueIndex:idx_jobs_active_passcode,where:status = 'active'"`
	Status      string     `gorm:"column:status;not null;default:active"`
	ClosedAt    *time.Time `gorm:"column:closed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}
