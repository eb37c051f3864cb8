package audit

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrImmutableRecord matches every ImmutableRecordError via errors.Is.
var ErrImmutableRecord = errors.New("audit log entries are immutable")

type ImmutableRecordError struct {
	ID string
	Op string
}

func (e *ImmutableRecordError) Error() string {
	return fmt.Sprintf("audit log %s: %s rejected, entries are append-only", e.ID, e.Op)
}

func (e *ImmutableRecordError) Is(target error) bool {
	return target == ErrImmutableRecord
}

type Details struct {
	Resource     string `json:"resource,omitempty"`
	ResourceID   string `json:"resourceId,omitempty"`
	Description  string `json:"description,omitempty"`
	Status       string `json:"status,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type AuditLog struct {
	ID         string    `gorm:"column:id;primaryKey"`
	UserID     *string   `gorm:"column:user_id;index"`
	ActionType string    `gorm:"column:action_type;not null;index"`
	Timestamp  time.Time `gorm:"column:timestamp;not null;index"`
	IPAddress  string    `gorm:"column:ip_address"`
	UserAgent  string    `gorm:"column:user_agent"`
	Details    *Details  `gorm:"column:details;serializer:json"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeUpdate rejects every update, including Save on a stored row.
func (l *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return &ImmutableRecordError{ID: l.ID, Op: "update"}
}

func (l *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return &ImmutableRecordError{ID: l.ID, Op: "delete"}
}
