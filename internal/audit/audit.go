package audit

import (
	"context"
	"net/http"
	"time"

	datamodel "github.com/frahmantamala/acuhire/internal/core/datamodel/audit"
	"github.com/frahmantamala/acuhire/internal/transport"
)

type ActionType string

const (
	ActionUserLogin              ActionType = "user_login"
	ActionUserLogout             ActionType = "user_logout"
	ActionUserRegister           ActionType = "user_register"
	ActionPasswordResetRequested ActionType = "password_reset_requested"
	ActionPasswordReset          ActionType = "password_reset"
	ActionDataAccess             ActionType = "data_access"
	ActionDataModification       ActionType = "data_modification"
	ActionDataDeletion           ActionType = "data_deletion"
	ActionSecurityEvent          ActionType = "security_event"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var ErrImmutableRecord = datamodel.ErrImmutableRecord

type (
	ImmutableRecordError = datamodel.ImmutableRecordError
	Details              = datamodel.Details
)

// Entry is one security-relevant event. UserID is empty for events that
// happen before the caller is known, such as a failed login.
type Entry struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId,omitempty"`
	ActionType ActionType `json:"actionType"`
	Timestamp  time.Time  `json:"timestamp"`
	IPAddress  string     `json:"ipAddress,omitempty"`
	UserAgent  string     `json:"userAgent,omitempty"`
	Details    *Details   `json:"details,omitempty"`
}

// RequestMeta is the request-derived part of an entry.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

func MetaFromRequest(r *http.Request) RequestMeta {
	return RequestMeta{IPAddress: transport.ClientIP(r), UserAgent: r.UserAgent()}
}

func NewEntry(action ActionType, userID string, meta RequestMeta, details *Details) Entry {
	return Entry{
		UserID:     userID,
		ActionType: action,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details:    details,
	}
}

type Filter struct {
	UserID     string
	ActionType ActionType
	Limit      int
	Offset     int
}

// Recorder is what other services depend on.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type ServiceAPI interface {
	Recorder
	List(ctx context.Context, f Filter) (*Page, error)
}

// Page is one slice of the log plus the bounds that produced it.
type Page struct {
	Items  []Entry `json:"items"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

type RepositoryAPI interface {
	Append(ctx context.Context, log *datamodel.AuditLog) error
	List(ctx context.Context, f Filter) ([]*datamodel.AuditLog, int64, error)
}

func ToDataModel(e *Entry) *datamodel.AuditLog {
	var userID *string
	if e.UserID != "" {
		id := e.UserID
		userID = &id
	}
	return &datamodel.AuditLog{
		ID:         e.ID,
		UserID:     userID,
		ActionType: string(e.ActionType),
		Timestamp:  e.Timestamp,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		Details:    e.Details,
	}
}

func FromDataModel(d *datamodel.AuditLog) Entry {
	e := Entry{
		ID:         d.ID,
		ActionType: ActionType(d.ActionType),
		Timestamp:  d.Timestamp,
		IPAddress:  d.IPAddress,
		UserAgent:  d.UserAgent,
		Details:    d.Details,
	}
	if d.UserID != nil {
		e.UserID = *d.UserID
	}
	return e
}
