package events

import (
	"time"

	"github.com/google/uuid"
)

const EventTypeAuditRecorded = "audit.recorded"

// AuditRecordedEvent is published after an audit entry has been stored.
type AuditRecordedEvent struct {
	BaseEvent
	EntryID    string `json:"entry_id"`
	ActionType string `json:"action_type"`
	UserID     string `json:"user_id,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	Status     string `json:"status,omitempty"`
}

func NewAuditRecordedEvent(entryID, actionType, userID, ip, status string, at time.Time) *AuditRecordedEvent {
	return &AuditRecordedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAuditRecorded,
			Timestamp: at,
		},
		EntryID:    entryID,
		ActionType: actionType,
		UserID:     userID,
		IPAddress:  ip,
		Status:     status,
	}
}
