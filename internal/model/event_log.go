package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventUserCreated      EventType = "user_created"
	EventUserUpdated      EventType = "user_updated"
	EventUserDeleted      EventType = "user_deleted"
	EventNotificationSent EventType = "notification_sent"
	EventMessageEdited    EventType = "message_edited"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventUserCreated, EventUserUpdated, EventUserDeleted, EventNotificationSent, EventMessageEdited:
		return true
	}
	return false
}

// EventLog is an append-only audit entry. RelatedUserID is a plain id and
// may outlive the user it names.
type EventLog struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	EventType     EventType  `json:"event_type" db:"event_type"`
	RelatedUserID *uuid.UUID `json:"related_user_id,omitempty" db:"related_user_id"`
	Description   string     `json:"description" db:"description"`
	Metadata      JSONMap    `json:"metadata" db:"metadata"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// EventLogFilter narrows an event log listing.
type EventLogFilter struct {
	EventType     EventType
	RelatedUserID *uuid.UUID
	Limit         int
	Offset        int
}
