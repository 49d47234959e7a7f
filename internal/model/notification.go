package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationMessageReceived NotificationType = "message_received"
	NotificationMessageRead     NotificationType = "message_read"
	NotificationUserEvent       NotificationType = "user_event"
)

type Notification struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	UserID      uuid.UUID        `json:"user_id" db:"user_id"`
	Type        NotificationType `json:"type" db:"notification_type"`
	MessageID   *uuid.UUID       `json:"message_id,omitempty" db:"message_id"`
	Title       string           `json:"title" db:"title"`
	Description string           `json:"description" db:"description"`
	Read        bool             `json:"read" db:"is_read"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	ReadAt      *time.Time       `json:"read_at,omitempty" db:"read_at"`
}

// NotificationEvent is the payload handed to the delivery boundary.
type NotificationEvent struct {
	NotificationID uuid.UUID        `json:"notification_id"`
	UserID         uuid.UUID        `json:"user_id"`
	Type           NotificationType `json:"type"`
	MessageID      *uuid.UUID       `json:"message_id,omitempty"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	CreatedAt      time.Time        `json:"created_at"`
}
