package model

import (
	"time"

	"github.com/google/uuid"
)

// Message is a direct message between two users. ParentID links a reply
// to the message it answers; a nil parent marks a thread root.
type Message struct {
	Base
	SenderID   uuid.UUID  `json:"sender_id" db:"sender_id"`
	ReceiverID uuid.UUID  `json:"receiver_id" db:"receiver_id"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	Subject    string     `json:"subject" db:"subject"`
	Content    string     `json:"content" db:"content"`
	Read       bool       `json:"read" db:"is_read"`
	Edited     bool       `json:"edited" db:"edited"`
}

// IsParticipant reports whether userID sent or received the message.
func (m *Message) IsParticipant(userID uuid.UUID) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// UnreadMessage is the summary projection served by the unread index.
type UnreadMessage struct {
	ID             uuid.UUID `json:"id" db:"id"`
	SenderID       uuid.UUID `json:"sender_id" db:"sender_id"`
	SenderUsername string    `json:"sender_username" db:"sender_username"`
	SenderEmail    string    `json:"sender_email" db:"sender_email"`
	Subject        string    `json:"subject" db:"subject"`
	Content        string    `json:"content" db:"content"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	Read           bool      `json:"read" db:"is_read"`
}

// CreateMessageRequest represents message creation parameters
type CreateMessageRequest struct {
	ReceiverID string  `json:"receiver_id" binding:"required,uuid"`
	ParentID   *string `json:"parent_id" binding:"omitempty,uuid"`
	Subject    string  `json:"subject" binding:"max=200"`
	Content    string  `json:"content" binding:"required"`
}

// UpdateMessageRequest represents message edit parameters. Nil fields keep
// their stored value.
type UpdateMessageRequest struct {
	Subject *string `json:"subject" binding:"omitempty,max=200"`
	Content *string `json:"content" binding:"omitempty,min=1"`
}

// MessageInput is the validated input of a send.
type MessageInput struct {
	ReceiverID uuid.UUID
	ParentID   *uuid.UUID
	Subject    string
	Content    string
}

// MessageEdit is the validated input of an edit.
type MessageEdit struct {
	Subject *string
	Content *string
}
