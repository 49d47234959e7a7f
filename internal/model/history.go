package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageHistory is an immutable snapshot of a message taken before an
// edit was committed.
type MessageHistory struct {
	ID         uuid.UUID `json:"id" db:"id"`
	MessageID  uuid.UUID `json:"message_id" db:"message_id"`
	OldContent string    `json:"old_content" db:"old_content"`
	OldSubject string    `json:"old_subject" db:"old_subject"`
	EditedBy   uuid.UUID `json:"edited_by" db:"edited_by"`
	EditedAt   time.Time `json:"edited_at" db:"edited_at"`
}
