// Package messaging is the delivery boundary notifications leave the
// service through.
package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Broker publishes already-encoded payloads to a named channel.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

// Envelope is what subscribers on the notifications channel receive.
type Envelope struct {
	EventID   uuid.UUID       `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
