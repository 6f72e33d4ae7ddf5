package model

import "time"

// Envelope is the payload published to Kafka by the queued transport.
type Envelope struct {
	ID       string    `json:"id"` // ULID
	Email    Email     `json:"email"`
	QueuedAt time.Time `json:"queued_at"`
}
