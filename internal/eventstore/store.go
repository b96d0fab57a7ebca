// Package eventstore persists the generation-cycle journal: every status
// transition a daemon publishes is appended here so cycle history survives
// the in-memory stream's replay-none semantics.
package eventstore

import (
	"context"
	"time"
)

// Event is one persisted journal entry.
type Event struct {
	ID        int64             `json:"id"`
	CycleID   string            `json:"cycle_id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   []byte            `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Journal defines the interface for persisting and retrieving cycle events.
type Journal interface {
	// Append adds a new event to the journal.
	Append(ctx context.Context, cycleID, eventType string, payload []byte, metadata map[string]string) error

	// GetByCycleID retrieves all events for a specific cycle, oldest first.
	GetByCycleID(ctx context.Context, cycleID string) ([]Event, error)

	// GetRange retrieves events within a time range, oldest first.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the journal and releases resources.
	Close() error
}
