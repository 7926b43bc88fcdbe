// Package audit records application credential lifecycle events.
package audit

import (
	"context"
	"time"
)

// Action is what happened to the audited resource.
type Action string

const (
	ActionCreated Action = "created"
	ActionDeleted Action = "deleted"
)

// Event is a single audit record.
type Event struct {
	ID           string    `json:"id"`
	Action       Action    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Initiator    string    `json:"initiator,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Format defines the serialization format for audit logs
type Format interface {
	// Format serializes an event. It may modify the event in place.
	Format(ctx context.Context, event *Event) ([]byte, error)

	// Name returns the format name
	Name() string
}

// Sink is the interface for audit log destinations
type Sink interface {
	// Write writes the formatted entry to the sink
	Write(ctx context.Context, entry []byte) error

	// Close closes the sink and releases resources
	Close() error

	// Name returns the sink name
	Name() string

	// Type returns the sink type (file, writer, buffered)
	Type() string
}

// SaltFunc is a function that salts sensitive data
type SaltFunc func(ctx context.Context, data string) (string, error)
