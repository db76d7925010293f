package session

import (
	"context"
	"time"
)

// Store defines the interface for session storage operations.
type Store interface {
	// Create creates a new session with Version set to 1.
	Create(ctx context.Context, data *Session) error

	// Get retrieves a session by call ID.
	// Returns nil if the session is not found (not an error).
	Get(ctx context.Context, callID string) (*Session, error)

	// Update updates an existing session with optimistic locking.
	// Verifies the Version matches the stored version, increments Version,
	// updates UpdatedAt timestamp, and persists the Session.
	// Returns ErrVersionConflict if the version does not match.
	// Returns ErrNotFound if the session does not exist.
	Update(ctx context.Context, data *Session) error

	// Delete deletes a session by call ID.
	Delete(ctx context.Context, callID string) error

	// Close closes the store and releases any resources.
	Close() error
}

// IdleEvictor is implemented by stores that cannot expire keys on their own.
type IdleEvictor interface {
	// EvictIdle removes sessions not updated since now-idle and returns how
	// many were removed.
	EvictIdle(now time.Time, idle time.Duration) int
}

// Counter is implemented by stores that can report how many calls are live.
type Counter interface {
	Len() int
}
