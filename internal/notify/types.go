// Package notify provides notification dispatching for pipeline events.
// Delivery mechanics are an external concern; the pipeline only emits
// events through the Sender interface at the end of an invocation.
package notify

import (
	"context"
	"time"
)

// Event types that can trigger notifications.
const (
	EventBackup  = "backup"
	EventRestore = "restore"
	EventVerify  = "verify"
)

// Event represents a notification event with the context needed for formatting.
type Event struct {
	// Type is the event type (backup, restore, verify)
	Type string

	// Repository is the repository name (owner/repo), if the event concerns one
	Repository string

	// Archive is the archive path or name, if applicable
	Archive string

	// Succeeded and Failed are the aggregate counts of a batch operation
	Succeeded int
	Failed    int

	// Success indicates whether the invocation as a whole succeeded
	Success bool

	// Error contains error details if the operation failed
	Error string

	// Timestamp is when the event occurred
	Timestamp time.Time

	// Extra contains additional event-specific data
	Extra map[string]string
}

// NewEvent creates an event of the given type stamped with the current time.
func NewEvent(eventType string) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Extra:     make(map[string]string),
	}
}

// WithRepository sets the repository name.
func (e *Event) WithRepository(repo string) *Event {
	e.Repository = repo
	return e
}

// WithCounts sets the aggregate batch counts and the derived success flag.
func (e *Event) WithCounts(succeeded, failed int) *Event {
	e.Succeeded = succeeded
	e.Failed = failed
	e.Success = failed == 0

	return e
}

// WithError records a failure detail and marks the event unsuccessful.
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
		e.Success = false
	}

	return e
}

// Sender is the interface for notification senders.
type Sender interface {
	// Send sends a notification for the given event.
	Send(ctx context.Context, event *Event) error

	// Name returns the sender's name for logging purposes.
	Name() string
}
