package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionChanged       EventType = "session.changed"
	EventSessionLoggedOut     EventType = "session.logged_out"
	EventSessionMFARequired   EventType = "session.mfa_required"
	EventSessionRefreshFailed EventType = "session.refresh_failed"
)

// AllSessionEvents lists every session event type.
var AllSessionEvents = []EventType{
	EventSessionChanged,
	EventSessionLoggedOut,
	EventSessionMFARequired,
	EventSessionRefreshFailed,
}

// Event represents a session lifecycle event emitted by the controller.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, userID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LoggedOutPayload payload.
type LoggedOutPayload struct {
	Reason string `json:"reason"`
	// BackendError is set when the best-effort backend logout failed.
	BackendError string `json:"backend_error,omitempty"`
}

// MFARequiredPayload payload.
type MFARequiredPayload struct {
	Email string `json:"email"`
}

// RefreshFailedPayload payload.
type RefreshFailedPayload struct {
	Error string `json:"error"`
}
