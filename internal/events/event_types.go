package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/ticketly/ticket-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered         EventType = "user_registered"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventUserDeleted            EventType = "user_deleted"
	EventTicketCreated          EventType = "ticket_created"
	EventTicketStatusChanged    EventType = "ticket_status_changed"
	EventTicketDeleted          EventType = "ticket_deleted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SubjectID string    `json:"subject_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, subjectID string, actor Actor, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email             string      `json:"email"`
	FirstName         string      `json:"first_name"`
	Role              domain.Role `json:"role"`
	VerificationToken string      `json:"-"`
	NeedsVerification bool        `json:"needs_verification"`
}

// PasswordResetRequestedPayload payload. The token is kept out of JSON logs.
type PasswordResetRequestedPayload struct {
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	ResetToken string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// UserDeletedPayload payload.
type UserDeletedPayload struct {
	Email          string `json:"email"`
	TicketsRemoved int    `json:"tickets_removed"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CreatedBy string `json:"created_by"`
	Summary   string `json:"summary"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	CreatedBy string              `json:"created_by"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	CreatedBy string `json:"created_by"`
}
