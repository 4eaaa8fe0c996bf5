package events

import (
	"time"

	"github.com/corpnet/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketClosed        EventType = "ticket_closed"
	EventTicketMessageAdded  EventType = "ticket_message_added"
	EventParticipantAdded    EventType = "ticket_participant_added"
)

// Event represents a domain event emitted by services after commit.
//
// Audience, when set, names the only users to notify; otherwise the
// notification layer resolves recipients from the ticket's participants.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Audience  []string    `json:"audience,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	Title        string                `json:"title"`
	Priority     domain.TicketPriority `json:"priority"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	TicketNumber string         `json:"ticket_number"`
	Old          map[string]any `json:"old"`
	New          map[string]any `json:"new"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketNumber string              `json:"ticket_number"`
	OldStatus    domain.TicketStatus `json:"old_status"`
	NewStatus    domain.TicketStatus `json:"new_status"`
	Inferred     bool                `json:"inferred,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TicketNumber       string  `json:"ticket_number"`
	AssigneeID         string  `json:"assignee_id"`
	PreviousAssigneeID *string `json:"previous_assignee_id,omitempty"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	TicketNumber string `json:"ticket_number"`
	Resolution   string `json:"resolution"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	TicketNumber string             `json:"ticket_number"`
	MessageID    string             `json:"message_id"`
	MessageType  domain.MessageType `json:"message_type"`
	IsInternal   bool               `json:"is_internal"`
	BodyPreview  string             `json:"body_preview"`
}

// ParticipantAddedPayload payload.
type ParticipantAddedPayload struct {
	TicketNumber string                 `json:"ticket_number"`
	UserID       string                 `json:"user_id"`
	Role         domain.ParticipantRole `json:"role"`
}
