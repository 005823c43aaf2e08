package events

import (
	"time"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketChanged   EventType = "ticket_changed"
	EventResolutionAdded EventType = "resolution_added"
)

// Event is raised by the ticket store inside the mutation transaction.
type Event struct {
	Type     EventType
	TicketID int64
	Payload  any
}

// TicketChangedPayload carries the ticket before and after one committed mutation.
type TicketChangedPayload struct {
	Before *domain.Ticket
	After  *domain.Ticket
}

// PriorityChanged reports whether the mutation moved the ticket on the ladder.
func (p TicketChangedPayload) PriorityChanged() bool {
	return p.Before != nil && p.After != nil && p.Before.Priority != p.After.Priority
}

// ResolutionAddedPayload carries the resolution row just inserted, with its
// assigned id and resolved-at time.
type ResolutionAddedPayload struct {
	Resolution domain.Resolution
}

// Notification is the message content handed to downstream consumers after commit.
type Notification struct {
	ID        string    `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	ActorID   int64     `json:"actor_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
