package domain

import "time"

// AuditEntry is an immutable audit trail entry.
type AuditEntry struct {
	ID          int64
	TicketID    int64
	ActorID     int64
	Description string
	CreatedAt   time.Time
}

// Resolution records how a ticket was resolved. A ticket may have several.
type Resolution struct {
	ID          int64
	TicketID    int64
	Description string
	ResolvedAt  time.Time
}
