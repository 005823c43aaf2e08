package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	"github.com/spec-kit/ticket-lifecycle/internal/sla"
)

// Audit message templates. Downstream consumers parse these verbatim.
const (
	closedMessage = "Ticket closed and resolution logged."
)

func statusUpdatedMessage(statusID, actor int64) string {
	return fmt.Sprintf("Status updated to %d by user %d", statusID, actor)
}

func assignedMessage(assigneeID int64) string {
	return fmt.Sprintf("Ticket assigned to user %d", assigneeID)
}

func escalatedMessage(from, to domain.TicketPriority) string {
	return fmt.Sprintf("Ticket escalated from %s to %s", from, to)
}

func priorityChangedMessage(from, to domain.TicketPriority) string {
	return fmt.Sprintf("Ticket priority changed from %s to %s", from, to)
}

func ticketUpdatedMessage(actor int64) string {
	return fmt.Sprintf("Ticket updated by user %d", actor)
}

// AuditTrail appends entries within the caller's transaction. It never
// updates or deletes.
type AuditTrail struct {
	clock sla.Clock
}

// NewAuditTrail builds the audit trail.
func NewAuditTrail(clock sla.Clock) *AuditTrail {
	return &AuditTrail{clock: clock}
}

// Append writes one entry.
func (a *AuditTrail) Append(ctx context.Context, tx repository.Tx, ticketID, actorID int64, description string) error {
	entry := &domain.AuditEntry{
		TicketID:    ticketID,
		ActorID:     actorID,
		Description: description,
		CreatedAt:   a.clock.Now(),
	}
	if err := tx.InsertAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// recordingTx remembers the audit entries written through it so they can
// be published once the transaction commits.
type recordingTx struct {
	repository.Tx
	entries []domain.AuditEntry
}

func (r *recordingTx) InsertAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	if err := r.Tx.InsertAuditEntry(ctx, entry); err != nil {
		return err
	}
	r.entries = append(r.entries, *entry)
	return nil
}
