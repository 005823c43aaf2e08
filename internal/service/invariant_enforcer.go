package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/events"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util"
)

// InvariantEnforcer keeps derived ticket state consistent no matter which
// operation caused a mutation. Its reactions run inside the mutating
// transaction, so a failing reaction rolls the whole operation back.
type InvariantEnforcer struct {
	tickets      *TicketStore
	audit        *AuditTrail
	closedStatus int64
	logger       *zap.Logger
}

// NewInvariantEnforcer creates the enforcer.
func NewInvariantEnforcer(tickets *TicketStore, audit *AuditTrail, closedStatus int64, logger *zap.Logger) *InvariantEnforcer {
	return &InvariantEnforcer{
		tickets:      tickets,
		audit:        audit,
		closedStatus: closedStatus,
		logger:       logger,
	}
}

// Register subscribes the reactions.
func (e *InvariantEnforcer) Register(hooks events.Hooks) {
	hooks.Subscribe(events.EventTicketChanged, e.onTicketChanged)
	hooks.Subscribe(events.EventResolutionAdded, e.onResolutionAdded)
}

// onTicketChanged logs every priority move, attributed to the assignee.
func (e *InvariantEnforcer) onTicketChanged(ctx context.Context, tx repository.Tx, event events.Event) error {
	payload, ok := event.Payload.(events.TicketChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if !payload.PriorityChanged() {
		return nil
	}
	e.logger.Debug("priority changed",
		zap.Int64("ticket_id", event.TicketID),
		zap.String("from", string(payload.Before.Priority)),
		zap.String("to", string(payload.After.Priority)))
	return e.audit.Append(ctx, tx, event.TicketID, payload.After.AssigneeOrNoActor(),
		priorityChangedMessage(payload.Before.Priority, payload.After.Priority))
}

// onResolutionAdded forces the ticket to Closed.
func (e *InvariantEnforcer) onResolutionAdded(ctx context.Context, tx repository.Tx, event events.Event) error {
	if e.closedStatus == 0 {
		return apperrors.NewConfigurationError("closed status not configured", nil)
	}
	ticket, err := lockTicket(ctx, tx, event.TicketID)
	if err != nil {
		return err
	}
	if ticket.StatusID == e.closedStatus {
		return nil
	}
	closed := e.closedStatus
	_, _, err = e.tickets.Mutate(ctx, tx, event.TicketID, domain.TicketChanges{StatusID: &closed}, 0)
	if err != nil {
		return err
	}
	e.logger.Debug("resolution closed ticket", zap.Int64("ticket_id", event.TicketID))
	return nil
}
