package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/events"
	"github.com/spec-kit/ticket-lifecycle/internal/observability"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	"github.com/spec-kit/ticket-lifecycle/internal/sla"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util"
)

const tracerName = "github.com/spec-kit/ticket-lifecycle/internal/service"

// LifecycleEngine runs every ticket operation as one transaction: the store
// write, the enforcer reactions, and the audit append commit or roll back
// together.
type LifecycleEngine struct {
	store      repository.Store
	tickets    *TicketStore
	audit      *AuditTrail
	calculator *sla.Calculator
	statuses   StatusConfig
	notifier   Notifier
	metrics    *observability.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
}

// LifecycleDependencies bundles collaborators for the engine.
type LifecycleDependencies struct {
	Store    repository.Store
	Statuses StatusConfig
	Clock    sla.Clock
	Notifier Notifier
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewLifecycleEngine wires the store, hooks, and enforcer.
func NewLifecycleEngine(deps LifecycleDependencies) *LifecycleEngine {
	clock := deps.Clock
	if clock == nil {
		clock = sla.RealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hooks := events.NewHooks()
	tickets := NewTicketStore(hooks, clock)
	audit := NewAuditTrail(clock)
	NewInvariantEnforcer(tickets, audit, deps.Statuses.Closed, logger).Register(hooks)

	return &LifecycleEngine{
		store:      deps.Store,
		tickets:    tickets,
		audit:      audit,
		calculator: sla.NewCalculator(clock),
		statuses:   deps.Statuses,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// Create persists a new ticket. Creation writes no audit entry.
func (e *LifecycleEngine) Create(ctx context.Context, draft domain.TicketDraft) (*domain.Ticket, error) {
	var created *domain.Ticket
	err := e.run(ctx, "create", 0, func(ctx context.Context, tx repository.Tx) error {
		ticket, err := e.tickets.Create(ctx, tx, draft, e.statuses.Default)
		created = ticket
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateStatus sets the ticket's status.
func (e *LifecycleEngine) UpdateStatus(ctx context.Context, ticketID, statusID, actor int64) (*domain.Ticket, error) {
	return e.mutate(ctx, "update_status", ticketID, func(ctx context.Context, tx repository.Tx) (*domain.Ticket, error) {
		if err := e.requireActor(ctx, tx, actor); err != nil {
			return nil, err
		}
		if err := requireReference(ctx, tx, domain.ReferenceStatus, statusID); err != nil {
			return nil, err
		}
		_, after, err := e.tickets.Mutate(ctx, tx, ticketID, domain.TicketChanges{StatusID: &statusID}, 0)
		if err != nil {
			return nil, err
		}
		return after, e.audit.Append(ctx, tx, ticketID, actor, statusUpdatedMessage(statusID, actor))
	})
}

// Assign sets the ticket's assignee.
func (e *LifecycleEngine) Assign(ctx context.Context, ticketID, assigneeID, actor int64) (*domain.Ticket, error) {
	return e.mutate(ctx, "assign", ticketID, func(ctx context.Context, tx repository.Tx) (*domain.Ticket, error) {
		if err := e.requireActor(ctx, tx, actor); err != nil {
			return nil, err
		}
		if err := requireReference(ctx, tx, domain.ReferenceUser, assigneeID); err != nil {
			return nil, err
		}
		_, after, err := e.tickets.Mutate(ctx, tx, ticketID, domain.TicketChanges{AssigneeID: &assigneeID}, 0)
		if err != nil {
			return nil, err
		}
		return after, e.audit.Append(ctx, tx, ticketID, actor, assignedMessage(assigneeID))
	})
}

// Escalate moves the ticket one rung up the ladder. At Urgent the priority
// stays put and the escalation is still recorded.
func (e *LifecycleEngine) Escalate(ctx context.Context, ticketID, actor int64) (*domain.Ticket, error) {
	return e.mutate(ctx, "escalate", ticketID, func(ctx context.Context, tx repository.Tx) (*domain.Ticket, error) {
		if err := e.requireActor(ctx, tx, actor); err != nil {
			return nil, err
		}
		current, err := lockTicket(ctx, tx, ticketID)
		if err != nil {
			return nil, err
		}
		next := current.Priority.Next()
		before, after, err := e.tickets.Mutate(ctx, tx, ticketID, domain.TicketChanges{Priority: &next}, current.Version)
		if err != nil {
			return nil, err
		}
		return after, e.audit.Append(ctx, tx, ticketID, actor, escalatedMessage(before.Priority, after.Priority))
	})
}

// Close moves the ticket to Closed and logs a resolution. Closing an
// already-closed ticket still adds a resolution and an audit entry.
func (e *LifecycleEngine) Close(ctx context.Context, ticketID int64, resolution string, actor int64) (*domain.Ticket, error) {
	return e.mutate(ctx, "close", ticketID, func(ctx context.Context, tx repository.Tx) (*domain.Ticket, error) {
		if e.statuses.Closed == 0 {
			return nil, apperrors.NewConfigurationError("closed status not configured", nil)
		}
		if err := e.requireActor(ctx, tx, actor); err != nil {
			return nil, err
		}
		closed := e.statuses.Closed
		_, after, err := e.tickets.Mutate(ctx, tx, ticketID, domain.TicketChanges{StatusID: &closed}, 0)
		if err != nil {
			return nil, err
		}
		if _, err := e.tickets.AddResolution(ctx, tx, ticketID, resolution); err != nil {
			return nil, err
		}
		return after, e.audit.Append(ctx, tx, ticketID, actor, closedMessage)
	})
}

// UpdateTicket applies a direct field update. expectedVersion 0 skips the
// optimistic check.
func (e *LifecycleEngine) UpdateTicket(ctx context.Context, ticketID int64, changes domain.TicketChanges, actor, expectedVersion int64) (*domain.Ticket, error) {
	if changes.Empty() {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}
	return e.mutate(ctx, "update", ticketID, func(ctx context.Context, tx repository.Tx) (*domain.Ticket, error) {
		if err := e.requireActor(ctx, tx, actor); err != nil {
			return nil, err
		}
		if err := requireChangeReferences(ctx, tx, changes); err != nil {
			return nil, err
		}
		_, after, err := e.tickets.Mutate(ctx, tx, ticketID, changes, expectedVersion)
		if err != nil {
			return nil, err
		}
		return after, e.audit.Append(ctx, tx, ticketID, actor, ticketUpdatedMessage(actor))
	})
}

// AddResolution inserts a resolution without going through Close. The
// enforcer still closes the ticket.
func (e *LifecycleEngine) AddResolution(ctx context.Context, ticketID int64, description string) (*domain.Resolution, error) {
	var added *domain.Resolution
	err := e.run(ctx, "add_resolution", ticketID, func(ctx context.Context, tx repository.Tx) error {
		res, err := e.tickets.AddResolution(ctx, tx, ticketID, description)
		added = res
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// Delete removes the ticket with its resolutions and audit entries.
func (e *LifecycleEngine) Delete(ctx context.Context, ticketID int64) error {
	return e.run(ctx, "delete", ticketID, func(ctx context.Context, tx repository.Tx) error {
		err := tx.DeleteTicket(ctx, ticketID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return err
	})
}

// Get returns the current ticket state.
func (e *LifecycleEngine) Get(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := e.store.GetTicket(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// AuditTrail lists the ticket's audit entries in insertion order.
func (e *LifecycleEngine) AuditTrail(ctx context.Context, ticketID int64) ([]domain.AuditEntry, error) {
	if _, err := e.Get(ctx, ticketID); err != nil {
		return nil, err
	}
	entries, err := e.store.ListAuditEntries(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// Resolutions lists the ticket's resolutions in insertion order.
func (e *LifecycleEngine) Resolutions(ctx context.Context, ticketID int64) ([]domain.Resolution, error) {
	if _, err := e.Get(ctx, ticketID); err != nil {
		return nil, err
	}
	resolutions, err := e.store.ListResolutions(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return resolutions, nil
}

// SLA reads the ticket and computes its live SLA metrics.
func (e *LifecycleEngine) SLA(ctx context.Context, ticketID int64) (sla.Snapshot, error) {
	ticket, err := e.Get(ctx, ticketID)
	if err != nil {
		return sla.Snapshot{}, err
	}
	return e.calculator.Snapshot(ticket), nil
}

func (e *LifecycleEngine) mutate(ctx context.Context, op string, ticketID int64, fn func(ctx context.Context, tx repository.Tx) (*domain.Ticket, error)) (*domain.Ticket, error) {
	var result *domain.Ticket
	err := e.run(ctx, op, ticketID, func(ctx context.Context, tx repository.Tx) error {
		ticket, err := fn(ctx, tx)
		result = ticket
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// run executes fn in one transaction, then publishes the audit entries it
// wrote. Errors come back as DomainErrors.
func (e *LifecycleEngine) run(ctx context.Context, op string, ticketID int64, fn func(ctx context.Context, tx repository.Tx) error) error {
	ctx, span := e.tracer.Start(ctx, "lifecycle."+op, trace.WithAttributes(attribute.Int64("ticket.id", ticketID)))
	defer span.End()

	var recorder *recordingTx
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		recorder = &recordingTx{Tx: tx}
		return fn(ctx, recorder)
	})
	if err != nil {
		domainErr := apperrors.ToDomainError(err)
		e.metrics.RecordOperation(op, domainErr.Code)
		span.RecordError(err)
		span.SetStatus(codes.Error, domainErr.Code)
		if domainErr.HTTPStatus >= 500 {
			e.logger.Error("lifecycle operation failed",
				zap.String("op", op), zap.Int64("ticket_id", ticketID), zap.Error(err))
		} else {
			e.logger.Debug("lifecycle operation rejected",
				zap.String("op", op), zap.Int64("ticket_id", ticketID), zap.String("code", domainErr.Code))
		}
		return domainErr
	}

	e.metrics.RecordOperation(op, "OK")
	span.SetAttributes(attribute.Int("audit.entries", len(recorder.entries)))
	if e.notifier != nil {
		e.notifier.Dispatch(ctx, recorder.entries)
	}
	return nil
}

func (e *LifecycleEngine) requireActor(ctx context.Context, r repository.Reader, actor int64) error {
	if actor == domain.NoActor {
		return nil
	}
	return requireReference(ctx, r, domain.ReferenceUser, actor)
}

func requireChangeReferences(ctx context.Context, r repository.Reader, changes domain.TicketChanges) error {
	checks := []struct {
		kind domain.ReferenceKind
		id   *int64
	}{
		{domain.ReferenceProperty, changes.PropertyID},
		{domain.ReferenceCategory, changes.CategoryID},
		{domain.ReferenceProvider, changes.ProviderID},
		{domain.ReferenceStatus, changes.StatusID},
		{domain.ReferenceUser, changes.AssigneeID},
	}
	for _, check := range checks {
		if err := requireOptionalReference(ctx, r, check.kind, check.id); err != nil {
			return err
		}
	}
	return nil
}
