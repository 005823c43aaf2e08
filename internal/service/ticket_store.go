package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/events"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	"github.com/spec-kit/ticket-lifecycle/internal/sla"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util"
)

// TicketStore enforces field-level invariants on every ticket write and
// raises change events inside the writing transaction.
type TicketStore struct {
	hooks events.Hooks
	clock sla.Clock
}

// NewTicketStore constructs the store.
func NewTicketStore(hooks events.Hooks, clock sla.Clock) *TicketStore {
	return &TicketStore{hooks: hooks, clock: clock}
}

// Create validates and inserts a ticket. No audit entry is written.
func (s *TicketStore) Create(ctx context.Context, tx repository.Tx, draft domain.TicketDraft, defaultStatus int64) (*domain.Ticket, error) {
	if err := requireReference(ctx, tx, domain.ReferenceUser, draft.RequesterID); err != nil {
		return nil, err
	}
	policy, err := tx.SLAPolicy(ctx, draft.CategoryID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("category", map[string]any{"category_id": draft.CategoryID})
	}
	if err != nil {
		return nil, err
	}
	if err := requireOptionalReference(ctx, tx, domain.ReferenceProperty, draft.PropertyID); err != nil {
		return nil, err
	}
	if err := requireOptionalReference(ctx, tx, domain.ReferenceProvider, draft.ProviderID); err != nil {
		return nil, err
	}
	if err := requireOptionalReference(ctx, tx, domain.ReferenceUser, draft.AssigneeID); err != nil {
		return nil, err
	}

	statusID := defaultStatus
	if draft.StatusID != nil {
		statusID = *draft.StatusID
		if err := requireReference(ctx, tx, domain.ReferenceStatus, statusID); err != nil {
			return nil, err
		}
	}
	if statusID == 0 {
		return nil, apperrors.NewConfigurationError("default status not configured", nil)
	}

	priority := draft.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}
	createdAt = floorToStore(createdAt)
	slaDue := draft.SLADue
	if slaDue.IsZero() {
		slaDue = createdAt.Add(time.Duration(policy.ResolutionHours) * time.Hour)
	}
	slaDue = ceilToStore(slaDue)
	if err := validateSLA(createdAt, slaDue); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		RequesterID: draft.RequesterID,
		PropertyID:  draft.PropertyID,
		CategoryID:  draft.CategoryID,
		Description: strings.TrimSpace(draft.Description),
		CreatedAt:   createdAt,
		Priority:    priority,
		SLADue:      slaDue,
		StatusID:    statusID,
		AssigneeID:  draft.AssigneeID,
		ProviderID:  draft.ProviderID,
		UpdatedAt:   createdAt,
	}
	if err := tx.InsertTicket(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Mutate locks the ticket, applies changes, and publishes the change event
// before returning. expectedVersion 0 accepts whatever version is stored.
func (s *TicketStore) Mutate(ctx context.Context, tx repository.Tx, ticketID int64, changes domain.TicketChanges, expectedVersion int64) (before, after *domain.Ticket, err error) {
	current, err := lockTicket(ctx, tx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if expectedVersion != 0 && current.Version != expectedVersion {
		return nil, nil, conflictError(ticketID, expectedVersion, current.Version)
	}

	before = current.Clone()
	after = current.Clone()
	changes.Apply(after)
	after.SLADue = ceilToStore(after.SLADue)
	if !after.Priority.Valid() {
		return nil, nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": after.Priority})
	}
	if err := validateSLA(after.CreatedAt, after.SLADue); err != nil {
		return nil, nil, err
	}
	after.UpdatedAt = floorToStore(s.clock.Now())

	if err := tx.UpdateTicket(ctx, after, current.Version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, nil, conflictError(ticketID, current.Version, 0)
		}
		return nil, nil, err
	}

	err = s.hooks.Publish(ctx, tx, events.Event{
		Type:     events.EventTicketChanged,
		TicketID: ticketID,
		Payload:  events.TicketChangedPayload{Before: before, After: after.Clone()},
	})
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// AddResolution inserts a resolution and publishes it inside the transaction.
func (s *TicketStore) AddResolution(ctx context.Context, tx repository.Tx, ticketID int64, description string) (*domain.Resolution, error) {
	if _, err := lockTicket(ctx, tx, ticketID); err != nil {
		return nil, err
	}
	resolution := &domain.Resolution{
		TicketID:    ticketID,
		Description: strings.TrimSpace(description),
		ResolvedAt:  s.clock.Now(),
	}
	if err := tx.InsertResolution(ctx, resolution); err != nil {
		return nil, err
	}
	err := s.hooks.Publish(ctx, tx, events.Event{
		Type:     events.EventResolutionAdded,
		TicketID: ticketID,
		Payload:  events.ResolutionAddedPayload{Resolution: *resolution},
	})
	if err != nil {
		return nil, err
	}
	return resolution, nil
}

// storePrecision is the coarsest timestamp resolution among the backends
// (SQLite keeps unix milliseconds). Times are normalized before validation so
// the stored values are the ones checked.
const storePrecision = time.Millisecond

func floorToStore(t time.Time) time.Time {
	return t.UTC().Truncate(storePrecision)
}

// ceilToStore rounds up so a due time never moves earlier than requested.
func ceilToStore(t time.Time) time.Time {
	floored := floorToStore(t)
	if floored.Before(t) {
		return floored.Add(storePrecision)
	}
	return floored
}

func validateSLA(createdAt, slaDue time.Time) error {
	if !slaDue.After(createdAt) {
		return apperrors.NewValidationError("sla due must be after creation time", map[string]any{
			"created_at": createdAt,
			"sla_due":    slaDue,
		})
	}
	return nil
}

func lockTicket(ctx context.Context, tx repository.Tx, ticketID int64) (*domain.Ticket, error) {
	ticket, err := tx.LockTicket(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, err
}

func conflictError(ticketID, expected, actual int64) error {
	details := map[string]any{"ticket_id": ticketID, "expected_version": expected}
	if actual != 0 {
		details["actual_version"] = actual
	}
	return apperrors.NewConcurrencyConflict("ticket was modified concurrently", details)
}

func requireReference(ctx context.Context, r repository.Reader, kind domain.ReferenceKind, id int64) error {
	exists, err := r.ReferenceExists(ctx, kind, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NewNotFound(string(kind), map[string]any{string(kind) + "_id": id})
	}
	return nil
}

func requireOptionalReference(ctx context.Context, r repository.Reader, kind domain.ReferenceKind, id *int64) error {
	if id == nil {
		return nil
	}
	return requireReference(ctx, r, kind, *id)
}
