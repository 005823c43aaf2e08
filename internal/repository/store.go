package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a guarded update matched no row version.
	ErrVersionConflict = errors.New("ticket version conflict")
)

// Reader exposes side-effect free queries.
type Reader interface {
	GetTicket(ctx context.Context, id int64) (*domain.Ticket, error)
	ListAuditEntries(ctx context.Context, ticketID int64) ([]domain.AuditEntry, error)
	ListResolutions(ctx context.Context, ticketID int64) ([]domain.Resolution, error)
	StatusByName(ctx context.Context, name string) (*domain.Status, error)
	SLAPolicy(ctx context.Context, categoryID int64) (*domain.SLAPolicy, error)
	ReferenceExists(ctx context.Context, kind domain.ReferenceKind, id int64) (bool, error)
}

// Tx is a unit of work. Every write made through it commits or rolls back together.
type Tx interface {
	Reader
	// LockTicket reads the ticket and holds it against concurrent writers until the Tx ends.
	LockTicket(ctx context.Context, id int64) (*domain.Ticket, error)
	InsertTicket(ctx context.Context, ticket *domain.Ticket) error
	// UpdateTicket writes ticket only if the stored version still equals expectedVersion.
	UpdateTicket(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error
	DeleteTicket(ctx context.Context, id int64) error
	InsertResolution(ctx context.Context, resolution *domain.Resolution) error
	InsertAuditEntry(ctx context.Context, entry *domain.AuditEntry) error
}

// Store is the persistence boundary for the lifecycle engine.
type Store interface {
	Reader
	// WithinTx runs fn in a transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}

func referenceTable(kind domain.ReferenceKind) (string, bool) {
	switch kind {
	case domain.ReferenceUser:
		return "users", true
	case domain.ReferenceProperty:
		return "properties", true
	case domain.ReferenceCategory:
		return "categories", true
	case domain.ReferenceProvider:
		return "providers", true
	case domain.ReferenceStatus:
		return "statuses", true
	default:
		return "", false
	}
}
