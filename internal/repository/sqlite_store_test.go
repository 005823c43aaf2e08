package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(store.Close)

	stmts := []string{
		`INSERT INTO users (name) VALUES ('requester')`,
		`INSERT INTO statuses (name) VALUES ('Open'), ('Closed')`,
		`INSERT INTO categories (name, response_hours, resolution_hours, escalation_hours) VALUES ('Electrical', 2, 24, 12)`,
	}
	for _, stmt := range stmts {
		if _, err := store.DB().Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return store
}

func insertTestTicket(t *testing.T, store *SQLiteStore) *domain.Ticket {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ticket := &domain.Ticket{
		RequesterID: 1,
		CategoryID:  1,
		Description: "Sparking outlet",
		CreatedAt:   now,
		Priority:    domain.TicketPriorityHigh,
		SLADue:      now.Add(24 * time.Hour),
		StatusID:    1,
		UpdatedAt:   now,
	}
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertTicket(ctx, ticket)
	})
	if err != nil {
		t.Fatalf("insert ticket: %v", err)
	}
	return ticket
}

func TestSQLiteTicketRoundTrip(t *testing.T) {
	store := openTestStore(t)
	inserted := insertTestTicket(t, store)

	got, err := store.GetTicket(context.Background(), inserted.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if got.Description != inserted.Description || got.Priority != domain.TicketPriorityHigh {
		t.Fatalf("unexpected ticket: %+v", got)
	}
	if !got.SLADue.Equal(inserted.SLADue) || !got.CreatedAt.Equal(inserted.CreatedAt) {
		t.Fatalf("timestamps not preserved: %+v", got)
	}
	if got.PropertyID != nil || got.AssigneeID != nil || got.Version != 1 {
		t.Fatalf("unexpected optional fields: %+v", got)
	}
}

func TestSQLiteUpdateTicketVersionGuard(t *testing.T) {
	store := openTestStore(t)
	ticket := insertTestTicket(t, store)

	assignee := int64(1)
	ticket.AssigneeID = &assignee
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpdateTicket(ctx, ticket, 1)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ticket.Version != 2 {
		t.Fatalf("expected version 2, got %d", ticket.Version)
	}

	err = store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpdateTicket(ctx, ticket, 1)
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestSQLiteRejectsSLANotAfterCreation(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC()
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertTicket(ctx, &domain.Ticket{
			RequesterID: 1, CategoryID: 1, Description: "x", CreatedAt: now,
			Priority: domain.TicketPriorityLow, SLADue: now, StatusID: 1, UpdatedAt: now,
		})
	})
	if err == nil {
		t.Fatal("expected check constraint failure")
	}
}

func TestSQLiteRollbackOnError(t *testing.T) {
	store := openTestStore(t)
	ticket := insertTestTicket(t, store)
	boom := errors.New("boom")

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.InsertAuditEntry(ctx, &domain.AuditEntry{
			TicketID: ticket.ID, Description: "pending", CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	entries, err := store.ListAuditEntries(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected rollback, found %d entries", len(entries))
	}
}

func TestSQLiteDeleteCascadesAndReportsMissing(t *testing.T) {
	store := openTestStore(t)
	ticket := insertTestTicket(t, store)

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.InsertResolution(ctx, &domain.Resolution{TicketID: ticket.ID, Description: "replaced", ResolvedAt: time.Now()}); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &domain.AuditEntry{TicketID: ticket.ID, Description: "closed", CreatedAt: time.Now()})
	})
	if err != nil {
		t.Fatalf("seed history: %v", err)
	}

	err = store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.DeleteTicket(ctx, ticket.ID)
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	resolutions, _ := store.ListResolutions(context.Background(), ticket.ID)
	entries, _ := store.ListAuditEntries(context.Background(), ticket.ID)
	if len(resolutions) != 0 || len(entries) != 0 {
		t.Fatalf("expected cascade, found %d resolutions and %d entries", len(resolutions), len(entries))
	}

	err = store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.DeleteTicket(ctx, ticket.ID)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteReferenceLookups(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	status, err := store.StatusByName(ctx, "Closed")
	if err != nil || status.ID != 2 {
		t.Fatalf("expected Closed id 2, got %+v %v", status, err)
	}
	if _, err := store.StatusByName(ctx, "closed"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("status lookup must be exact, got %v", err)
	}

	policy, err := store.SLAPolicy(ctx, 1)
	if err != nil || policy.ResolutionHours != 24 {
		t.Fatalf("unexpected policy %+v %v", policy, err)
	}

	exists, err := store.ReferenceExists(ctx, domain.ReferenceUser, 1)
	if err != nil || !exists {
		t.Fatalf("expected user 1 to exist: %v", err)
	}
	exists, err = store.ReferenceExists(ctx, domain.ReferenceProvider, 1)
	if err != nil || exists {
		t.Fatalf("expected no provider 1: %v", err)
	}
	if _, err := store.ReferenceExists(ctx, "tenant", 1); err == nil {
		t.Fatal("expected error for unknown reference kind")
	}
}
