package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteReader struct {
	q sqlQuerier
}

type sqliteTx struct {
	sqliteReader
}

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	sqliteReader
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Transactions start with BEGIN IMMEDIATE so writers on the same database queue
// behind the busy timeout instead of failing on lock upgrade.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{sqliteReader: sqliteReader{q: db}, db: db}, nil
}

// DB exposes the handle for seeding reference data.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, &sqliteTx{sqliteReader: sqliteReader{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite not configured")
	}
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	if s != nil && s.db != nil {
		_ = s.db.Close()
	}
}

const sqliteTicketColumns = `id, requester_id, property_id, category_id, description, created_at,
	priority, sla_due, status_id, assignee_id, provider_id, updated_at, version`

func (r sqliteReader) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+sqliteTicketColumns+` FROM tickets WHERE id = ?`, id)
	return scanSQLiteTicket(row)
}

func (r sqliteReader) ListAuditEntries(ctx context.Context, ticketID int64) ([]domain.AuditEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, ticket_id, user_id, description, created_at FROM audit_entries WHERE ticket_id = ? ORDER BY id`,
		ticketID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.TicketID, &entry.ActorID, &entry.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.CreatedAt = fromMillis(createdAt)
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r sqliteReader) ListResolutions(ctx context.Context, ticketID int64) ([]domain.Resolution, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, ticket_id, description, resolved_at FROM resolutions WHERE ticket_id = ? ORDER BY id`,
		ticketID)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close()

	var result []domain.Resolution
	for rows.Next() {
		var res domain.Resolution
		var resolvedAt int64
		if err := rows.Scan(&res.ID, &res.TicketID, &res.Description, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		res.ResolvedAt = fromMillis(resolvedAt)
		result = append(result, res)
	}
	return result, rows.Err()
}

func (r sqliteReader) StatusByName(ctx context.Context, name string) (*domain.Status, error) {
	var status domain.Status
	err := r.q.QueryRowContext(ctx, `SELECT id, name FROM statuses WHERE name = ?`, name).Scan(&status.ID, &status.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("status by name: %w", err)
	}
	return &status, nil
}

func (r sqliteReader) SLAPolicy(ctx context.Context, categoryID int64) (*domain.SLAPolicy, error) {
	var policy domain.SLAPolicy
	err := r.q.QueryRowContext(ctx,
		`SELECT id, response_hours, resolution_hours, escalation_hours FROM categories WHERE id = ?`,
		categoryID,
	).Scan(&policy.CategoryID, &policy.ResponseHours, &policy.ResolutionHours, &policy.EscalationHours)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sla policy: %w", err)
	}
	return &policy, nil
}

func (r sqliteReader) ReferenceExists(ctx context.Context, kind domain.ReferenceKind, id int64) (bool, error) {
	table, ok := referenceTable(kind)
	if !ok {
		return false, fmt.Errorf("unknown reference kind %q", kind)
	}
	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = ?)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("reference exists: %w", err)
	}
	return exists, nil
}

func (t *sqliteTx) LockTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	// The write lock is already held: transactions begin IMMEDIATE.
	return t.GetTicket(ctx, id)
}

func (t *sqliteTx) InsertTicket(ctx context.Context, ticket *domain.Ticket) error {
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO tickets (requester_id, property_id, category_id, description, created_at,
			priority, sla_due, status_id, assignee_id, provider_id, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		ticket.RequesterID, nullableID(ticket.PropertyID), ticket.CategoryID, ticket.Description, toMillis(ticket.CreatedAt),
		string(ticket.Priority), toMillis(ticket.SLADue), ticket.StatusID, nullableID(ticket.AssigneeID),
		nullableID(ticket.ProviderID), toMillis(ticket.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert ticket id: %w", err)
	}
	ticket.ID = id
	ticket.Version = 1
	return nil
}

func (t *sqliteTx) UpdateTicket(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE tickets SET property_id = ?, category_id = ?, description = ?, priority = ?, sla_due = ?,
			status_id = ?, assignee_id = ?, provider_id = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		nullableID(ticket.PropertyID), ticket.CategoryID, ticket.Description, string(ticket.Priority),
		toMillis(ticket.SLADue), ticket.StatusID, nullableID(ticket.AssigneeID), nullableID(ticket.ProviderID),
		toMillis(ticket.UpdatedAt),
		ticket.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ticket rows: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	ticket.Version = expectedVersion + 1
	return nil
}

func (t *sqliteTx) DeleteTicket(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete ticket rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) InsertResolution(ctx context.Context, resolution *domain.Resolution) error {
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO resolutions (ticket_id, description, resolved_at) VALUES (?, ?, ?)`,
		resolution.TicketID, resolution.Description, toMillis(resolution.ResolvedAt))
	if err != nil {
		return fmt.Errorf("insert resolution: %w", err)
	}
	resolution.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) InsertAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO audit_entries (ticket_id, user_id, description, created_at) VALUES (?, ?, ?, ?)`,
		entry.TicketID, entry.ActorID, entry.Description, toMillis(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	entry.ID, err = res.LastInsertId()
	return err
}

func scanSQLiteTicket(row *sql.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var createdAt, slaDue, updatedAt int64
	if err := row.Scan(
		&ticket.ID,
		&ticket.RequesterID,
		&ticket.PropertyID,
		&ticket.CategoryID,
		&ticket.Description,
		&createdAt,
		&ticket.Priority,
		&slaDue,
		&ticket.StatusID,
		&ticket.AssigneeID,
		&ticket.ProviderID,
		&updatedAt,
		&ticket.Version,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	ticket.CreatedAt = fromMillis(createdAt)
	ticket.SLADue = fromMillis(slaDue)
	ticket.UpdatedAt = fromMillis(updatedAt)
	return &ticket, nil
}
