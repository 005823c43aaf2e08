package repository

import (
	"context"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

func (t *pgTx) InsertAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_entries (ticket_id, user_id, description, created_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id`
	return t.q.QueryRow(ctx, query,
		entry.TicketID,
		entry.ActorID,
		entry.Description,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

func (t *pgTx) InsertResolution(ctx context.Context, resolution *domain.Resolution) error {
	const query = `
        INSERT INTO resolutions (ticket_id, description, resolved_at)
        VALUES ($1,$2,$3)
        RETURNING id`
	return t.q.QueryRow(ctx, query,
		resolution.TicketID,
		resolution.Description,
		resolution.ResolvedAt,
	).Scan(&resolution.ID)
}

func (r pgReader) ListAuditEntries(ctx context.Context, ticketID int64) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, ticket_id, user_id, description, created_at
        FROM audit_entries WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.q.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorID,
			&entry.Description,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r pgReader) ListResolutions(ctx context.Context, ticketID int64) ([]domain.Resolution, error) {
	const query = `
        SELECT id, ticket_id, description, resolved_at
        FROM resolutions WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.q.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Resolution
	for rows.Next() {
		var res domain.Resolution
		if err := rows.Scan(&res.ID, &res.TicketID, &res.Description, &res.ResolvedAt); err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	return result, rows.Err()
}
