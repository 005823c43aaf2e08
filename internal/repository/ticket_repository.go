package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

const pgTicketColumns = `id, requester_id, property_id, category_id, description, created_at,
               priority, sla_due, status_id, assignee_id, provider_id, updated_at, version`

func (r pgReader) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `SELECT ` + pgTicketColumns + ` FROM tickets WHERE id=$1`
	return scanPgTicket(r.q.QueryRow(ctx, query, id))
}

func (t *pgTx) LockTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `SELECT ` + pgTicketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return scanPgTicket(t.q.QueryRow(ctx, query, id))
}

func (t *pgTx) InsertTicket(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (requester_id, property_id, category_id, description, created_at,
            priority, sla_due, status_id, assignee_id, provider_id, updated_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,1)
        RETURNING id, version`
	return t.q.QueryRow(ctx, query,
		ticket.RequesterID,
		ticket.PropertyID,
		ticket.CategoryID,
		ticket.Description,
		ticket.CreatedAt,
		ticket.Priority,
		ticket.SLADue,
		ticket.StatusID,
		ticket.AssigneeID,
		ticket.ProviderID,
		ticket.UpdatedAt,
	).Scan(&ticket.ID, &ticket.Version)
}

func (t *pgTx) UpdateTicket(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	const query = `
        UPDATE tickets SET property_id=$1, category_id=$2, description=$3, priority=$4, sla_due=$5,
            status_id=$6, assignee_id=$7, provider_id=$8, updated_at=$9, version=version+1
        WHERE id=$10 AND version=$11`
	cmd, err := t.q.Exec(ctx, query,
		ticket.PropertyID,
		ticket.CategoryID,
		ticket.Description,
		ticket.Priority,
		ticket.SLADue,
		ticket.StatusID,
		ticket.AssigneeID,
		ticket.ProviderID,
		ticket.UpdatedAt,
		ticket.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	ticket.Version = expectedVersion + 1
	return nil
}

func (t *pgTx) DeleteTicket(ctx context.Context, id int64) error {
	cmd, err := t.q.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPgTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.RequesterID,
		&ticket.PropertyID,
		&ticket.CategoryID,
		&ticket.Description,
		&ticket.CreatedAt,
		&ticket.Priority,
		&ticket.SLADue,
		&ticket.StatusID,
		&ticket.AssigneeID,
		&ticket.ProviderID,
		&ticket.UpdatedAt,
		&ticket.Version,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}
