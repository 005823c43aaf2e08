package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

func (r pgReader) StatusByName(ctx context.Context, name string) (*domain.Status, error) {
	var status domain.Status
	err := r.q.QueryRow(ctx, `SELECT id, name FROM statuses WHERE name=$1`, name).Scan(&status.ID, &status.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (r pgReader) SLAPolicy(ctx context.Context, categoryID int64) (*domain.SLAPolicy, error) {
	const query = `
        SELECT id, response_hours, resolution_hours, escalation_hours
        FROM categories WHERE id=$1`
	var policy domain.SLAPolicy
	err := r.q.QueryRow(ctx, query, categoryID).Scan(
		&policy.CategoryID,
		&policy.ResponseHours,
		&policy.ResolutionHours,
		&policy.EscalationHours,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r pgReader) ReferenceExists(ctx context.Context, kind domain.ReferenceKind, id int64) (bool, error) {
	table, ok := referenceTable(kind)
	if !ok {
		return false, fmt.Errorf("unknown reference kind %q", kind)
	}
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id=$1)`, table)
	if err := r.q.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
