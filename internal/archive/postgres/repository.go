// Package postgres provides the PostgreSQL implementation of the incident
// archive.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/havenpoint/facility-response/internal/archive"
	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements archive.Repository using PostgreSQL. The full
// incident record is stored as a JSONB document alongside the queryable
// classification columns.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL archive repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Store archives a retired incident. Re-archiving the same ID replaces the
// record so a retry after a partial failure is safe.
func (r *Repository) Store(ctx context.Context, incident *domain.Incident) error {
	record, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("marshal incident: %w", err)
	}

	query := `
		INSERT INTO incident_archive (id, category, priority, status, record, created_at, retired_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record, status = EXCLUDED.status, retired_at = now()
	`
	if _, err := r.db.Exec(ctx, query,
		incident.ID,
		incident.Category,
		incident.Priority,
		incident.Status,
		record,
		incident.CreatedAt,
	); err != nil {
		return fmt.Errorf("archive incident: %w", err)
	}
	return nil
}

// Get returns an archived incident by ID.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT record FROM incident_archive WHERE id = $1`

	var record []byte
	if err := r.db.QueryRow(ctx, query, id).Scan(&record); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, archive.ErrNotFound
		}
		return nil, fmt.Errorf("get archived incident: %w", err)
	}

	var inc domain.Incident
	if err := json.Unmarshal(record, &inc); err != nil {
		return nil, fmt.Errorf("unmarshal incident: %w", err)
	}
	return &inc, nil
}
