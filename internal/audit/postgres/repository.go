// Package postgres provides the PostgreSQL implementation of the audit log.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/havenpoint/facility-response/internal/audit"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Log implements audit.Log using PostgreSQL.
type Log struct {
	db *pgxpool.Pool
}

// NewLog creates a new PostgreSQL audit log.
func NewLog(db *pgxpool.Pool) *Log {
	return &Log{db: db}
}

// Append inserts one audit entry. Entries are append-only: there is no
// update or delete path through this type.
func (l *Log) Append(ctx context.Context, entry audit.Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	query := `
		INSERT INTO audit_entries (id, actor, action, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := l.db.Exec(ctx, query,
		entry.ID,
		entry.Actor,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		details,
		entry.Timestamp,
	); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByResource returns entries for one resource, oldest first. Used by
// the integration tests and operational tooling; the core never reads the
// audit trail back.
func (l *Log) ListByResource(ctx context.Context, resourceType, resourceID string) ([]audit.Entry, error) {
	query := `
		SELECT id, actor, action, resource_type, resource_id, details, created_at
		FROM audit_entries
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at
	`
	rows, err := l.db.Query(ctx, query, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var details []byte
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
