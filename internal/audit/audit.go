// Package audit provides the append-only audit trail for emergency
// operations. Entries are never mutated or deleted by this service.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one append-only audit record.
type Entry struct {
	ID           string         `json:"id"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Details      map[string]any `json:"details,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Log is the audit collaborator port.
type Log interface {
	Append(ctx context.Context, entry Entry) error
}

// NewEntry builds an entry with a generated ID and timestamp.
func NewEntry(actor, action, resourceType, resourceID string, details map[string]any) Entry {
	return Entry{
		ID:           uuid.New().String(),
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		Timestamp:    time.Now().UTC(),
	}
}

// MemoryLog is an in-memory audit log used in tests and when no database is
// configured.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLog creates an empty in-memory audit log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append stores the entry.
func (m *MemoryLog) Append(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a snapshot of all recorded entries.
func (m *MemoryLog) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
