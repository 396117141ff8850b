// Package archive stores retired incidents. The active registry holds only
// live incidents; durability of the full record is delegated here.
package archive

import (
	"context"
	"errors"
	"sync"

	"github.com/havenpoint/facility-response/internal/domain"
)

// ErrNotFound indicates the incident is not in the archive.
var ErrNotFound = errors.New("archived incident not found")

// Repository is the incident archive port.
type Repository interface {
	Store(ctx context.Context, incident *domain.Incident) error
	Get(ctx context.Context, id string) (*domain.Incident, error)
}

// MemoryRepository is an in-memory archive used in tests and when no
// database is configured.
type MemoryRepository struct {
	mu        sync.RWMutex
	incidents map[string]*domain.Incident
}

// NewMemoryRepository creates an empty in-memory archive.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{incidents: make(map[string]*domain.Incident)}
}

// Store archives a retired incident.
func (m *MemoryRepository) Store(_ context.Context, incident *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents[incident.ID] = incident.Clone()
	return nil
}

// Get returns an archived incident by ID.
func (m *MemoryRepository) Get(_ context.Context, id string) (*domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return inc.Clone(), nil
}
