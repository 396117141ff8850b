// Package registry owns the set of currently active incidents and the
// derived facility status.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/havenpoint/facility-response/internal/domain"
)

// Registry errors.
var (
	ErrNotFound           = errors.New("incident not found")
	ErrDuplicateID        = errors.New("incident id already registered")
	ErrInvalidTransition  = errors.New("invalid incident status transition")
	ErrPreconditionFailed = errors.New("incident precondition failed")
)

// entry pairs an incident with its own lock so operations on unrelated
// incidents never contend.
type entry struct {
	mu       sync.Mutex
	incident *domain.Incident
}

// Registry holds active incidents keyed by ID. The map itself is guarded by
// mu; each incident is guarded by its entry lock. The facility status
// aggregate is recomputed under statusMu on every membership or priority
// affecting mutation, so reads never scan the active set.
type Registry struct {
	mu       sync.RWMutex
	active   map[string]*entry
	statusMu sync.Mutex
	status   domain.FacilityStatus
}

// New creates an empty registry with facility status normal.
func New() *Registry {
	return &Registry{
		active: make(map[string]*entry),
		status: domain.FacilityStatusNormal,
	}
}

// Create inserts a new incident into the active set. The incident is seeded
// with status active, version 1 and creation timestamps. Fails with
// ErrDuplicateID if the ID is already registered.
func (r *Registry) Create(inc *domain.Incident) error {
	now := time.Now().UTC()
	inc.Status = domain.IncidentStatusActive
	inc.Version = 1
	inc.CreatedAt = now
	inc.UpdatedAt = now

	r.mu.Lock()
	if _, exists := r.active[inc.ID]; exists {
		r.mu.Unlock()
		return ErrDuplicateID
	}
	r.active[inc.ID] = &entry{incident: inc}
	r.mu.Unlock()

	r.recomputeStatus()
	return nil
}

// Get returns a copy of the incident with the given ID.
func (r *Registry) Get(id string) (*domain.Incident, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.incident.Clone(), nil
}

// Mutate applies fn to the incident under its lock, re-validates the status
// invariant, bumps the version and refreshes the update timestamp. fn
// receives the live incident and may modify it in place; if fn returns an
// error the mutation is discarded. A status change that the state machine
// forbids fails with ErrInvalidTransition.
func (r *Registry) Mutate(id string, fn func(*domain.Incident) error) (*domain.Incident, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	prev := e.incident.Status
	scratch := e.incident.Clone()

	if err := fn(scratch); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	if scratch.Status != prev && !prev.CanTransitionTo(scratch.Status) {
		e.mu.Unlock()
		return nil, ErrInvalidTransition
	}

	scratch.Version = e.incident.Version + 1
	scratch.UpdatedAt = time.Now().UTC()
	e.incident = scratch
	out := scratch.Clone()
	e.mu.Unlock()

	r.recomputeStatus()
	return out, nil
}

// Retire removes a terminal incident from the active set. The record is
// returned so callers can archive it. Fails with ErrPreconditionFailed if
// the incident is not resolved or cancelled.
func (r *Registry) Retire(id string) (*domain.Incident, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if !e.incident.Status.IsTerminal() {
		e.mu.Unlock()
		return nil, ErrPreconditionFailed
	}
	out := e.incident.Clone()
	e.mu.Unlock()

	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()

	r.recomputeStatus()
	return out, nil
}

// ListActive returns copies of all active incidents, newest first.
func (r *Registry) ListActive() []*domain.Incident {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.active))
	for _, e := range r.active {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]*domain.Incident, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.incident.Clone())
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ActiveCount returns the number of active incidents.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// FacilityStatus returns the current aggregate without scanning the set.
func (r *Registry) FacilityStatus() domain.FacilityStatus {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	return r.status
}

// recomputeStatus recalculates the aggregate from the active set. It is the
// single owner of the aggregate: every mutation path funnels through here,
// and statusMu is held across both the scan and the write so two concurrent
// resolutions cannot interleave and publish a stale snapshot. Callers must
// not hold any registry lock; statusMu is always taken before mu.
func (r *Registry) recomputeStatus() {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()

	incidents := r.ListActive()

	next := domain.FacilityStatusNormal
	hasCritical := false
	hasHigh := false
	hasLockdown := false

	for _, inc := range incidents {
		switch inc.Priority {
		case domain.PriorityCritical:
			hasCritical = true
		case domain.PriorityHigh:
			hasHigh = true
		}
		if inc.Lockdown.Active() {
			hasLockdown = true
		}
	}

	switch {
	case hasCritical:
		next = domain.FacilityStatusEmergency
	case hasLockdown:
		next = domain.FacilityStatusLockdown
	case hasHigh:
		next = domain.FacilityStatusAlert
	case len(incidents) > 0:
		next = domain.FacilityStatusAlert
	}

	r.status = next
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.active[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}
