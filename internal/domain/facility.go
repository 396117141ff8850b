package domain

import "time"

// FacilityStatus is the derived, system-wide severity indicator.
type FacilityStatus string

// Facility statuses.
const (
	FacilityStatusNormal    FacilityStatus = "normal"
	FacilityStatusAlert     FacilityStatus = "alert"
	FacilityStatusEmergency FacilityStatus = "emergency"
	FacilityStatusLockdown  FacilityStatus = "lockdown"
)

// LockdownLevel determines the scope and authority of an access restriction.
type LockdownLevel string

// Lockdown levels, from narrowest to widest scope.
const (
	LockdownLevelPartial  LockdownLevel = "partial"
	LockdownLevelFacility LockdownLevel = "facility"
	LockdownLevelExternal LockdownLevel = "external"
	LockdownLevelComplete LockdownLevel = "complete"
)

// IsValid checks if the lockdown level is valid.
func (l LockdownLevel) IsValid() bool {
	return l == LockdownLevelPartial || l == LockdownLevelFacility ||
		l == LockdownLevelExternal || l == LockdownLevelComplete
}

// LockdownData is attached to an incident once a lockdown is initiated.
type LockdownData struct {
	ID               string        `json:"id"`
	Level            LockdownLevel `json:"level"`
	LockedAreas      []string      `json:"locked_areas"`
	AccessExceptions []string      `json:"access_exceptions"`
	StartedAt        time.Time     `json:"started_at"`
	EndedAt          *time.Time    `json:"ended_at,omitempty"`
}

// Active reports whether the lockdown has started but not yet ended.
func (l *LockdownData) Active() bool {
	return l != nil && l.EndedAt == nil
}

// EvacuationStatus is the monotonic progress of an evacuation:
// not_started → in_progress → completed.
type EvacuationStatus string

// Evacuation statuses.
const (
	EvacuationNotStarted EvacuationStatus = "not_started"
	EvacuationInProgress EvacuationStatus = "in_progress"
	EvacuationCompleted  EvacuationStatus = "completed"
)

// order places each evacuation status on the monotonic progression.
func (s EvacuationStatus) order() int {
	switch s {
	case EvacuationNotStarted:
		return 1
	case EvacuationInProgress:
		return 2
	case EvacuationCompleted:
		return 3
	}
	return 0
}

// CanTransitionTo reports whether moving from s to next is legal.
// The evacuation status never regresses.
func (s EvacuationStatus) CanTransitionTo(next EvacuationStatus) bool {
	return next.order() > s.order()
}

// EvacuationData is attached to an incident once an evacuation is initiated.
type EvacuationData struct {
	ID             string           `json:"id"`
	Zones          []string         `json:"zones"`
	Routes         []string         `json:"routes"`
	AssemblyPoints []string         `json:"assembly_points"`
	Status         EvacuationStatus `json:"status"`
	PersonsTotal   int              `json:"persons_total"`
	Evacuated      int              `json:"evacuated"`
	Unaccounted    []string         `json:"unaccounted,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// OccupancySnapshot reports who is currently on site.
type OccupancySnapshot struct {
	Residents   int `json:"residents"`
	Visitors    int `json:"visitors"`
	Staff       int `json:"staff"`
	Contractors int `json:"contractors"`
}

// Total returns the total persons on site.
func (o OccupancySnapshot) Total() int {
	return o.Residents + o.Visitors + o.Staff + o.Contractors
}
