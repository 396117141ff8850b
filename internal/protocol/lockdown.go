package protocol

import (
	"time"

	"github.com/havenpoint/facility-response/internal/domain"
)

// LockdownSpec describes the scope and authority of one lockdown level.
type LockdownSpec struct {
	DefaultAreas      []string
	AccessExceptions  []string
	Duration          time.Duration
	OverrideAuthority string
}

// lockdownTable is the deterministic level resolution table.
var lockdownTable = map[domain.LockdownLevel]LockdownSpec{
	domain.LockdownLevelPartial: {
		DefaultAreas:      nil, // the caller's affected areas
		AccessExceptions:  []string{"emergency_services", "incident_commander"},
		Duration:          30 * time.Minute,
		OverrideAuthority: "manager",
	},
	domain.LockdownLevelFacility: {
		DefaultAreas:      []string{"reception", "common_areas", "resident_areas", "admin_areas"},
		AccessExceptions:  []string{"emergency_services"},
		Duration:          60 * time.Minute,
		OverrideAuthority: "incident_commander",
	},
	domain.LockdownLevelExternal: {
		DefaultAreas:      []string{"main_entrance", "emergency_exits", "visitor_areas"},
		AccessExceptions:  []string{"emergency_services", "authorized_personnel"},
		Duration:          120 * time.Minute,
		OverrideAuthority: "emergency_services",
	},
	domain.LockdownLevelComplete: {
		DefaultAreas:      []string{"all_areas"},
		AccessExceptions:  []string{"emergency_services"},
		Duration:          240 * time.Minute,
		OverrideAuthority: "emergency_services",
	},
}

// LockdownLevelFor resolves the lockdown level for an incident. Critical
// incidents always lock down completely; otherwise the hostile categories
// escalate with priority.
func LockdownLevelFor(category domain.Category, priority domain.Priority) domain.LockdownLevel {
	if priority == domain.PriorityCritical {
		return domain.LockdownLevelComplete
	}

	switch category {
	case domain.CategoryBombThreat:
		return domain.LockdownLevelExternal
	case domain.CategorySecurityBreach, domain.CategoryViolentIncident, domain.CategoryLockdown:
		if priority == domain.PriorityHigh {
			return domain.LockdownLevelFacility
		}
		return domain.LockdownLevelPartial
	default:
		if priority == domain.PriorityHigh {
			return domain.LockdownLevelFacility
		}
		return domain.LockdownLevelPartial
	}
}

// LockdownSpecFor returns the resolution table entry for a level.
func LockdownSpecFor(level domain.LockdownLevel) LockdownSpec {
	return lockdownTable[level]
}

// LockdownAreas resolves which areas a lockdown covers: explicit affected
// areas win for partial lockdowns, otherwise the level's default area set.
func LockdownAreas(level domain.LockdownLevel, affectedAreas []string) []string {
	spec := lockdownTable[level]
	if level == domain.LockdownLevelPartial && len(affectedAreas) > 0 {
		return append([]string(nil), affectedAreas...)
	}
	if len(spec.DefaultAreas) > 0 {
		return append([]string(nil), spec.DefaultAreas...)
	}
	return append([]string(nil), affectedAreas...)
}

// EstimatedLockdownMinutes is a bounded estimate of how long locking the
// given number of areas takes, clamped to [2, 15] minutes.
func EstimatedLockdownMinutes(areaCount int) float64 {
	est := float64(areaCount) * 1.5
	if est < 2 {
		est = 2
	}
	if est > 15 {
		est = 15
	}
	return est
}
