package response

import (
	"context"
	"time"

	"github.com/havenpoint/facility-response/internal/domain"
)

// SecurityActuator is the facility security collaborator: door locks,
// alarms, lighting and visitor access control.
type SecurityActuator interface {
	// Lockdown issues the facility-wide lockdown command.
	Lockdown(ctx context.Context, level domain.LockdownLevel, areas []string, duration time.Duration, exceptions []string, reason string) error
	// LockArea locks one area. Idempotent on the actuator side.
	LockArea(ctx context.Context, area string) error
	// UnlockArea unlocks one area.
	UnlockArea(ctx context.Context, area string) error
	// ActivateAlarms sounds evacuation alarms in the given zones.
	ActivateAlarms(ctx context.Context, zones []string) error
	// UnlockExits releases emergency exits along the given routes.
	UnlockExits(ctx context.Context, routes []string) error
	// ActivateLighting switches on emergency lighting in the given zones.
	ActivateLighting(ctx context.Context, zones []string) error
	// SuspendVisitorAccess suspends all active visitor access facility-wide.
	SuspendVisitorAccess(ctx context.Context) error
	// RestoreVisitorAccess restores visitor access facility-wide.
	RestoreVisitorAccess(ctx context.Context) error
	// RestoreNormalOperation returns security systems to normal mode.
	RestoreNormalOperation(ctx context.Context) error
	// Ping verifies the actuator is reachable.
	Ping(ctx context.Context) error
}

// Occupancy reports who is on site.
type Occupancy interface {
	CountPersonsInAreas(ctx context.Context, areas []string) (int, error)
	CurrentPersonsOnSite(ctx context.Context) (domain.OccupancySnapshot, error)
}
