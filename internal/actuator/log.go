package actuator

import (
	"context"
	"time"

	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/pkg/ctxlog"
)

// LogActuator records security commands to the log instead of driving real
// hardware. Used in development and when no gateway is configured.
type LogActuator struct{}

// NewLogActuator creates a logging actuator.
func NewLogActuator() *LogActuator {
	return &LogActuator{}
}

func (a *LogActuator) Lockdown(ctx context.Context, level domain.LockdownLevel, areas []string, duration time.Duration, exceptions []string, reason string) error {
	ctxlog.FromContext(ctx).Info("actuator: lockdown",
		"level", level, "areas", areas, "duration", duration, "exceptions", exceptions, "reason", reason)
	return nil
}

func (a *LogActuator) LockArea(ctx context.Context, area string) error {
	ctxlog.FromContext(ctx).Info("actuator: lock area", "area", area)
	return nil
}

func (a *LogActuator) UnlockArea(ctx context.Context, area string) error {
	ctxlog.FromContext(ctx).Info("actuator: unlock area", "area", area)
	return nil
}

func (a *LogActuator) ActivateAlarms(ctx context.Context, zones []string) error {
	ctxlog.FromContext(ctx).Info("actuator: activate alarms", "zones", zones)
	return nil
}

func (a *LogActuator) UnlockExits(ctx context.Context, routes []string) error {
	ctxlog.FromContext(ctx).Info("actuator: unlock exits", "routes", routes)
	return nil
}

func (a *LogActuator) ActivateLighting(ctx context.Context, zones []string) error {
	ctxlog.FromContext(ctx).Info("actuator: activate lighting", "zones", zones)
	return nil
}

func (a *LogActuator) SuspendVisitorAccess(ctx context.Context) error {
	ctxlog.FromContext(ctx).Info("actuator: suspend visitor access")
	return nil
}

func (a *LogActuator) RestoreVisitorAccess(ctx context.Context) error {
	ctxlog.FromContext(ctx).Info("actuator: restore visitor access")
	return nil
}

func (a *LogActuator) RestoreNormalOperation(ctx context.Context) error {
	ctxlog.FromContext(ctx).Info("actuator: restore normal operation")
	return nil
}

func (a *LogActuator) Ping(_ context.Context) error {
	return nil
}
