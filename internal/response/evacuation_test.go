package response

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/registry"
)

func TestInitiateEvacuation_AffectedAreasBecomeZones(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	result, err := f.service.InitiateEvacuation(context.Background(), declared.IncidentID, []string{"west_wing", "east_wing"})
	require.NoError(t, err)

	assert.NotEmpty(t, result.EvacuationID)
	assert.Equal(t, []string{"west_wing", "east_wing"}, result.Zones)
	assert.Len(t, result.Routes, 2)
	assert.NotEmpty(t, result.AssemblyPoints)
	assert.Equal(t, 12, result.PersonsToEvacuate)
	assert.Greater(t, result.EstimatedDurationMinutes, 0.0)

	assert.Equal(t, 1, f.actuator.callCount("activate_alarms"))
	assert.Equal(t, 1, f.actuator.callCount("unlock_exits"))
	assert.Equal(t, 1, f.actuator.callCount("activate_lighting"))

	inc, err := f.registry.Get(declared.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResponding, inc.Status)
	require.NotNil(t, inc.Evacuation)
	assert.Equal(t, domain.EvacuationInProgress, inc.Evacuation.Status)
	assert.Equal(t, 12, inc.Evacuation.PersonsTotal)
}

func TestInitiateEvacuation_FallsBackToLocation(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	result, err := f.service.InitiateEvacuation(context.Background(), declared.IncidentID, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Building A/Floor 1/Dining Hall"}, result.Zones)
}

func TestInitiateEvacuation_AlreadyActive(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	_, err := f.service.InitiateEvacuation(context.Background(), declared.IncidentID, []string{"west_wing"})
	require.NoError(t, err)

	_, err = f.service.InitiateEvacuation(context.Background(), declared.IncidentID, []string{"east_wing"})
	assert.ErrorIs(t, err, ErrEvacuationActive)
}

func TestInitiateEvacuation_UnknownIncident(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.InitiateEvacuation(context.Background(), "no-such-incident", nil)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestInitiateEvacuation_OccupancyFailureTolerated(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())
	f.occupancy.areaErr = assert.AnError

	result, err := f.service.InitiateEvacuation(context.Background(), declared.IncidentID, []string{"west_wing"})
	require.NoError(t, err)

	assert.Equal(t, 0, result.PersonsToEvacuate)
}

func TestInitiateEvacuation_AlarmFailureIsolated(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())
	f.actuator.alarmsErr = assert.AnError
	f.actuator.exitsErr = assert.AnError

	result, err := f.service.InitiateEvacuation(context.Background(), declared.IncidentID, []string{"west_wing"})
	require.NoError(t, err)
	require.NotNil(t, result)

	// Lighting still activated after alarm and exit failures.
	assert.Equal(t, 1, f.actuator.callCount("activate_lighting"))
}

func TestInitiateEvacuation_RecordsWardenDispatch(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	_, err := f.service.InitiateEvacuation(context.Background(), declared.IncidentID, []string{"west_wing"})
	require.NoError(t, err)

	inc, err := f.registry.Get(declared.IncidentID)
	require.NoError(t, err)

	var found bool
	for _, a := range inc.Actions {
		if a.Action == "dispatch_wardens" {
			found = true
			assert.Equal(t, domain.ActionStatusInProgress, a.Status)
		}
	}
	assert.True(t, found, "warden dispatch action not recorded")
}

func TestCompleteEvacuation_Monotonic(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	_, err := f.service.InitiateEvacuation(context.Background(), declared.IncidentID, []string{"west_wing"})
	require.NoError(t, err)

	f.service.completeEvacuation(context.Background(), declared.IncidentID)

	inc, err := f.registry.Get(declared.IncidentID)
	require.NoError(t, err)
	require.NotNil(t, inc.Evacuation.CompletedAt)
	first := *inc.Evacuation.CompletedAt

	// A second completion must not move the completion timestamp.
	f.service.completeEvacuation(context.Background(), declared.IncidentID)

	inc, err = f.registry.Get(declared.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, domain.EvacuationCompleted, inc.Evacuation.Status)
	assert.True(t, first.Equal(*inc.Evacuation.CompletedAt))
}
