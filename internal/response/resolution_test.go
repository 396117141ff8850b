package response

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/registry"
)

func resolveInput() ResolveInput {
	return ResolveInput{
		Summary:    "Fire extinguished, kitchen closed pending inspection",
		ResolvedBy: "incident-commander",
	}
}

func TestResolve_FullRestoration(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, fireInput())

	result, err := f.service.Resolve(context.Background(), declared.IncidentID, resolveInput())
	require.NoError(t, err)

	assert.Equal(t, domain.IncidentStatusResolved, result.Incident.Status)
	require.NotNil(t, result.Incident.Resolution)
	assert.Equal(t, "Fire extinguished, kitchen closed pending inspection", result.Incident.Resolution.Summary)
	assert.NotNil(t, result.Incident.Resolution.ResolvedAt)

	assert.Contains(t, result.RestorationActions, "unlock_area:all_areas")
	assert.Contains(t, result.RestorationActions, "restore_visitor_access")
	assert.Contains(t, result.RestorationActions, "complete_evacuation")
	assert.Contains(t, result.RestorationActions, "restore_normal_operation")
	assert.Empty(t, result.RestorationErrors)
	assert.Equal(t, domain.FacilityStatusNormal, result.FacilityStatus)
	assert.True(t, result.ReportScheduled, "critical incidents require a post-incident report")

	assert.Equal(t, 1, f.actuator.callCount("unlock_area:all_areas"))
	assert.Equal(t, 1, f.actuator.callCount("restore_visitor_access"))
	assert.Equal(t, 1, f.actuator.callCount("restore_normal_operation"))

	// The lockdown is closed exactly once and the incident leaves the
	// active set.
	require.NotNil(t, result.Incident.Lockdown.EndedAt)
	_, err = f.registry.Get(declared.IncidentID)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.Equal(t, domain.FacilityStatusNormal, f.registry.FacilityStatus())

	archived, err := f.archive.Get(context.Background(), declared.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResolved, archived.Status)
	assert.Equal(t, domain.EvacuationCompleted, archived.Evacuation.Status)
}

func TestResolve_ReportScheduling(t *testing.T) {
	f := newFixture(t)

	input := medicalInput()
	input.Priority = domain.PriorityMedium
	declared := f.declare(t, input)

	result, err := f.service.Resolve(context.Background(), declared.IncidentID, resolveInput())
	require.NoError(t, err)
	assert.False(t, result.ReportScheduled)

	declared = f.declare(t, input)
	in := resolveInput()
	in.RequiresInvestigation = true
	result, err = f.service.Resolve(context.Background(), declared.IncidentID, in)
	require.NoError(t, err)
	assert.True(t, result.ReportScheduled)
}

func TestResolve_Validation(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	_, err := f.service.Resolve(context.Background(), declared.IncidentID, ResolveInput{ResolvedBy: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.service.Resolve(context.Background(), declared.IncidentID, ResolveInput{Summary: "done"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResolve_UnknownIncident(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Resolve(context.Background(), "no-such-incident", resolveInput())
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestResolve_Twice(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	_, err := f.service.Resolve(context.Background(), declared.IncidentID, resolveInput())
	require.NoError(t, err)

	// Retiring removed the incident from the active set.
	_, err = f.service.Resolve(context.Background(), declared.IncidentID, resolveInput())
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestResolve_RestorationErrorsIsolated(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, fireInput())
	f.actuator.unlockAreaErr = assert.AnError
	f.actuator.restoreNormalErr = assert.AnError

	result, err := f.service.Resolve(context.Background(), declared.IncidentID, resolveInput())
	require.NoError(t, err)

	assert.Equal(t, domain.IncidentStatusResolved, result.Incident.Status)
	assert.Contains(t, result.RestorationErrors, "unlock_area:all_areas")
	assert.Contains(t, result.RestorationErrors, "restore_normal_operation")
	assert.Contains(t, result.RestorationActions, "restore_visitor_access")
}

func TestResolve_NoLockdownSkipsUnlock(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	result, err := f.service.Resolve(context.Background(), declared.IncidentID, resolveInput())
	require.NoError(t, err)

	assert.Contains(t, result.RestorationActions, "restore_visitor_access")
	assert.Contains(t, result.RestorationActions, "restore_normal_operation")
	assert.Equal(t, 0, f.actuator.callCount("unlock_area:all_areas"))
}

func TestResolve_Audited(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	_, err := f.service.Resolve(context.Background(), declared.IncidentID, resolveInput())
	require.NoError(t, err)

	assert.Contains(t, f.auditActions(), "incident.resolved")
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, fireInput())

	inc, err := f.service.Cancel(context.Background(), declared.IncidentID, "duty-manager", "declared in error during drill")
	require.NoError(t, err)

	assert.Equal(t, domain.IncidentStatusCancelled, inc.Status)
	require.NotNil(t, inc.Lockdown)
	assert.NotNil(t, inc.Lockdown.EndedAt)
	assert.Equal(t, 1, f.actuator.callCount("restore_normal_operation"))

	_, err = f.registry.Get(declared.IncidentID)
	assert.ErrorIs(t, err, registry.ErrNotFound)

	archived, err := f.archive.Get(context.Background(), declared.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusCancelled, archived.Status)

	assert.Contains(t, f.auditActions(), "incident.cancelled")
}

func TestCancel_Validation(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	_, err := f.service.Cancel(context.Background(), declared.IncidentID, "", "oops")
	assert.ErrorIs(t, err, ErrValidation)
}
