package response

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/registry"
)

func TestUpdate_AppendsActionsAndCommunications(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	before, err := f.registry.Get(declared.IncidentID)
	require.NoError(t, err)

	inc, err := f.service.Update(context.Background(), declared.IncidentID, UpdateInput{
		Actions: []domain.ResponseAction{
			{Action: "administer_first_aid", Actor: "nurse-on-duty"},
		},
		Communications: []domain.Communication{
			{Channel: "phone", Recipients: []string{"family"}, Sender: "duty-manager", Message: "family informed"},
		},
		UpdatedBy: "duty-manager",
	})
	require.NoError(t, err)

	assert.Len(t, inc.Actions, len(before.Actions)+1)
	assert.Len(t, inc.Communications, len(before.Communications)+1)
	assert.Equal(t, before.Version+1, inc.Version)

	appended := inc.Actions[len(inc.Actions)-1]
	assert.NotEmpty(t, appended.ID)
	assert.False(t, appended.Timestamp.IsZero())
	assert.Equal(t, domain.ActionStatusCompleted, appended.Status)

	comm := inc.Communications[len(inc.Communications)-1]
	assert.NotEmpty(t, comm.ID)
	assert.False(t, comm.Timestamp.IsZero())
}

func TestUpdate_StatusTransition(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	responding := domain.IncidentStatusResponding
	inc, err := f.service.Update(context.Background(), declared.IncidentID, UpdateInput{
		Status:    &responding,
		UpdatedBy: "duty-manager",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResponding, inc.Status)

	contained := domain.IncidentStatusContained
	inc, err = f.service.Update(context.Background(), declared.IncidentID, UpdateInput{
		Status:    &contained,
		UpdatedBy: "duty-manager",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusContained, inc.Status)
}

func TestUpdate_BackwardTransitionRejected(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	contained := domain.IncidentStatusContained
	_, err := f.service.Update(context.Background(), declared.IncidentID, UpdateInput{Status: &contained, UpdatedBy: "x"})
	require.NoError(t, err)

	responding := domain.IncidentStatusResponding
	_, err = f.service.Update(context.Background(), declared.IncidentID, UpdateInput{Status: &responding, UpdatedBy: "x"})
	assert.ErrorIs(t, err, registry.ErrInvalidTransition)
}

func TestUpdate_ResolvedStatusRunsResolution(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, fireInput())

	resolved := domain.IncidentStatusResolved
	inc, err := f.service.Update(context.Background(), declared.IncidentID, UpdateInput{
		Status:    &resolved,
		Notes:     "fire out, area inspected",
		UpdatedBy: "commander-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.IncidentStatusResolved, inc.Status)
	require.NotNil(t, inc.Resolution)
	assert.Equal(t, "fire out, area inspected", inc.Resolution.Summary)
	assert.Equal(t, "commander-1", inc.Resolution.ResolvedBy)

	// The full restoration sequence ran and the incident left the
	// active set, same as calling the resolve operation directly.
	assert.Equal(t, 1, f.actuator.callCount("restore_normal_operation"))
	assert.Equal(t, 1, f.actuator.callCount("restore_visitor_access"))
	_, err = f.registry.Get(declared.IncidentID)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.Equal(t, domain.FacilityStatusNormal, f.registry.FacilityStatus())
}

func TestUpdate_ResolvedStatusDefaultSummary(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	resolved := domain.IncidentStatusResolved
	inc, err := f.service.Update(context.Background(), declared.IncidentID, UpdateInput{Status: &resolved, UpdatedBy: "x"})
	require.NoError(t, err)
	require.NotNil(t, inc.Resolution)
	assert.Equal(t, "resolved via incident update", inc.Resolution.Summary)
}

func TestUpdate_SetsIncidentCommander(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	inc, err := f.service.Update(context.Background(), declared.IncidentID, UpdateInput{
		IncidentCommander: "commander-7",
		UpdatedBy:         "dispatcher-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "commander-7", inc.ResponseTeam.IncidentCommander)

	// A later update without a commander leaves the assignment alone.
	inc, err = f.service.Update(context.Background(), declared.IncidentID, UpdateInput{UpdatedBy: "dispatcher-1"})
	require.NoError(t, err)
	assert.Equal(t, "commander-7", inc.ResponseTeam.IncidentCommander)
}

func TestUpdate_Validation(t *testing.T) {
	f := newFixture(t)
	declared := f.declare(t, medicalInput())

	_, err := f.service.Update(context.Background(), declared.IncidentID, UpdateInput{})
	assert.ErrorIs(t, err, ErrValidation)

	bogus := domain.IncidentStatus("escalated")
	_, err = f.service.Update(context.Background(), declared.IncidentID, UpdateInput{Status: &bogus, UpdatedBy: "x"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdate_UnknownIncident(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Update(context.Background(), "no-such-incident", UpdateInput{UpdatedBy: "x"})
	assert.ErrorIs(t, err, registry.ErrNotFound)
}
