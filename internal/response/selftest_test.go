package response

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenpoint/facility-response/internal/notify"
)

func TestSelfTest_SyntheticFull(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.SelfTest(context.Background(), SelfTestFull)
	require.NoError(t, err)

	assert.Equal(t, SelfTestFull, result.Kind)
	assert.Equal(t, "synthetic", result.Mode)
	assert.InDelta(t, 1.0, result.SuccessRate, 0.001)
	assert.Empty(t, result.Issues)
	assert.NotEmpty(t, result.Checks)
	assert.False(t, result.RanAt.IsZero())

	// A self-test never touches incident state.
	assert.Equal(t, 0, f.registry.ActiveCount())
	assert.Contains(t, f.auditActions(), "selftest.completed")
}

func TestSelfTest_DefaultsToFull(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.SelfTest(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, SelfTestFull, result.Kind)
}

func TestSelfTest_UnknownKind(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SelfTest(context.Background(), "network")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSelfTest_SubsetKinds(t *testing.T) {
	f := newFixture(t)

	for _, kind := range []SelfTestKind{SelfTestLockdown, SelfTestEvacuation, SelfTestCommunication} {
		result, err := f.service.SelfTest(context.Background(), kind)
		require.NoError(t, err)
		assert.Equal(t, kind, result.Kind)
		assert.NotEmpty(t, result.Checks)
	}
}

func TestSelfTest_ReportsMissingChannel(t *testing.T) {
	f := newFixture(t)
	// Only the push sender registered; sms has no sender behind it.
	f.service.dispatcher = notify.NewDispatcher(f.push)

	result, err := f.service.SelfTest(context.Background(), SelfTestCommunication)
	require.NoError(t, err)

	assert.Less(t, result.SuccessRate, 1.0)
	assert.NotEmpty(t, result.Issues)
}

func TestSelfTest_LiveProbesActuator(t *testing.T) {
	f := newFixture(t)
	f.service.config.SelfTestLive = true
	f.actuator.pingErr = assert.AnError

	result, err := f.service.SelfTest(context.Background(), SelfTestLockdown)
	require.NoError(t, err)

	assert.Equal(t, "live", result.Mode)
	assert.Equal(t, 1, f.actuator.callCount("ping"))
	assert.Less(t, result.SuccessRate, 1.0)
}
