package response

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenpoint/facility-response/internal/archive"
	"github.com/havenpoint/facility-response/internal/audit"
	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/notify"
	"github.com/havenpoint/facility-response/internal/readiness"
	"github.com/havenpoint/facility-response/internal/registry"
)

// mockActuator implements SecurityActuator for testing. It records every
// command and fails on demand per method.
type mockActuator struct {
	mu    sync.Mutex
	calls []string

	lockdownErr       error
	lockAreaErr       error
	unlockAreaErr     error
	alarmsErr         error
	exitsErr          error
	lightingErr       error
	suspendErr        error
	restoreVisitorErr error
	restoreNormalErr  error
	pingErr           error
}

func (m *mockActuator) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockActuator) callCount(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (m *mockActuator) Lockdown(_ context.Context, level domain.LockdownLevel, _ []string, _ time.Duration, _ []string, _ string) error {
	m.record("lockdown:" + string(level))
	return m.lockdownErr
}

func (m *mockActuator) LockArea(_ context.Context, area string) error {
	m.record("lock_area:" + area)
	return m.lockAreaErr
}

func (m *mockActuator) UnlockArea(_ context.Context, area string) error {
	m.record("unlock_area:" + area)
	return m.unlockAreaErr
}

func (m *mockActuator) ActivateAlarms(_ context.Context, _ []string) error {
	m.record("activate_alarms")
	return m.alarmsErr
}

func (m *mockActuator) UnlockExits(_ context.Context, _ []string) error {
	m.record("unlock_exits")
	return m.exitsErr
}

func (m *mockActuator) ActivateLighting(_ context.Context, _ []string) error {
	m.record("activate_lighting")
	return m.lightingErr
}

func (m *mockActuator) SuspendVisitorAccess(_ context.Context) error {
	m.record("suspend_visitor_access")
	return m.suspendErr
}

func (m *mockActuator) RestoreVisitorAccess(_ context.Context) error {
	m.record("restore_visitor_access")
	return m.restoreVisitorErr
}

func (m *mockActuator) RestoreNormalOperation(_ context.Context) error {
	m.record("restore_normal_operation")
	return m.restoreNormalErr
}

func (m *mockActuator) Ping(_ context.Context) error {
	m.record("ping")
	return m.pingErr
}

// mockOccupancy implements Occupancy for testing.
type mockOccupancy struct {
	areaCount int
	areaErr   error
	snapshot  domain.OccupancySnapshot
	siteErr   error
}

func (m *mockOccupancy) CountPersonsInAreas(_ context.Context, _ []string) (int, error) {
	if m.areaErr != nil {
		return 0, m.areaErr
	}
	return m.areaCount, nil
}

func (m *mockOccupancy) CurrentPersonsOnSite(_ context.Context) (domain.OccupancySnapshot, error) {
	if m.siteErr != nil {
		return domain.OccupancySnapshot{}, m.siteErr
	}
	return m.snapshot, nil
}

// fakeSender implements notify.Sender for one channel and records sent
// messages.
type fakeSender struct {
	channel notify.ChannelType
	err     error

	mu   sync.Mutex
	sent []notify.Message
}

func (f *fakeSender) Type() notify.ChannelType { return f.channel }

func (f *fakeSender) Send(_ context.Context, msg notify.Message) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// stubReadiness implements ReadinessSource with a fixed snapshot.
type stubReadiness struct {
	snap readiness.Snapshot
}

func (s *stubReadiness) Snapshot() readiness.Snapshot { return s.snap }

func healthySnapshot() readiness.Snapshot {
	now := time.Now().UTC()
	return readiness.Snapshot{
		Results: map[string]readiness.ProbeResult{
			ProbeActuator:  {Healthy: true, CheckedAt: now},
			ProbeOccupancy: {Healthy: true, CheckedAt: now},
			ProbeAudit:     {Healthy: true, CheckedAt: now},
			ProbeArchive:   {Healthy: true, CheckedAt: now},
		},
		CheckedAt: now,
	}
}

// fixture wires a service over in-memory collaborators.
type fixture struct {
	service   *Service
	registry  *registry.Registry
	actuator  *mockActuator
	occupancy *mockOccupancy
	push      *fakeSender
	sms       *fakeSender
	email     *fakeSender
	pa        *fakeSender
	alarm     *fakeSender
	auditLog  *audit.MemoryLog
	archive   *archive.MemoryRepository
	readiness *stubReadiness
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		registry:  registry.New(),
		actuator:  &mockActuator{},
		occupancy: &mockOccupancy{areaCount: 12, snapshot: domain.OccupancySnapshot{Residents: 30, Staff: 8, Visitors: 4}},
		push:      &fakeSender{channel: notify.ChannelPush},
		sms:       &fakeSender{channel: notify.ChannelSMS},
		email:     &fakeSender{channel: notify.ChannelEmail},
		pa:        &fakeSender{channel: notify.ChannelPublicAddress},
		alarm:     &fakeSender{channel: notify.ChannelAlarm},
		auditLog:  audit.NewMemoryLog(),
		archive:   archive.NewMemoryRepository(),
		readiness: &stubReadiness{snap: healthySnapshot()},
	}

	renderer, err := notify.NewRenderer()
	require.NoError(t, err)

	f.service = NewService(
		Config{
			DefaultEvacuationZones: []string{"ground_floor"},
			ActionTimeout:          time.Second,
			ProgressInterval:       time.Hour,
			ProgressDeadline:       time.Hour,
			EmergencyChannels:      []notify.ChannelType{notify.ChannelPush, notify.ChannelSMS},
			StaffRecipients:        []string{"staff@havenpoint.example"},
			ManagementRecipients:   []string{"mgmt@havenpoint.example"},
			EmergencyContacts:      []string{"+4400000000"},
		},
		f.registry,
		f.actuator,
		f.occupancy,
		notify.NewDispatcher(f.push, f.sms, f.email, f.pa, f.alarm),
		renderer,
		f.auditLog,
		f.archive,
		f.readiness,
	)
	t.Cleanup(f.service.StopTrackers)
	return f
}

func (f *fixture) declare(t *testing.T, input DeclareInput) *DeclareResult {
	t.Helper()
	result, err := f.service.Declare(context.Background(), input)
	require.NoError(t, err)
	return result
}

func medicalInput() DeclareInput {
	return DeclareInput{
		Category:   domain.CategoryMedical,
		Priority:   domain.PriorityHigh,
		Title:      "Resident collapsed in dining hall",
		Location:   domain.Location{Building: "Building A", Floor: "Floor 1", Room: "Dining Hall"},
		ReportedBy: "nurse-on-duty",
	}
}

func fireInput() DeclareInput {
	return DeclareInput{
		Category:   domain.CategoryFire,
		Priority:   domain.PriorityCritical,
		Title:      "Kitchen fire",
		Location:   domain.Location{Building: "Building A", Floor: "Floor 1", Room: "Kitchen"},
		ReportedBy: "kitchen-staff",
	}
}

func (f *fixture) auditActions() []string {
	entries := f.auditLog.Entries()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func TestDeclare_MedicalHigh(t *testing.T) {
	f := newFixture(t)

	result := f.declare(t, medicalInput())

	assert.NotEmpty(t, result.IncidentID)
	assert.Nil(t, result.Lockdown)
	assert.Nil(t, result.Evacuation)
	assert.ElementsMatch(t, []string{"dispatch_medical_team", "notify_security_team"}, result.AutoActionsTriggered)
	assert.Empty(t, result.FailedActions)
	assert.InDelta(t, 7.0, result.EstimatedResponseMinutes, 0.001)
	assert.Equal(t, []string{"ambulance"}, result.EmergencyServicesNotified)
	assert.Equal(t, domain.FacilityStatusAlert, result.FacilityStatus)

	inc, err := f.registry.Get(result.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusActive, inc.Status)
	assert.Len(t, inc.Actions, 2)
	assert.NotEmpty(t, inc.Communications)
	assert.Equal(t, []string{"ambulance"}, inc.ResponseTeam.EmergencyServices)
	assert.Greater(t, inc.Version, int64(1))
}

func TestDeclare_CriticalFire_LocksDownAndEvacuates(t *testing.T) {
	f := newFixture(t)

	result := f.declare(t, fireInput())

	require.NotNil(t, result.Lockdown)
	assert.Equal(t, domain.LockdownLevelComplete, result.Lockdown.Level)
	assert.NotEmpty(t, result.Lockdown.AreasLocked)

	require.NotNil(t, result.Evacuation)
	assert.Equal(t, []string{"Building A/Floor 1/Kitchen"}, result.Evacuation.Zones)
	assert.Len(t, result.Evacuation.Routes, 1)
	assert.NotEmpty(t, result.Evacuation.AssemblyPoints)
	assert.Equal(t, 12, result.Evacuation.PersonsToEvacuate)

	assert.Equal(t, domain.FacilityStatusEmergency, result.FacilityStatus)

	assert.Equal(t, 1, f.actuator.callCount("lockdown:complete"))
	assert.Equal(t, 1, f.actuator.callCount("suspend_visitor_access"))
	assert.GreaterOrEqual(t, f.actuator.callCount("activate_alarms"), 1)
	assert.GreaterOrEqual(t, f.actuator.callCount("unlock_exits"), 1)

	inc, err := f.registry.Get(result.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResponding, inc.Status)
	require.NotNil(t, inc.Lockdown)
	assert.True(t, inc.Lockdown.Active())
	require.NotNil(t, inc.Evacuation)
	assert.Equal(t, domain.EvacuationInProgress, inc.Evacuation.Status)
}

func TestDeclare_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		input DeclareInput
	}{
		{
			name:  "unknown category",
			input: DeclareInput{Category: "flood", Priority: domain.PriorityHigh, Location: domain.Location{Building: "A"}, ReportedBy: "x"},
		},
		{
			name:  "unknown priority",
			input: DeclareInput{Category: domain.CategoryFire, Priority: "urgent", Location: domain.Location{Building: "A"}, ReportedBy: "x"},
		},
		{
			name:  "missing building",
			input: DeclareInput{Category: domain.CategoryFire, Priority: domain.PriorityHigh, ReportedBy: "x"},
		},
		{
			name:  "missing reporter",
			input: DeclareInput{Category: domain.CategoryFire, Priority: domain.PriorityHigh, Location: domain.Location{Building: "A"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Declare(context.Background(), tt.input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestDeclare_ActuatorFailureIsolated(t *testing.T) {
	f := newFixture(t)
	f.actuator.alarmsErr = assert.AnError

	result := f.declare(t, fireInput())

	var failed []string
	for _, fa := range result.FailedActions {
		failed = append(failed, fa.Action)
	}
	assert.Contains(t, failed, "activate_fire_alarm")
	assert.NotContains(t, result.AutoActionsTriggered, "activate_fire_alarm")
	assert.Contains(t, result.AutoActionsTriggered, "unlock_emergency_exits")

	// The incident is still registered and responding.
	inc, err := f.registry.Get(result.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResponding, inc.Status)
}

func TestDeclare_AllChannelsDown_ServicesUnreachable(t *testing.T) {
	f := newFixture(t)
	f.sms.err = assert.AnError
	f.email.err = assert.AnError

	result := f.declare(t, medicalInput())

	assert.Empty(t, result.EmergencyServicesNotified)

	inc, err := f.registry.Get(result.IncidentID)
	require.NoError(t, err)
	for _, comm := range inc.Communications {
		assert.NotEqual(t, "emergency_service", comm.Channel)
	}
}

func TestDeclare_DefaultTitle(t *testing.T) {
	f := newFixture(t)

	input := medicalInput()
	input.Title = ""
	result := f.declare(t, input)

	inc, err := f.registry.Get(result.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, "medical incident at Building A/Floor 1/Dining Hall", inc.Title)
}

func TestDeclare_AuditTrail(t *testing.T) {
	f := newFixture(t)

	f.declare(t, fireInput())

	actions := f.auditActions()
	assert.Contains(t, actions, "incident.declared")
	assert.Contains(t, actions, "lockdown.initiated")
	assert.Contains(t, actions, "evacuation.initiated")
}

func TestDeclare_EmergencyNotificationFansOut(t *testing.T) {
	f := newFixture(t)

	f.declare(t, medicalInput())

	// Emergency channels are push and sms in this fixture; both must have
	// received the emergency notification on top of the action traffic.
	assert.Greater(t, f.push.sentCount(), 0)
	assert.Greater(t, f.sms.sentCount(), 0)
}
