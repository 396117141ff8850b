package response

import (
	"context"
	"fmt"
	"time"

	"github.com/havenpoint/facility-response/internal/notify"
	"github.com/havenpoint/facility-response/internal/pkg/ctxlog"
)

// SelfTestKind selects which subsystems a self-test exercises.
type SelfTestKind string

const (
	SelfTestFull          SelfTestKind = "full"
	SelfTestLockdown      SelfTestKind = "lockdown"
	SelfTestEvacuation    SelfTestKind = "evacuation"
	SelfTestCommunication SelfTestKind = "communication"
)

// SelfTestCheck is the outcome of one subsystem check.
type SelfTestCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// SelfTestResult summarises a readiness diagnostic run. It never touches
// incident state.
type SelfTestResult struct {
	Kind        SelfTestKind    `json:"kind"`
	Mode        string          `json:"mode"`
	SuccessRate float64         `json:"success_rate"`
	Checks      []SelfTestCheck `json:"checks"`
	Issues      []string        `json:"issues,omitempty"`
	RanAt       time.Time       `json:"ran_at"`
}

// SelfTest exercises the lockdown, evacuation and communication subsystems
// and reports a success rate with an issue list. In synthetic mode the
// checks are smoke checks against local wiring; in live mode they probe the
// actual collaborators.
func (s *Service) SelfTest(ctx context.Context, kind SelfTestKind) (*SelfTestResult, error) {
	if kind == "" {
		kind = SelfTestFull
	}
	switch kind {
	case SelfTestFull, SelfTestLockdown, SelfTestEvacuation, SelfTestCommunication:
	default:
		return nil, fmt.Errorf("%w: unknown self-test kind %q", ErrValidation, kind)
	}

	mode := "synthetic"
	if s.config.SelfTestLive {
		mode = "live"
	}

	var checks []SelfTestCheck
	if kind == SelfTestFull || kind == SelfTestLockdown {
		checks = append(checks, s.selfTestLockdown(ctx)...)
	}
	if kind == SelfTestFull || kind == SelfTestEvacuation {
		checks = append(checks, s.selfTestEvacuation(ctx)...)
	}
	if kind == SelfTestFull || kind == SelfTestCommunication {
		checks = append(checks, s.selfTestCommunication()...)
	}

	passed := 0
	var issues []string
	for _, c := range checks {
		if c.Passed {
			passed++
			continue
		}
		issues = append(issues, c.Name+": "+c.Detail)
	}

	rate := 1.0
	if len(checks) > 0 {
		rate = float64(passed) / float64(len(checks))
	}

	result := &SelfTestResult{
		Kind:        kind,
		Mode:        mode,
		SuccessRate: rate,
		Checks:      checks,
		Issues:      issues,
		RanAt:       time.Now().UTC(),
	}

	ctxlog.FromContext(ctx).Info("self-test completed",
		"kind", kind, "mode", mode, "success_rate", rate, "issues", len(issues))
	s.audit(ctx, "response-orchestrator", "selftest.completed", "", map[string]any{
		"kind":         string(kind),
		"mode":         mode,
		"success_rate": rate,
		"issues":       issues,
	})

	return result, nil
}

func (s *Service) selfTestLockdown(ctx context.Context) []SelfTestCheck {
	if !s.config.SelfTestLive {
		return []SelfTestCheck{
			{Name: "lockdown.actuator", Passed: s.actuator != nil, Detail: detailIfNil(s.actuator == nil, "no security actuator configured")},
			{Name: "lockdown.policy", Passed: true},
		}
	}

	check := SelfTestCheck{Name: "lockdown.actuator", Passed: true}
	if err := s.withTimeout(ctx, s.actuator.Ping); err != nil {
		check.Passed = false
		check.Detail = err.Error()
	}
	return []SelfTestCheck{check, {Name: "lockdown.policy", Passed: true}}
}

func (s *Service) selfTestEvacuation(ctx context.Context) []SelfTestCheck {
	if !s.config.SelfTestLive {
		return []SelfTestCheck{
			{Name: "evacuation.zones", Passed: len(s.config.DefaultEvacuationZones) > 0, Detail: detailIfNil(len(s.config.DefaultEvacuationZones) == 0, "no default evacuation zones configured")},
			{Name: "evacuation.occupancy", Passed: s.occupancy != nil, Detail: detailIfNil(s.occupancy == nil, "no occupancy source configured")},
		}
	}

	zones := SelfTestCheck{Name: "evacuation.zones", Passed: len(s.config.DefaultEvacuationZones) > 0}
	if !zones.Passed {
		zones.Detail = "no default evacuation zones configured"
	}

	occ := SelfTestCheck{Name: "evacuation.occupancy", Passed: true}
	callCtx, cancel := context.WithTimeout(ctx, s.config.ActionTimeout)
	if _, err := s.occupancy.CurrentPersonsOnSite(callCtx); err != nil {
		occ.Passed = false
		occ.Detail = err.Error()
	}
	cancel()

	return []SelfTestCheck{zones, occ}
}

func (s *Service) selfTestCommunication() []SelfTestCheck {
	available := make(map[notify.ChannelType]bool)
	for _, ch := range s.dispatcher.Channels() {
		available[ch] = true
	}

	checks := make([]SelfTestCheck, 0, len(s.config.EmergencyChannels))
	for _, ch := range s.config.EmergencyChannels {
		c := SelfTestCheck{Name: "communication." + string(ch), Passed: available[ch]}
		if !c.Passed {
			c.Detail = "channel has no configured sender"
		}
		checks = append(checks, c)
	}
	return checks
}

func detailIfNil(failed bool, detail string) string {
	if failed {
		return detail
	}
	return ""
}
