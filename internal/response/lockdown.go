package response

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/notify"
	"github.com/havenpoint/facility-response/internal/pkg/ctxlog"
	"github.com/havenpoint/facility-response/internal/protocol"
)

// LockdownResult is returned from a successful lockdown initiation.
type LockdownResult struct {
	LockdownID                 string               `json:"lockdown_id"`
	Level                      domain.LockdownLevel `json:"level"`
	AreasLocked                []string             `json:"areas_locked"`
	AreasFailed                []ActionFailure      `json:"areas_failed,omitempty"`
	EstimatedCompletionMinutes float64              `json:"estimated_completion_minutes"`
	AccessExceptions           []string             `json:"access_exceptions"`
}

// InitiateLockdown marks the incident's lockdown data, transitions it to
// responding and drives the security actuation sequence. Per-area lock
// failures are isolated; only registry invariant violations fail the call.
func (s *Service) InitiateLockdown(ctx context.Context, incidentID string, level domain.LockdownLevel, affectedAreas []string) (*LockdownResult, error) {
	logger := ctxlog.FromContext(ctx)

	if !level.IsValid() {
		return nil, fmt.Errorf("%w: unknown lockdown level %q", ErrValidation, level)
	}

	spec := protocol.LockdownSpecFor(level)
	areas := protocol.LockdownAreas(level, affectedAreas)

	lockdownID := uuid.New().String()
	now := time.Now().UTC()

	// Mutate registry state first, then actuate. Side effects are eventually
	// consistent with recorded state; the per-incident lock is never held
	// across a collaborator call.
	inc, err := s.registry.Mutate(incidentID, func(i *domain.Incident) error {
		if i.Lockdown.Active() {
			return ErrLockdownActive
		}
		i.Lockdown = &domain.LockdownData{
			ID:               lockdownID,
			Level:            level,
			LockedAreas:      areas,
			AccessExceptions: spec.AccessExceptions,
			StartedAt:        now,
		}
		if i.Status == domain.IncidentStatusActive {
			i.Status = domain.IncidentStatusResponding
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("lockdown initiated",
		"incident_id", incidentID,
		"lockdown_id", lockdownID,
		"level", level,
		"areas", len(areas),
	)
	recordLockdown(string(level))

	result := &LockdownResult{
		LockdownID:                 lockdownID,
		Level:                      level,
		EstimatedCompletionMinutes: protocol.EstimatedLockdownMinutes(len(areas)),
		AccessExceptions:           spec.AccessExceptions,
	}

	// Facility-wide lockdown command.
	if err := s.withTimeout(ctx, func(c context.Context) error {
		return s.actuator.Lockdown(c, level, areas, spec.Duration, spec.AccessExceptions, inc.Title)
	}); err != nil {
		logger.Error("facility lockdown command failed", "incident_id", incidentID, "error", err)
		recordActuationFailure("lockdown_command")
	}

	// Per-area lock commands, each isolated.
	for _, area := range areas {
		err := s.withTimeout(ctx, func(c context.Context) error {
			return s.actuator.LockArea(c, area)
		})
		if err != nil {
			logger.Error("area lock failed", "incident_id", incidentID, "area", area, "error", err)
			result.AreasFailed = append(result.AreasFailed, ActionFailure{Action: area, Error: err.Error()})
			recordActuationFailure("lock_area")
			continue
		}
		result.AreasLocked = append(result.AreasLocked, area)
	}

	if err := s.withTimeout(ctx, func(c context.Context) error {
		return s.actuator.SuspendVisitorAccess(c)
	}); err != nil {
		logger.Error("visitor access suspension failed", "incident_id", incidentID, "error", err)
		recordActuationFailure("suspend_visitor_access")
	}

	// Best-effort headcount reconciliation.
	if persons, err := s.occupancy.CountPersonsInAreas(ctx, areas); err != nil {
		logger.Warn("person accounting failed", "incident_id", incidentID, "error", err)
		recordActuationFailure("person_accounting")
	} else {
		logger.Info("person accounting", "incident_id", incidentID, "persons_in_areas", persons)
	}

	s.sendLockdownNotification(ctx, inc, level, areas)

	s.appendAction(incidentID, domain.ResponseAction{
		Action: "initiate_lockdown",
		Actor:  "response-orchestrator",
		Status: domain.ActionStatusCompleted,
		Notes:  fmt.Sprintf("level %s, %d of %d areas locked", level, len(result.AreasLocked), len(areas)),
	})

	s.audit(ctx, "response-orchestrator", "lockdown.initiated", incidentID, map[string]any{
		"lockdown_id":  lockdownID,
		"level":        string(level),
		"areas":        areas,
		"areas_failed": len(result.AreasFailed),
	})

	return result, nil
}

func (s *Service) sendLockdownNotification(ctx context.Context, inc *domain.Incident, level domain.LockdownLevel, areas []string) {
	logger := ctxlog.FromContext(ctx)

	subject, body, err := s.renderer.Render(notify.KindLockdown, notify.TemplateData{
		IncidentID:  inc.ID,
		Category:    string(inc.Category),
		Priority:    string(inc.Priority),
		Level:       string(level),
		Areas:       areas,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Error("render lockdown notification", "incident_id", inc.ID, "error", err)
		return
	}

	msg := notify.Message{
		Priority:   inc.Priority,
		Subject:    subject,
		Body:       body,
		Recipients: s.allRecipients(),
	}

	channels := append([]notify.ChannelType{notify.ChannelPublicAddress}, s.config.EmergencyChannels...)

	callCtx, cancel := context.WithTimeout(ctx, s.config.ActionTimeout)
	delivered, failed := s.dispatcher.Dispatch(callCtx, channels, msg)
	cancel()

	for range failed {
		recordActuationFailure("lockdown_notification")
	}
	for _, ch := range delivered {
		s.appendCommunication(inc.ID, domain.Communication{
			Channel:    string(ch),
			Recipients: msg.Recipients,
			Sender:     "response-orchestrator",
			Message:    subject,
		})
	}
}

// withTimeout runs one collaborator call under the configured action
// timeout.
func (s *Service) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.config.ActionTimeout)
	defer cancel()
	return fn(callCtx)
}
