package response

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/notify"
	"github.com/havenpoint/facility-response/internal/pkg/ctxlog"
)

// ResolveInput carries the closing narrative for an incident.
type ResolveInput struct {
	Summary               string   `json:"summary" validate:"required"`
	LessonsLearned        []string `json:"lessons_learned,omitempty"`
	FollowUpActions       []string `json:"follow_up_actions,omitempty"`
	RequiresInvestigation bool     `json:"requires_investigation"`
	ResolvedBy            string   `json:"resolved_by" validate:"required"`
}

// ResolveResult reports what the restoration sequence accomplished.
type ResolveResult struct {
	Incident           *domain.Incident      `json:"incident"`
	FacilityStatus     domain.FacilityStatus `json:"facility_status"`
	RestorationActions []string              `json:"restoration_actions"`
	RestorationErrors  []string              `json:"restoration_errors,omitempty"`
	ReportScheduled    bool                  `json:"report_scheduled"`
}

// Resolve closes an incident: it ends any open lockdown, completes any
// running evacuation, restores normal facility operation, marks the
// incident resolved and moves it to the archive. Restoration steps are
// isolated so a failed actuator call never leaves the incident open.
func (s *Service) Resolve(ctx context.Context, incidentID string, input ResolveInput) (*ResolveResult, error) {
	logger := ctxlog.FromContext(ctx)

	if input.Summary == "" {
		return nil, fmt.Errorf("%w: summary is required", ErrValidation)
	}
	if input.ResolvedBy == "" {
		return nil, fmt.Errorf("%w: resolved_by is required", ErrValidation)
	}

	current, err := s.registry.Get(incidentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var restorations []string
	var restorationErrs []string

	// End the lockdown before touching the actuator so a concurrent
	// resolve sees it closed. EndedAt is written at most once.
	hadLockdown := false
	_, err = s.registry.Mutate(incidentID, func(i *domain.Incident) error {
		if i.Lockdown.Active() {
			hadLockdown = true
			i.Lockdown.EndedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if hadLockdown {
		for _, area := range current.Lockdown.LockedAreas {
			if err := s.withTimeout(ctx, func(c context.Context) error {
				return s.actuator.UnlockArea(c, area)
			}); err != nil {
				logger.Error("area unlock failed", "incident_id", incidentID, "area", area, "error", err)
				recordActuationFailure("unlock_area")
				restorationErrs = append(restorationErrs, "unlock_area:"+area)
				continue
			}
			restorations = append(restorations, "unlock_area:"+area)
		}
	}

	if current.Evacuation != nil && current.Evacuation.Status == domain.EvacuationInProgress {
		s.completeEvacuation(ctx, incidentID)
		restorations = append(restorations, "complete_evacuation")
	}
	s.trackers.stop(incidentID)

	// Visitor access is restored whether or not a lockdown suspended it;
	// the actuator treats a redundant restore as a no-op.
	if err := s.withTimeout(ctx, func(c context.Context) error {
		return s.actuator.RestoreVisitorAccess(c)
	}); err != nil {
		logger.Error("visitor access restore failed", "incident_id", incidentID, "error", err)
		recordActuationFailure("restore_visitor_access")
		restorationErrs = append(restorationErrs, "restore_visitor_access")
	} else {
		restorations = append(restorations, "restore_visitor_access")
	}

	if err := s.withTimeout(ctx, func(c context.Context) error {
		return s.actuator.RestoreNormalOperation(c)
	}); err != nil {
		logger.Error("normal operation restore failed", "incident_id", incidentID, "error", err)
		recordActuationFailure("restore_normal_operation")
		restorationErrs = append(restorationErrs, "restore_normal_operation")
	} else {
		restorations = append(restorations, "restore_normal_operation")
	}

	inc, err := s.registry.Mutate(incidentID, func(i *domain.Incident) error {
		i.Status = domain.IncidentStatusResolved
		i.Resolution = &domain.Resolution{
			Summary:               input.Summary,
			LessonsLearned:        input.LessonsLearned,
			FollowUpActions:       input.FollowUpActions,
			RequiresInvestigation: input.RequiresInvestigation,
			ResolvedBy:            input.ResolvedBy,
			ResolvedAt:            &now,
		}
		i.Actions = append(i.Actions, domain.ResponseAction{
			ID:        uuid.New().String(),
			Action:    "resolve_incident",
			Actor:     input.ResolvedBy,
			Status:    domain.ActionStatusCompleted,
			Notes:     input.Summary,
			Timestamp: now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	retired, err := s.registry.Retire(incidentID)
	if err != nil {
		return nil, err
	}
	facilityStatus := s.registry.FacilityStatus()

	if s.archive != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.config.ActionTimeout)
		if err := s.archive.Store(callCtx, retired); err != nil {
			logger.Error("incident archive failed", "incident_id", incidentID, "error", err)
			recordActuationFailure("archive_store")
		}
		cancel()
	}

	s.sendAllClearNotification(ctx, retired)

	reportScheduled := retired.Priority == domain.PriorityCritical || input.RequiresInvestigation
	if reportScheduled {
		logger.Info("post-incident report required",
			"incident_id", incidentID,
			"priority", retired.Priority,
			"requires_investigation", input.RequiresInvestigation,
		)
	}

	logger.Info("incident resolved",
		"incident_id", incidentID,
		"resolved_by", input.ResolvedBy,
		"restorations", len(restorations),
		"restoration_errors", len(restorationErrs),
	)
	recordResolution(string(retired.Category))

	s.audit(ctx, input.ResolvedBy, "incident.resolved", incidentID, map[string]any{
		"summary":             input.Summary,
		"restoration_actions": restorations,
		"restoration_errors":  restorationErrs,
		"report_scheduled":    reportScheduled,
	})

	return &ResolveResult{
		Incident:           inc,
		FacilityStatus:     facilityStatus,
		RestorationActions: restorations,
		RestorationErrors:  restorationErrs,
		ReportScheduled:    reportScheduled,
	}, nil
}

// Cancel closes an incident without the restoration sequence, for
// declarations made in error. Lockdowns and evacuations opened by the
// incident are still wound down.
func (s *Service) Cancel(ctx context.Context, incidentID, cancelledBy, reason string) (*domain.Incident, error) {
	logger := ctxlog.FromContext(ctx)

	if cancelledBy == "" {
		return nil, fmt.Errorf("%w: cancelled_by is required", ErrValidation)
	}

	now := time.Now().UTC()
	inc, err := s.registry.Mutate(incidentID, func(i *domain.Incident) error {
		i.Status = domain.IncidentStatusCancelled
		if i.Lockdown.Active() {
			i.Lockdown.EndedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if inc.Lockdown != nil {
		if err := s.withTimeout(ctx, func(c context.Context) error {
			return s.actuator.RestoreNormalOperation(c)
		}); err != nil {
			logger.Error("normal operation restore failed", "incident_id", incidentID, "error", err)
			recordActuationFailure("restore_normal_operation")
		}
	}
	s.trackers.stop(incidentID)

	retired, err := s.registry.Retire(incidentID)
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.config.ActionTimeout)
		if err := s.archive.Store(callCtx, retired); err != nil {
			logger.Error("incident archive failed", "incident_id", incidentID, "error", err)
			recordActuationFailure("archive_store")
		}
		cancel()
	}

	logger.Info("incident cancelled", "incident_id", incidentID, "cancelled_by", cancelledBy)
	s.audit(ctx, cancelledBy, "incident.cancelled", incidentID, map[string]any{"reason": reason})

	return retired, nil
}

func (s *Service) sendAllClearNotification(ctx context.Context, inc *domain.Incident) {
	logger := ctxlog.FromContext(ctx)

	subject, body, err := s.renderer.Render(notify.KindAllClear, notify.TemplateData{
		IncidentID:  inc.ID,
		Category:    string(inc.Category),
		Priority:    string(inc.Priority),
		Location:    inc.Location.String(),
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Error("render all-clear notification", "incident_id", inc.ID, "error", err)
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
	defer cancel()

	_, failed := s.dispatcher.Dispatch(callCtx, channels, msg)
	for _, f := range failed {
		logger.Warn("all-clear delivery failed", "incident_id", inc.ID, "channel", f.Channel, "error", f.Err)
	}
}
