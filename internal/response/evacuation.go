package response

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/notify"
	"github.com/havenpoint/facility-response/internal/pkg/ctxlog"
	"github.com/havenpoint/facility-response/internal/protocol"
)

// EvacuationResult is returned from a successful evacuation initiation.
type EvacuationResult struct {
	EvacuationID             string   `json:"evacuation_id"`
	Zones                    []string `json:"zones"`
	Routes                   []string `json:"routes"`
	AssemblyPoints           []string `json:"assembly_points"`
	EstimatedDurationMinutes float64  `json:"estimated_duration_minutes"`
	PersonsToEvacuate        int      `json:"persons_to_evacuate"`
}

// InitiateEvacuation computes the evacuation plan, records it on the
// incident and drives the alarm/exit/lighting sequence. Actuation failures
// are isolated; progress tracking continues in the background.
func (s *Service) InitiateEvacuation(ctx context.Context, incidentID string, affectedAreas []string) (*EvacuationResult, error) {
	logger := ctxlog.FromContext(ctx)

	current, err := s.registry.Get(incidentID)
	if err != nil {
		return nil, err
	}

	plan := protocol.PlanEvacuation(affectedAreas, current.Location, s.config.DefaultEvacuationZones)

	persons, err := s.occupancy.CountPersonsInAreas(ctx, plan.Zones)
	if err != nil {
		logger.Warn("occupancy count failed, evacuating with unknown headcount",
			"incident_id", incidentID, "error", err)
		recordActuationFailure("occupancy_count")
		persons = 0
	}

	evacuationID := uuid.New().String()
	now := time.Now().UTC()

	inc, err := s.registry.Mutate(incidentID, func(i *domain.Incident) error {
		if i.Evacuation != nil && i.Evacuation.Status == domain.EvacuationInProgress {
			return ErrEvacuationActive
		}
		i.Evacuation = &domain.EvacuationData{
			ID:             evacuationID,
			Zones:          plan.Zones,
			Routes:         plan.Routes,
			AssemblyPoints: plan.AssemblyPoints,
			Status:         domain.EvacuationInProgress,
			PersonsTotal:   persons,
			StartedAt:      now,
		}
		if i.Status == domain.IncidentStatusActive {
			i.Status = domain.IncidentStatusResponding
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("evacuation initiated",
		"incident_id", incidentID,
		"evacuation_id", evacuationID,
		"zones", plan.Zones,
		"persons", persons,
	)
	recordEvacuation()

	// Alarm, exits and lighting, each isolated.
	if err := s.withTimeout(ctx, func(c context.Context) error {
		return s.actuator.ActivateAlarms(c, plan.Zones)
	}); err != nil {
		logger.Error("alarm activation failed", "incident_id", incidentID, "error", err)
		recordActuationFailure("activate_alarms")
	}
	if err := s.withTimeout(ctx, func(c context.Context) error {
		return s.actuator.UnlockExits(c, plan.Routes)
	}); err != nil {
		logger.Error("exit unlock failed", "incident_id", incidentID, "error", err)
		recordActuationFailure("unlock_exits")
	}
	if err := s.withTimeout(ctx, func(c context.Context) error {
		return s.actuator.ActivateLighting(c, plan.Zones)
	}); err != nil {
		logger.Error("emergency lighting failed", "incident_id", incidentID, "error", err)
		recordActuationFailure("activate_lighting")
	}

	s.sendEvacuationNotification(ctx, inc, plan)

	// Warden dispatch goes out on the push channel to staff.
	s.appendAction(incidentID, domain.ResponseAction{
		Action: "dispatch_wardens",
		Actor:  "response-orchestrator",
		Status: domain.ActionStatusInProgress,
		Notes:  "wardens dispatched to " + plan.Zones[0],
	})

	s.trackers.start(incidentID, func(trackCtx context.Context) {
		s.trackEvacuationProgress(trackCtx, incidentID)
	})

	s.audit(ctx, "response-orchestrator", "evacuation.initiated", incidentID, map[string]any{
		"evacuation_id": evacuationID,
		"zones":         plan.Zones,
		"persons":       persons,
	})

	return &EvacuationResult{
		EvacuationID:             evacuationID,
		Zones:                    plan.Zones,
		Routes:                   plan.Routes,
		AssemblyPoints:           plan.AssemblyPoints,
		EstimatedDurationMinutes: protocol.EstimatedEvacuationMinutes(persons, len(plan.Zones)),
		PersonsToEvacuate:        persons,
	}, nil
}

func (s *Service) sendEvacuationNotification(ctx context.Context, inc *domain.Incident, plan protocol.EvacuationPlan) {
	logger := ctxlog.FromContext(ctx)

	subject, body, err := s.renderer.Render(notify.KindEvacuation, notify.TemplateData{
		IncidentID:     inc.ID,
		Category:       string(inc.Category),
		Priority:       string(inc.Priority),
		Location:       inc.Location.String(),
		Zones:          plan.Zones,
		Routes:         plan.Routes,
		AssemblyPoints: plan.AssemblyPoints,
		GeneratedAt:    time.Now().UTC(),
	})
	if err != nil {
		logger.Error("render evacuation notification", "incident_id", inc.ID, "error", err)
		return
	}

	msg := notify.Message{
		Priority:   inc.Priority,
		Subject:    subject,
		Body:       body,
		Recipients: s.allRecipients(),
	}

	channels := append([]notify.ChannelType{notify.ChannelAlarm, notify.ChannelPublicAddress}, s.config.EmergencyChannels...)

	callCtx, cancel := context.WithTimeout(ctx, s.config.ActionTimeout)
	delivered, failed := s.dispatcher.Dispatch(callCtx, channels, msg)
	cancel()

	for range failed {
		recordActuationFailure("evacuation_notification")
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

// trackEvacuationProgress reconciles headcount until the zones are clear or
// the deadline passes, then marks the evacuation completed. The evacuation
// status is monotonic, so a resolution racing this loop is safe: whichever
// writes completed first wins and the other write is a no-op.
func (s *Service) trackEvacuationProgress(ctx context.Context, incidentID string) {
	logger := ctxlog.FromContext(ctx).With("incident_id", incidentID)

	deadline := time.NewTimer(s.config.ProgressDeadline)
	defer deadline.Stop()
	ticker := time.NewTicker(s.config.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			logger.Warn("evacuation progress tracking hit deadline")
			s.completeEvacuation(ctx, incidentID)
			return
		case <-ticker.C:
			inc, err := s.registry.Get(incidentID)
			if err != nil {
				// Incident resolved and retired; tracking is done.
				return
			}
			if inc.Evacuation == nil || inc.Evacuation.Status != domain.EvacuationInProgress {
				return
			}

			remaining, err := s.occupancy.CountPersonsInAreas(ctx, inc.Evacuation.Zones)
			if err != nil {
				logger.Warn("headcount reconciliation failed", "error", err)
				continue
			}

			evacuated := inc.Evacuation.PersonsTotal - remaining
			if evacuated < 0 {
				evacuated = 0
			}

			_, err = s.registry.Mutate(incidentID, func(i *domain.Incident) error {
				if i.Evacuation != nil {
					i.Evacuation.Evacuated = evacuated
				}
				return nil
			})
			if err != nil {
				return
			}

			logger.Info("evacuation progress", "evacuated", evacuated, "remaining", remaining)

			if remaining == 0 {
				s.completeEvacuation(ctx, incidentID)
				return
			}
		}
	}
}

// completeEvacuation marks the evacuation completed if it is still in
// progress.
func (s *Service) completeEvacuation(ctx context.Context, incidentID string) {
	now := time.Now().UTC()
	_, err := s.registry.Mutate(incidentID, func(i *domain.Incident) error {
		if i.Evacuation == nil || !i.Evacuation.Status.CanTransitionTo(domain.EvacuationCompleted) {
			return nil
		}
		i.Evacuation.Status = domain.EvacuationCompleted
		i.Evacuation.CompletedAt = &now
		return nil
	})
	if err != nil {
		return
	}
	s.audit(ctx, "response-orchestrator", "evacuation.completed", incidentID, nil)
}

// trackerSet owns the background progress goroutines so resolution and
// shutdown can stop them.
type trackerSet struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func newTrackerSet() *trackerSet {
	return &trackerSet{cancels: make(map[string]context.CancelFunc)}
}

func (t *trackerSet) start(incidentID string, fn func(context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	if prev, ok := t.cancels[incidentID]; ok {
		prev()
	}
	t.cancels[incidentID] = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn(ctx)
	}()
}

func (t *trackerSet) stop(incidentID string) {
	t.mu.Lock()
	if cancel, ok := t.cancels[incidentID]; ok {
		cancel()
		delete(t.cancels, incidentID)
	}
	t.mu.Unlock()
}

// StopTrackers cancels all progress tracking and waits for the goroutines
// to exit. Called on shutdown.
func (s *Service) StopTrackers() {
	s.trackers.mu.Lock()
	for id, cancel := range s.trackers.cancels {
		cancel()
		delete(s.trackers.cancels, id)
	}
	s.trackers.mu.Unlock()
	s.trackers.wg.Wait()
}
