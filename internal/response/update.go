package response

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/pkg/ctxlog"
)

// UpdateInput carries partial updates applied to an active incident.
// Status transitions are forward-only; a RESOLVED status routes through
// the full resolution sequence.
type UpdateInput struct {
	Status            *domain.IncidentStatus  `json:"status,omitempty"`
	IncidentCommander string                  `json:"incident_commander,omitempty"`
	Actions           []domain.ResponseAction `json:"actions,omitempty"`
	Communications    []domain.Communication  `json:"communications,omitempty"`
	Notes             string                  `json:"notes,omitempty"`
	UpdatedBy         string                  `json:"updated_by"`
}

// Update applies the input to the incident in a single registry mutation.
// A requested RESOLVED status runs the full resolution sequence as a side
// effect, so closing an incident through Update and through Resolve end in
// the same place.
func (s *Service) Update(ctx context.Context, incidentID string, input UpdateInput) (*domain.Incident, error) {
	logger := ctxlog.FromContext(ctx)

	if input.UpdatedBy == "" {
		return nil, fmt.Errorf("%w: updated_by is required", ErrValidation)
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *input.Status)
	}

	if input.Status != nil && *input.Status == domain.IncidentStatusResolved {
		return s.resolveViaUpdate(ctx, incidentID, input)
	}

	now := time.Now().UTC()

	inc, err := s.registry.Mutate(incidentID, func(i *domain.Incident) error {
		for _, a := range input.Actions {
			a.ID = uuid.New().String()
			if a.Timestamp.IsZero() {
				a.Timestamp = now
			}
			if a.Status == "" {
				a.Status = domain.ActionStatusCompleted
			}
			i.Actions = append(i.Actions, a)
		}
		for _, c := range input.Communications {
			c.ID = uuid.New().String()
			if c.Timestamp.IsZero() {
				c.Timestamp = now
			}
			i.Communications = append(i.Communications, c)
		}
		if input.IncidentCommander != "" {
			i.ResponseTeam.IncidentCommander = input.IncidentCommander
		}
		if input.Status != nil {
			i.Status = *input.Status
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("incident updated",
		"incident_id", incidentID,
		"version", inc.Version,
		"updated_by", input.UpdatedBy,
	)

	details := map[string]any{
		"version": inc.Version,
		"actions": len(input.Actions),
	}
	if input.Status != nil {
		details["status"] = string(*input.Status)
	}
	if input.Notes != "" {
		details["notes"] = input.Notes
	}
	s.audit(ctx, input.UpdatedBy, "incident.updated", incidentID, details)

	return inc, nil
}

// resolveViaUpdate applies any supplied log entries, then runs the
// resolution sequence with a closing narrative synthesized from the update.
func (s *Service) resolveViaUpdate(ctx context.Context, incidentID string, input UpdateInput) (*domain.Incident, error) {
	if len(input.Actions) > 0 || len(input.Communications) > 0 || input.IncidentCommander != "" {
		stripped := input
		stripped.Status = nil
		if _, err := s.Update(ctx, incidentID, stripped); err != nil {
			return nil, err
		}
	}

	summary := input.Notes
	if summary == "" {
		summary = "resolved via incident update"
	}
	result, err := s.Resolve(ctx, incidentID, ResolveInput{
		Summary:    summary,
		ResolvedBy: input.UpdatedBy,
	})
	if err != nil {
		return nil, err
	}
	return result.Incident, nil
}
