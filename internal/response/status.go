package response

import (
	"context"
	"time"

	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/pkg/ctxlog"
	"github.com/havenpoint/facility-response/internal/readiness"
)

// ReadinessSource exposes the cached probe results of the background
// readiness monitor.
type ReadinessSource interface {
	Snapshot() readiness.Snapshot
}

// Probe names registered by the application wiring.
const (
	ProbeActuator  = "actuator"
	ProbeOccupancy = "occupancy"
	ProbeAudit     = "audit"
	ProbeArchive   = "archive"
)

// IncidentSummary is the per-incident slice of the status report.
type IncidentSummary struct {
	ID         string                `json:"id"`
	Category   domain.Category       `json:"category"`
	Priority   domain.Priority       `json:"priority"`
	Status     domain.IncidentStatus `json:"status"`
	Title      string                `json:"title"`
	Location   string                `json:"location"`
	Lockdown   bool                  `json:"lockdown"`
	Evacuation bool                  `json:"evacuation"`
	DeclaredAt time.Time             `json:"declared_at"`
}

// Capabilities are the readiness flags in the status report.
type Capabilities struct {
	Lockdown      bool `json:"lockdown"`
	Evacuation    bool `json:"evacuation"`
	Notification  bool `json:"notification"`
	OccupancyData bool `json:"occupancy_data"`
}

// StatusReport is the public facility status.
type StatusReport struct {
	FacilityStatus  domain.FacilityStatus     `json:"facility_status"`
	ActiveIncidents []IncidentSummary         `json:"active_incidents"`
	Capabilities    Capabilities              `json:"capabilities"`
	Occupancy       *domain.OccupancySnapshot `json:"occupancy,omitempty"`
	PersonsOnSite   int                       `json:"persons_on_site"`
	CheckedAt       time.Time                 `json:"checked_at"`
	GeneratedAt     time.Time                 `json:"generated_at"`
}

// Status assembles the facility status report. Occupancy failures degrade
// the report rather than failing it.
func (s *Service) Status(ctx context.Context) (*StatusReport, error) {
	logger := ctxlog.FromContext(ctx)

	incidents := s.registry.ListActive()
	summaries := make([]IncidentSummary, 0, len(incidents))
	for _, inc := range incidents {
		summaries = append(summaries, IncidentSummary{
			ID:         inc.ID,
			Category:   inc.Category,
			Priority:   inc.Priority,
			Status:     inc.Status,
			Title:      inc.Title,
			Location:   inc.Location.String(),
			Lockdown:   inc.Lockdown.Active(),
			Evacuation: inc.Evacuation != nil && inc.Evacuation.Status == domain.EvacuationInProgress,
			DeclaredAt: inc.CreatedAt,
		})
	}

	report := &StatusReport{
		FacilityStatus:  s.registry.FacilityStatus(),
		ActiveIncidents: summaries,
		GeneratedAt:     time.Now().UTC(),
	}

	if s.readiness != nil {
		snap := s.readiness.Snapshot()
		report.Capabilities = Capabilities{
			Lockdown:      snap.Healthy(ProbeActuator),
			Evacuation:    snap.Healthy(ProbeActuator) && snap.Healthy(ProbeOccupancy),
			Notification:  len(s.dispatcher.Channels()) > 0,
			OccupancyData: snap.Healthy(ProbeOccupancy),
		}
		report.CheckedAt = snap.CheckedAt
	}

	snap, err := s.occupancy.CurrentPersonsOnSite(ctx)
	if err != nil {
		logger.Warn("occupancy query failed in status report", "error", err)
		recordActuationFailure("occupancy_site_count")
	} else {
		report.Occupancy = &snap
		report.PersonsOnSite = snap.Total()
	}

	return report, nil
}

// GetIncident returns a snapshot of one active incident.
func (s *Service) GetIncident(_ context.Context, incidentID string) (*domain.Incident, error) {
	return s.registry.Get(incidentID)
}

// ListIncidents returns snapshots of all active incidents, newest first.
func (s *Service) ListIncidents(_ context.Context) []*domain.Incident {
	return s.registry.ListActive()
}
