// Package response implements the emergency response orchestrator: incident
// declaration, protocol-driven automated actions, lockdown and evacuation
// coordination, incident updates and resolution.
package response

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/havenpoint/facility-response/internal/archive"
	"github.com/havenpoint/facility-response/internal/audit"
	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/notify"
	"github.com/havenpoint/facility-response/internal/pkg/ctxlog"
	"github.com/havenpoint/facility-response/internal/protocol"
	"github.com/havenpoint/facility-response/internal/registry"
)

// Config holds orchestrator tuning.
type Config struct {
	// DefaultEvacuationZones is used when neither affected areas nor a
	// location yield evacuation zones.
	DefaultEvacuationZones []string
	// ActionTimeout bounds each automated action and collaborator call.
	ActionTimeout time.Duration
	// ProgressInterval is how often evacuation progress is reconciled.
	ProgressInterval time.Duration
	// ProgressDeadline bounds evacuation progress tracking.
	ProgressDeadline time.Duration
	// EmergencyChannels are the channels emergency notifications go out on.
	EmergencyChannels []notify.ChannelType
	// StaffRecipients, ManagementRecipients and EmergencyContacts receive
	// multi-channel emergency notifications.
	StaffRecipients      []string
	ManagementRecipients []string
	EmergencyContacts    []string
	// SelfTestLive exercises live collaborators during self-tests instead
	// of running the synthetic smoke checks.
	SelfTestLive bool
}

func (c Config) withDefaults() Config {
	if len(c.DefaultEvacuationZones) == 0 {
		c.DefaultEvacuationZones = []string{"ground_floor", "first_floor"}
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 10 * time.Second
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 30 * time.Second
	}
	if c.ProgressDeadline <= 0 {
		c.ProgressDeadline = 2 * time.Hour
	}
	if len(c.EmergencyChannels) == 0 {
		c.EmergencyChannels = []notify.ChannelType{notify.ChannelPush, notify.ChannelSMS, notify.ChannelEmail}
	}
	return c
}

// Service is the response orchestrator.
type Service struct {
	config     Config
	registry   *registry.Registry
	actuator   SecurityActuator
	occupancy  Occupancy
	dispatcher *notify.Dispatcher
	renderer   *notify.Renderer
	auditLog   audit.Log
	archive    archive.Repository
	readiness  ReadinessSource
	actions    map[protocol.ActionKind]actionFunc

	trackers *trackerSet
}

// NewService creates the orchestrator and resolves the automated action
// registry.
func NewService(
	cfg Config,
	reg *registry.Registry,
	actuator SecurityActuator,
	occupancy Occupancy,
	dispatcher *notify.Dispatcher,
	renderer *notify.Renderer,
	auditLog audit.Log,
	archiveRepo archive.Repository,
	readinessSrc ReadinessSource,
) *Service {
	s := &Service{
		config:     cfg.withDefaults(),
		registry:   reg,
		actuator:   actuator,
		occupancy:  occupancy,
		dispatcher: dispatcher,
		renderer:   renderer,
		auditLog:   auditLog,
		archive:    archiveRepo,
		readiness:  readinessSrc,
		trackers:   newTrackerSet(),
	}
	s.actions = s.buildActionRegistry()
	return s
}

// DeclareInput holds data for declaring an emergency.
type DeclareInput struct {
	Category        domain.Category
	Priority        domain.Priority
	Title           string
	Description     string
	Location        domain.Location
	ReportedBy      string
	AffectedAreas   []string
	AffectedPersons domain.AffectedPersons
}

// ActionFailure records one automated action that failed or timed out.
type ActionFailure struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}

// DeclareResult is returned from a successful declaration.
type DeclareResult struct {
	IncidentID                string                `json:"incident_id"`
	AutoActionsTriggered      []string              `json:"auto_actions_triggered"`
	FailedActions             []ActionFailure       `json:"failed_actions,omitempty"`
	EstimatedResponseMinutes  float64               `json:"estimated_response_minutes"`
	EmergencyServicesNotified []string              `json:"emergency_services_notified"`
	FacilityStatus            domain.FacilityStatus `json:"facility_status"`
	Lockdown                  *LockdownResult       `json:"lockdown,omitempty"`
	Evacuation                *EvacuationResult     `json:"evacuation,omitempty"`
}

// Declare runs the full declaration sequence. It fails hard only on invalid
// input or a registry insertion failure; every downstream actuation failure
// is recorded and isolated.
func (s *Service) Declare(ctx context.Context, input DeclareInput) (*DeclareResult, error) {
	start := time.Now()
	logger := ctxlog.FromContext(ctx)

	if err := validateDeclare(input); err != nil {
		return nil, err
	}

	inc := &domain.Incident{
		ID:              uuid.New().String(),
		Category:        input.Category,
		Priority:        input.Priority,
		Title:           input.Title,
		Description:     input.Description,
		Location:        input.Location,
		ReportedBy:      input.ReportedBy,
		AffectedAreas:   input.AffectedAreas,
		AffectedPersons: input.AffectedPersons,
	}
	if inc.Title == "" {
		inc.Title = fmt.Sprintf("%s incident at %s", input.Category, input.Location.String())
	}

	if err := s.registry.Create(inc); err != nil {
		return nil, fmt.Errorf("register incident: %w", err)
	}

	logger.Info("incident declared",
		"incident_id", inc.ID,
		"category", inc.Category,
		"priority", inc.Priority,
		"location", inc.Location.String(),
	)
	recordDeclared(string(inc.Category), string(inc.Priority))
	recordActiveCount(s.registry.ActiveCount())

	proto := protocol.Lookup(input.Category)
	triggered, failures := s.runAutomatedActions(ctx, inc, proto.Actions)

	result := &DeclareResult{
		IncidentID:               inc.ID,
		AutoActionsTriggered:     triggered,
		FailedActions:            failures,
		EstimatedResponseMinutes: protocol.EstimatedResponseMinutes(input.Category, input.Priority),
	}

	if protocol.LockdownRequired(input.Category, input.Priority) {
		level := protocol.LockdownLevelFor(input.Category, input.Priority)
		ld, err := s.InitiateLockdown(ctx, inc.ID, level, input.AffectedAreas)
		if err != nil {
			logger.Error("lockdown initiation failed", "incident_id", inc.ID, "error", err)
		} else {
			result.Lockdown = ld
		}
	}

	if protocol.EvacuationRequired(input.Category) {
		ev, err := s.InitiateEvacuation(ctx, inc.ID, input.AffectedAreas)
		if err != nil {
			logger.Error("evacuation initiation failed", "incident_id", inc.ID, "error", err)
		} else {
			result.Evacuation = ev
		}
	}

	result.EmergencyServicesNotified = s.notifyEmergencyServices(ctx, inc, proto.Services)
	result.FacilityStatus = s.registry.FacilityStatus()

	s.sendEmergencyNotification(ctx, inc)

	s.audit(ctx, inc.ReportedBy, "incident.declared", inc.ID, map[string]any{
		"category":          string(inc.Category),
		"priority":          string(inc.Priority),
		"location":          inc.Location.String(),
		"actions_triggered": triggered,
		"actions_failed":    len(failures),
	})

	recordDeclareDuration(time.Since(start))
	return result, nil
}

// notifyEmergencyServices contacts each service in the protocol list.
// Best-effort: a failure to reach one service is logged and skipped.
func (s *Service) notifyEmergencyServices(ctx context.Context, inc *domain.Incident, services []protocol.EmergencyService) []string {
	logger := ctxlog.FromContext(ctx)
	notified := make([]string, 0, len(services))

	for _, svc := range services {
		msg := notify.Message{
			Priority:   inc.Priority,
			Subject:    fmt.Sprintf("Emergency dispatch request: %s", inc.Category),
			Body:       fmt.Sprintf("%s (priority %s) at %s. Incident reference %s.", inc.Title, inc.Priority, inc.Location.String(), inc.ID),
			Recipients: []string{string(svc)},
		}

		callCtx, cancel := context.WithTimeout(ctx, s.config.ActionTimeout)
		_, failed := s.dispatcher.Dispatch(callCtx, []notify.ChannelType{notify.ChannelSMS, notify.ChannelEmail}, msg)
		cancel()

		if len(failed) == len([]notify.ChannelType{notify.ChannelSMS, notify.ChannelEmail}) {
			logger.Error("emergency service unreachable", "service", svc, "incident_id", inc.ID)
			recordActuationFailure("notify_emergency_service")
			continue
		}
		notified = append(notified, string(svc))

		s.appendCommunication(inc.ID, domain.Communication{
			Channel:    "emergency_service",
			Recipients: []string{string(svc)},
			Sender:     "response-orchestrator",
			Message:    msg.Subject,
		})
	}

	if len(notified) > 0 {
		if _, err := s.registry.Mutate(inc.ID, func(i *domain.Incident) error {
			i.ResponseTeam.EmergencyServices = append(i.ResponseTeam.EmergencyServices, notified...)
			return nil
		}); err != nil {
			logger.Error("record engaged services failed", "incident_id", inc.ID, "error", err)
		}
	}
	return notified
}

// sendEmergencyNotification emits the multi-channel emergency notification
// to staff, management and emergency contacts.
func (s *Service) sendEmergencyNotification(ctx context.Context, inc *domain.Incident) {
	logger := ctxlog.FromContext(ctx)

	subject, body, err := s.renderer.Render(notify.KindEmergency, notify.TemplateData{
		IncidentID:  inc.ID,
		Category:    string(inc.Category),
		Priority:    string(inc.Priority),
		Title:       inc.Title,
		Location:    inc.Location.String(),
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Error("render emergency notification", "incident_id", inc.ID, "error", err)
		return
	}

	msg := notify.Message{
		Priority:   inc.Priority,
		Subject:    subject,
		Body:       body,
		Recipients: s.allRecipients(),
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.ActionTimeout)
	delivered, failed := s.dispatcher.Dispatch(callCtx, s.config.EmergencyChannels, msg)
	cancel()

	for range failed {
		recordActuationFailure("emergency_notification")
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

// appendCommunication records a sent communication on the incident's
// append-only log. Logging failures here must not disturb the response
// sequence, so errors are only logged.
func (s *Service) appendCommunication(incidentID string, comm domain.Communication) {
	comm.ID = uuid.New().String()
	comm.Timestamp = time.Now().UTC()

	_, err := s.registry.Mutate(incidentID, func(inc *domain.Incident) error {
		inc.Communications = append(inc.Communications, comm)
		return nil
	})
	if err != nil {
		ctxlog.FromContext(context.Background()).Warn("record communication failed",
			"incident_id", incidentID, "error", err)
	}
}

// appendAction records a response action on the incident's append-only log.
func (s *Service) appendAction(incidentID string, action domain.ResponseAction) {
	action.ID = uuid.New().String()
	action.Timestamp = time.Now().UTC()

	_, err := s.registry.Mutate(incidentID, func(inc *domain.Incident) error {
		inc.Actions = append(inc.Actions, action)
		return nil
	})
	if err != nil {
		ctxlog.FromContext(context.Background()).Warn("record action failed",
			"incident_id", incidentID, "error", err)
	}
}

func (s *Service) allRecipients() []string {
	out := make([]string, 0, len(s.config.StaffRecipients)+len(s.config.ManagementRecipients)+len(s.config.EmergencyContacts))
	out = append(out, s.config.StaffRecipients...)
	out = append(out, s.config.ManagementRecipients...)
	out = append(out, s.config.EmergencyContacts...)
	return out
}

// audit appends an audit entry, best-effort.
func (s *Service) audit(ctx context.Context, actor, action, incidentID string, details map[string]any) {
	entry := audit.NewEntry(actor, action, "incident", incidentID, details)

	callCtx, cancel := context.WithTimeout(ctx, s.config.ActionTimeout)
	defer cancel()

	if err := s.auditLog.Append(callCtx, entry); err != nil {
		ctxlog.FromContext(ctx).Error("audit append failed",
			"action", action, "incident_id", incidentID, "error", err)
		recordActuationFailure("audit_append")
	}
}

func validateDeclare(input DeclareInput) error {
	if !input.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, input.Category)
	}
	if !input.Priority.IsValid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, input.Priority)
	}
	if input.Location.Building == "" {
		return fmt.Errorf("%w: location building is required", ErrValidation)
	}
	if input.ReportedBy == "" {
		return fmt.Errorf("%w: reporter is required", ErrValidation)
	}
	return nil
}
