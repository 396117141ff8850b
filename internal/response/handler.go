package response

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/havenpoint/facility-response/internal/archive"
	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/pkg/httputil"
	"github.com/havenpoint/facility-response/internal/registry"
)

// Handler handles HTTP requests for the response orchestrator.
type Handler struct {
	service     *Service
	archiveRepo archive.Repository
	validator   *validator.Validate
}

// NewHandler creates a new response handler.
func NewHandler(service *Service, archiveRepo archive.Repository) *Handler {
	return &Handler{
		service:     service,
		archiveRepo: archiveRepo,
		validator:   validator.New(),
	}
}

// RegisterRoutes registers routes available to any authenticated caller.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.FacilityStatus)
	r.Get("/incidents", h.ListIncidents)
	r.Get("/incidents/{id}", h.GetIncident)
	r.Get("/archive/{id}", h.GetArchivedIncident)
}

// RegisterDispatcherRoutes registers routes that require the dispatcher role.
func (h *Handler) RegisterDispatcherRoutes(r chi.Router) {
	r.Post("/incidents", h.DeclareIncident)
	r.Patch("/incidents/{id}", h.UpdateIncident)
	r.Post("/incidents/{id}/evacuation", h.InitiateEvacuation)
	r.Post("/selftest", h.SelfTest)
}

// RegisterCommanderRoutes registers routes that require the commander role.
func (h *Handler) RegisterCommanderRoutes(r chi.Router) {
	r.Post("/incidents/{id}/lockdown", h.InitiateLockdown)
	r.Post("/incidents/{id}/resolve", h.ResolveIncident)
	r.Post("/incidents/{id}/cancel", h.CancelIncident)
}

// DeclareIncidentRequest represents the request body for declaring an incident.
type DeclareIncidentRequest struct {
	Category      string   `json:"category" validate:"required"`
	Priority      string   `json:"priority" validate:"required"`
	Title         string   `json:"title" validate:"required,min=1,max=255"`
	Description   string   `json:"description"`
	Building      string   `json:"building" validate:"required"`
	Floor         string   `json:"floor"`
	Room          string   `json:"room"`
	AffectedAreas []string `json:"affected_areas"`
	Residents     int      `json:"residents" validate:"min=0"`
	Visitors      int      `json:"visitors" validate:"min=0"`
	Staff         int      `json:"staff" validate:"min=0"`
}

// ToInput converts the request to a declaration input.
func (r *DeclareIncidentRequest) ToInput(reportedBy string) DeclareInput {
	return DeclareInput{
		Category:    domain.Category(r.Category),
		Priority:    domain.Priority(r.Priority),
		Title:       r.Title,
		Description: r.Description,
		Location: domain.Location{
			Building: r.Building,
			Floor:    r.Floor,
			Room:     r.Room,
		},
		ReportedBy:    reportedBy,
		AffectedAreas: r.AffectedAreas,
		AffectedPersons: domain.AffectedPersons{
			Residents: r.Residents,
			Visitors:  r.Visitors,
			Staff:     r.Staff,
		},
	}
}

// UpdateIncidentRequest represents the request body for updating an incident.
type UpdateIncidentRequest struct {
	Status         *string                 `json:"status"`
	Actions        []domain.ResponseAction `json:"actions"`
	Communications []domain.Communication  `json:"communications"`
	Notes          string                  `json:"notes"`
}

// LockdownRequest represents the request body for initiating a lockdown.
type LockdownRequest struct {
	Level string   `json:"level" validate:"required,oneof=partial facility external complete"`
	Areas []string `json:"areas"`
}

// EvacuationRequest represents the request body for initiating an evacuation.
type EvacuationRequest struct {
	Areas []string `json:"areas"`
}

// ResolveIncidentRequest represents the request body for resolving an incident.
type ResolveIncidentRequest struct {
	Summary               string   `json:"summary" validate:"required,min=1"`
	LessonsLearned        []string `json:"lessons_learned"`
	FollowUpActions       []string `json:"follow_up_actions"`
	RequiresInvestigation bool     `json:"requires_investigation"`
}

// CancelIncidentRequest represents the request body for cancelling an incident.
type CancelIncidentRequest struct {
	Reason string `json:"reason" validate:"required,min=1"`
}

// SelfTestRequest represents the request body for running a self-test.
type SelfTestRequest struct {
	Kind string `json:"kind" validate:"omitempty,oneof=full lockdown evacuation communication"`
}

// DeclareIncident handles POST /incidents.
func (h *Handler) DeclareIncident(w http.ResponseWriter, r *http.Request) {
	var req DeclareIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	result, err := h.service.Declare(r.Context(), req.ToInput(httputil.GetUserID(r.Context())))
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, result)
}

// GetIncident handles GET /incidents/{id}.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := h.service.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, inc)
}

// ListIncidents handles GET /incidents.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, h.service.ListIncidents(r.Context()))
}

// GetArchivedIncident handles GET /archive/{id}.
func (h *Handler) GetArchivedIncident(w http.ResponseWriter, r *http.Request) {
	if h.archiveRepo == nil {
		httputil.Error(w, http.StatusNotFound, "archive not configured")
		return
	}

	inc, err := h.archiveRepo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, inc)
}

// UpdateIncident handles PATCH /incidents/{id}.
func (h *Handler) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	var req UpdateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	input := UpdateInput{
		Actions:        req.Actions,
		Communications: req.Communications,
		Notes:          req.Notes,
		UpdatedBy:      httputil.GetUserID(r.Context()),
	}
	if req.Status != nil {
		status := domain.IncidentStatus(*req.Status)
		input.Status = &status
	}

	inc, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, inc)
}

// InitiateLockdown handles POST /incidents/{id}/lockdown.
func (h *Handler) InitiateLockdown(w http.ResponseWriter, r *http.Request) {
	var req LockdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	result, err := h.service.InitiateLockdown(r.Context(), chi.URLParam(r, "id"), domain.LockdownLevel(req.Level), req.Areas)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, result)
}

// InitiateEvacuation handles POST /incidents/{id}/evacuation.
func (h *Handler) InitiateEvacuation(w http.ResponseWriter, r *http.Request) {
	var req EvacuationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := h.service.InitiateEvacuation(r.Context(), chi.URLParam(r, "id"), req.Areas)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, result)
}

// ResolveIncident handles POST /incidents/{id}/resolve.
func (h *Handler) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	var req ResolveIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	result, err := h.service.Resolve(r.Context(), chi.URLParam(r, "id"), ResolveInput{
		Summary:               req.Summary,
		LessonsLearned:        req.LessonsLearned,
		FollowUpActions:       req.FollowUpActions,
		RequiresInvestigation: req.RequiresInvestigation,
		ResolvedBy:            httputil.GetUserID(r.Context()),
	})
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, result)
}

// CancelIncident handles POST /incidents/{id}/cancel.
func (h *Handler) CancelIncident(w http.ResponseWriter, r *http.Request) {
	var req CancelIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	inc, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"), httputil.GetUserID(r.Context()), req.Reason)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, inc)
}

// FacilityStatus handles GET /status.
func (h *Handler) FacilityStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Status(r.Context())
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, report)
}

// SelfTest handles POST /selftest.
func (h *Handler) SelfTest(w http.ResponseWriter, r *http.Request) {
	var req SelfTestRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httputil.ValidationError(w, err)
			return
		}
	}

	result, err := h.service.SelfTest(r.Context(), SelfTestKind(req.Kind))
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	httputil.Success(w, http.StatusOK, result)
}

// serviceErrorMappings translate orchestrator and registry errors to HTTP
// statuses. Anything unmapped is a 500.
var serviceErrorMappings = []httputil.ErrorMapping{
	{Error: registry.ErrNotFound, Status: http.StatusNotFound},
	{Error: archive.ErrNotFound, Status: http.StatusNotFound},
	{Error: registry.ErrDuplicateID, Status: http.StatusConflict},
	{Error: registry.ErrInvalidTransition, Status: http.StatusConflict},
	{Error: registry.ErrPreconditionFailed, Status: http.StatusConflict},
	{Error: ErrLockdownActive, Status: http.StatusConflict},
	{Error: ErrEvacuationActive, Status: http.StatusConflict},
	{Error: ErrValidation, Status: http.StatusBadRequest},
}

func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	httputil.HandleError(ctx, w, err, serviceErrorMappings)
}
