package domain

import "time"

// Category classifies the kind of emergency being declared.
type Category string

// Emergency categories.
const (
	CategoryFire            Category = "fire"
	CategoryMedical         Category = "medical"
	CategorySecurityBreach  Category = "security_breach"
	CategoryLockdown        Category = "lockdown"
	CategoryEvacuation      Category = "evacuation"
	CategorySevereWeather   Category = "severe_weather"
	CategoryChemicalSpill   Category = "chemical_spill"
	CategoryBombThreat      Category = "bomb_threat"
	CategoryViolentIncident Category = "violent_incident"
	CategoryMissingPerson   Category = "missing_person"
	CategoryPowerOutage     Category = "power_outage"
	CategorySystemFailure   Category = "system_failure"
)

// IsValid checks if the category is a known emergency category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryFire, CategoryMedical, CategorySecurityBreach, CategoryLockdown,
		CategoryEvacuation, CategorySevereWeather, CategoryChemicalSpill,
		CategoryBombThreat, CategoryViolentIncident, CategoryMissingPerson,
		CategoryPowerOutage, CategorySystemFailure:
		return true
	}
	return false
}

// Priority represents how urgent an incident is.
type Priority string

// Incident priorities.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// IsValid checks if the priority is valid.
func (p Priority) IsValid() bool {
	return p == PriorityCritical || p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ResponseTimeMultiplier scales a protocol's baseline response estimate.
func (p Priority) ResponseTimeMultiplier() float64 {
	switch p {
	case PriorityCritical:
		return 0.5
	case PriorityHigh:
		return 0.7
	case PriorityLow:
		return 1.5
	default:
		return 1.0
	}
}

// rank orders priorities for facility status aggregation. Higher is worse.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// MoreSevereThan reports whether p outranks other.
func (p Priority) MoreSevereThan(other Priority) bool {
	return p.rank() > other.rank()
}

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

// Incident statuses. Transitions are forward-only; resolved and cancelled
// are terminal.
const (
	IncidentStatusActive     IncidentStatus = "active"
	IncidentStatusResponding IncidentStatus = "responding"
	IncidentStatusContained  IncidentStatus = "contained"
	IncidentStatusResolved   IncidentStatus = "resolved"
	IncidentStatusCancelled  IncidentStatus = "cancelled"
)

// IsValid checks if the status is a known incident status.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusActive, IncidentStatusResponding, IncidentStatusContained,
		IncidentStatusResolved, IncidentStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status permits no further mutation.
func (s IncidentStatus) IsTerminal() bool {
	return s == IncidentStatusResolved || s == IncidentStatusCancelled
}

// order maps each non-terminal status onto the forward progression.
func (s IncidentStatus) order() int {
	switch s {
	case IncidentStatusActive:
		return 1
	case IncidentStatusResponding:
		return 2
	case IncidentStatusContained:
		return 3
	case IncidentStatusResolved:
		return 4
	}
	return 0
}

// CanTransitionTo reports whether moving from s to next is legal.
// Forward moves along active → responding → contained → resolved are allowed
// (skipping intermediate states is fine); cancelled is reachable from any
// non-terminal state; terminal states permit nothing.
func (s IncidentStatus) CanTransitionTo(next IncidentStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == IncidentStatusCancelled {
		return true
	}
	return next.order() > s.order()
}

// Location identifies where in the facility an incident occurred.
type Location struct {
	Building    string   `json:"building"`
	Floor       string   `json:"floor,omitempty"`
	Room        string   `json:"room,omitempty"`
	Coordinates *LatLong `json:"coordinates,omitempty"`
}

// LatLong holds optional geographic coordinates.
type LatLong struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String renders the location as a slash-separated path, e.g.
// "Building A/Floor 2/Room 5". Empty segments are omitted.
func (l Location) String() string {
	out := l.Building
	if l.Floor != "" {
		out += "/" + l.Floor
	}
	if l.Room != "" {
		out += "/" + l.Room
	}
	return out
}

// AffectedPersons tracks who is impacted by an incident.
type AffectedPersons struct {
	ResidentIDs []string `json:"resident_ids,omitempty"`
	VisitorIDs  []string `json:"visitor_ids,omitempty"`
	StaffIDs    []string `json:"staff_ids,omitempty"`
	Residents   int      `json:"residents"`
	Visitors    int      `json:"visitors"`
	Staff       int      `json:"staff"`
}

// ResponseTeam records who is responding to an incident.
type ResponseTeam struct {
	IncidentCommander  string   `json:"incident_commander,omitempty"`
	EmergencyServices  []string `json:"emergency_services,omitempty"`
	InternalResponders []string `json:"internal_responders,omitempty"`
}

// ActionStatus is the lifecycle status of a single response action.
type ActionStatus string

// Action statuses.
const (
	ActionStatusPending    ActionStatus = "pending"
	ActionStatusInProgress ActionStatus = "in_progress"
	ActionStatusCompleted  ActionStatus = "completed"
	ActionStatusFailed     ActionStatus = "failed"
)

// ResponseAction is one entry in the append-only action log of an incident.
type ResponseAction struct {
	ID        string       `json:"id"`
	Action    string       `json:"action"`
	Actor     string       `json:"actor"`
	Status    ActionStatus `json:"status"`
	Notes     string       `json:"notes,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Communication is one entry in the append-only communications log.
type Communication struct {
	ID           string    `json:"id"`
	Channel      string    `json:"channel"`
	Recipients   []string  `json:"recipients"`
	Sender       string    `json:"sender"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
	Timestamp    time.Time `json:"timestamp"`
}

// Resolution carries the closing narrative of an incident.
type Resolution struct {
	Summary               string     `json:"summary"`
	LessonsLearned        []string   `json:"lessons_learned,omitempty"`
	FollowUpActions       []string   `json:"follow_up_actions,omitempty"`
	RequiresInvestigation bool       `json:"requires_investigation"`
	ResolvedBy            string     `json:"resolved_by,omitempty"`
	ResolvedAt            *time.Time `json:"resolved_at,omitempty"`
}

// Incident is a declared emergency tracked from declaration to resolution.
type Incident struct {
	ID              string           `json:"id"`
	Category        Category         `json:"category"`
	Priority        Priority         `json:"priority"`
	Status          IncidentStatus   `json:"status"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	Location        Location         `json:"location"`
	ReportedBy      string           `json:"reported_by"`
	AffectedAreas   []string         `json:"affected_areas,omitempty"`
	AffectedPersons AffectedPersons  `json:"affected_persons"`
	ResponseTeam    ResponseTeam     `json:"response_team"`
	Actions         []ResponseAction `json:"actions"`
	Communications  []Communication  `json:"communications"`
	Lockdown        *LockdownData    `json:"lockdown,omitempty"`
	Evacuation      *EvacuationData  `json:"evacuation,omitempty"`
	Resolution      *Resolution      `json:"resolution,omitempty"`
	Version         int64            `json:"version"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Clone returns a deep copy of the incident so callers outside the registry
// can't alias registry-owned state.
func (i *Incident) Clone() *Incident {
	out := *i
	out.AffectedAreas = append([]string(nil), i.AffectedAreas...)
	out.AffectedPersons.ResidentIDs = append([]string(nil), i.AffectedPersons.ResidentIDs...)
	out.AffectedPersons.VisitorIDs = append([]string(nil), i.AffectedPersons.VisitorIDs...)
	out.AffectedPersons.StaffIDs = append([]string(nil), i.AffectedPersons.StaffIDs...)
	out.ResponseTeam.EmergencyServices = append([]string(nil), i.ResponseTeam.EmergencyServices...)
	out.ResponseTeam.InternalResponders = append([]string(nil), i.ResponseTeam.InternalResponders...)
	out.Actions = append([]ResponseAction(nil), i.Actions...)
	out.Communications = append([]Communication(nil), i.Communications...)
	if i.Lockdown != nil {
		ld := *i.Lockdown
		ld.LockedAreas = append([]string(nil), i.Lockdown.LockedAreas...)
		ld.AccessExceptions = append([]string(nil), i.Lockdown.AccessExceptions...)
		out.Lockdown = &ld
	}
	if i.Evacuation != nil {
		ev := *i.Evacuation
		ev.Zones = append([]string(nil), i.Evacuation.Zones...)
		ev.Routes = append([]string(nil), i.Evacuation.Routes...)
		ev.AssemblyPoints = append([]string(nil), i.Evacuation.AssemblyPoints...)
		ev.Unaccounted = append([]string(nil), i.Evacuation.Unaccounted...)
		out.Evacuation = &ev
	}
	if i.Resolution != nil {
		res := *i.Resolution
		res.LessonsLearned = append([]string(nil), i.Resolution.LessonsLearned...)
		res.FollowUpActions = append([]string(nil), i.Resolution.FollowUpActions...)
		out.Resolution = &res
	}
	return &out
}
