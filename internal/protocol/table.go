// Package protocol holds the static emergency response configuration: the
// per-category protocol table and the pure lockdown and evacuation policies.
// Everything in this package is immutable after startup and safe for
// concurrent read access.
package protocol

import "github.com/havenpoint/facility-response/internal/domain"

// ActionKind identifies an automated response action. Kinds are resolved to
// handlers at startup by the orchestrator's action registry, never by
// runtime string matching.
type ActionKind string

// Automated action kinds.
const (
	ActionNotifySecurityTeam    ActionKind = "notify_security_team"
	ActionActivateFireAlarm     ActionKind = "activate_fire_alarm"
	ActionUnlockEmergencyExits  ActionKind = "unlock_emergency_exits"
	ActionDispatchMedicalTeam   ActionKind = "dispatch_medical_team"
	ActionActivateCCTVRecording ActionKind = "activate_cctv_recording"
	ActionSecureEntrances       ActionKind = "secure_entrances"
	ActionShutdownHVAC          ActionKind = "shutdown_hvac"
	ActionBroadcastWarning      ActionKind = "broadcast_warning"
	ActionPageManagement        ActionKind = "page_management"
	ActionInitiateHeadcount     ActionKind = "initiate_headcount"
	ActionActivateBackupPower   ActionKind = "activate_backup_power"
	ActionReviewAccessLogs      ActionKind = "review_access_logs"
)

// EmergencyService identifies an external emergency service to contact.
type EmergencyService string

// External emergency services.
const (
	ServiceFire      EmergencyService = "fire_service"
	ServiceAmbulance EmergencyService = "ambulance"
	ServicePolice    EmergencyService = "police"
	ServiceHazmat    EmergencyService = "hazmat"
	ServiceUtility   EmergencyService = "utility_provider"
)

// Protocol is the response configuration for one emergency category.
type Protocol struct {
	Actions              []ActionKind
	EvacuationRequired   bool
	LockdownRequired     bool
	Services             []EmergencyService
	BaselineResponseMins int
}

// table maps every emergency category to its response protocol.
var table = map[domain.Category]Protocol{
	domain.CategoryFire: {
		Actions:              []ActionKind{ActionActivateFireAlarm, ActionUnlockEmergencyExits, ActionShutdownHVAC, ActionNotifySecurityTeam},
		EvacuationRequired:   true,
		Services:             []EmergencyService{ServiceFire, ServiceAmbulance},
		BaselineResponseMins: 8,
	},
	domain.CategoryMedical: {
		Actions:              []ActionKind{ActionDispatchMedicalTeam, ActionNotifySecurityTeam},
		Services:             []EmergencyService{ServiceAmbulance},
		BaselineResponseMins: 10,
	},
	domain.CategorySecurityBreach: {
		Actions:              []ActionKind{ActionSecureEntrances, ActionActivateCCTVRecording, ActionNotifySecurityTeam, ActionReviewAccessLogs},
		LockdownRequired:     true,
		Services:             []EmergencyService{ServicePolice},
		BaselineResponseMins: 12,
	},
	domain.CategoryLockdown: {
		Actions:              []ActionKind{ActionSecureEntrances, ActionActivateCCTVRecording, ActionBroadcastWarning},
		LockdownRequired:     true,
		Services:             []EmergencyService{ServicePolice},
		BaselineResponseMins: 12,
	},
	domain.CategoryEvacuation: {
		Actions:              []ActionKind{ActionUnlockEmergencyExits, ActionBroadcastWarning, ActionInitiateHeadcount},
		EvacuationRequired:   false, // evacuation is initiated explicitly for this category
		Services:             []EmergencyService{ServiceFire},
		BaselineResponseMins: 10,
	},
	domain.CategorySevereWeather: {
		Actions:              []ActionKind{ActionBroadcastWarning, ActionSecureEntrances, ActionPageManagement},
		EvacuationRequired:   true,
		Services:             []EmergencyService{ServiceUtility},
		BaselineResponseMins: 20,
	},
	domain.CategoryChemicalSpill: {
		Actions:              []ActionKind{ActionShutdownHVAC, ActionBroadcastWarning, ActionNotifySecurityTeam},
		EvacuationRequired:   true,
		Services:             []EmergencyService{ServiceHazmat, ServiceFire, ServiceAmbulance},
		BaselineResponseMins: 15,
	},
	domain.CategoryBombThreat: {
		Actions:              []ActionKind{ActionBroadcastWarning, ActionActivateCCTVRecording, ActionNotifySecurityTeam},
		EvacuationRequired:   true,
		LockdownRequired:     true,
		Services:             []EmergencyService{ServicePolice},
		BaselineResponseMins: 10,
	},
	domain.CategoryViolentIncident: {
		Actions:              []ActionKind{ActionSecureEntrances, ActionActivateCCTVRecording, ActionNotifySecurityTeam, ActionPageManagement},
		LockdownRequired:     true,
		Services:             []EmergencyService{ServicePolice, ServiceAmbulance},
		BaselineResponseMins: 8,
	},
	domain.CategoryMissingPerson: {
		Actions:              []ActionKind{ActionReviewAccessLogs, ActionActivateCCTVRecording, ActionInitiateHeadcount, ActionNotifySecurityTeam},
		Services:             []EmergencyService{ServicePolice},
		BaselineResponseMins: 30,
	},
	domain.CategoryPowerOutage: {
		Actions:              []ActionKind{ActionActivateBackupPower, ActionNotifySecurityTeam, ActionPageManagement},
		Services:             []EmergencyService{ServiceUtility},
		BaselineResponseMins: 25,
	},
	domain.CategorySystemFailure: {
		Actions:              []ActionKind{ActionNotifySecurityTeam, ActionPageManagement},
		Services:             nil,
		BaselineResponseMins: 30,
	},
}

// Lookup returns the protocol for a category. Unknown categories get an
// empty protocol so a declaration never fails on protocol lookup.
func Lookup(category domain.Category) Protocol {
	return table[category]
}

// LockdownRequired reports whether a declared incident mandates a lockdown:
// any critical incident does, as do the inherently hostile categories.
func LockdownRequired(category domain.Category, priority domain.Priority) bool {
	if priority == domain.PriorityCritical {
		return true
	}
	return Lookup(category).LockdownRequired
}

// EvacuationRequired reports whether a declared incident mandates an
// evacuation.
func EvacuationRequired(category domain.Category) bool {
	return Lookup(category).EvacuationRequired
}

// EstimatedResponseMinutes scales the category baseline by the priority
// multiplier.
func EstimatedResponseMinutes(category domain.Category, priority domain.Priority) float64 {
	return float64(Lookup(category).BaselineResponseMins) * priority.ResponseTimeMultiplier()
}
