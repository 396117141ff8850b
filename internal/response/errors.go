package response

import "errors"

// Orchestrator errors surfaced to callers. Actuation failures are never
// among them: partial actuator failure degrades a response, it does not
// abort one.
var (
	ErrValidation       = errors.New("invalid declaration input")
	ErrLockdownActive   = errors.New("lockdown already active for incident")
	ErrEvacuationActive = errors.New("evacuation already active for incident")
)
