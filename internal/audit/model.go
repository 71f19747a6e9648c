// Package audit provides audit logging for room lifecycle and stage
// permission changes, for incident review and abuse response.
package audit

import (
	"time"
)

// Record represents a single audit event in the system.
type Record struct {
	ID        string
	Identity  string // session identity that performed the action
	RoomName  string
	Target    string // identity acted upon, empty for room-level actions
	Action    string
	Outcome   string // "success" or "failure"
	CreatedAt time.Time

	// Optional metadata
	RequestID string
	IPAddress string
}

// Entry represents the input for creating an audit record.
type Entry struct {
	Identity string
	RoomName string
	Target   string
	Action   string
	Outcome  string // "success" or "failure"

	// Optional metadata
	RequestID string
	IPAddress string
}

// Actions recorded by the API handlers.
const (
	ActionCreateStream    = "create_stream"
	ActionCreateIngress   = "create_ingress"
	ActionJoinStream      = "join_stream"
	ActionStopStream      = "stop_stream"
	ActionInviteToStage   = "invite_to_stage"
	ActionRemoveFromStage = "remove_from_stage"
	ActionRaiseHand       = "raise_hand"
)

// Outcomes for audit records.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
