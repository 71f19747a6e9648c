// Package stage implements the permission model deciding which participants
// may publish media into a room. A participant reaches the stage only when
// they have raised their hand AND the room creator has invited them; removal
// clears both flags and revokes publishing.
package stage

import "github.com/onnwee/openstage/internal/participant"

// Transition identifies a stage state change requested against a participant.
type Transition string

const (
	TransitionRaiseHand Transition = "raise_hand"
	TransitionInvite    Transition = "invite_to_stage"
	TransitionRemove    Transition = "remove_from_stage"
)

// Decision is the outcome of applying a transition: the metadata to store and
// the publish permission to set alongside it. Both must be written back to
// the room service in a single update so the permission always reflects the
// metadata state it was derived from.
type Decision struct {
	Metadata   participant.Metadata
	CanPublish bool
}

// Apply computes the decision for a transition against the metadata read at
// the start of the request.
func Apply(t Transition, m participant.Metadata) Decision {
	switch t {
	case TransitionRaiseHand:
		m.HandRaised = true
	case TransitionInvite:
		m.InvitedToStage = true
	case TransitionRemove:
		m.HandRaised = false
		m.InvitedToStage = false
	}

	// Publishing requires the conjunction of both flags, evaluated after the
	// mutation. Remove always lands on false.
	return Decision{
		Metadata:   m,
		CanPublish: m.HandRaised && m.InvitedToStage,
	}
}

// RaiseHand marks the participant's hand as raised. Grants publish
// permission when an invite is already pending.
func RaiseHand(m participant.Metadata) Decision {
	return Apply(TransitionRaiseHand, m)
}

// Invite marks the participant as invited to the stage. Grants publish
// permission when their hand is already raised.
func Invite(m participant.Metadata) Decision {
	return Apply(TransitionInvite, m)
}

// Remove takes the participant off the stage: both flags reset and publish
// permission is revoked, regardless of prior state.
func Remove(m participant.Metadata) Decision {
	return Apply(TransitionRemove, m)
}
