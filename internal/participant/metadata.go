// Package participant models the metadata blob this service stores inside a
// LiveKit participant record, plus the creator field inside room metadata.
package participant

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// avatarBaseURL is where default avatars are derived from.
const avatarBaseURL = "https://api.multiavatar.com/"

// ErrCorruptMetadata is returned when stored metadata cannot be decoded.
// Callers surface this as an explicit failure rather than resetting the
// participant's stage state to defaults.
var ErrCorruptMetadata = errors.New("corrupt participant metadata")

// Metadata is the JSON value stored opaquely in a LiveKit participant record.
type Metadata struct {
	HandRaised     bool   `json:"hand_raised"`
	InvitedToStage bool   `json:"invited_to_stage"`
	AvatarImage    string `json:"avatar_image"`
}

// DefaultMetadata synthesizes the metadata for a participant that has never
// been mutated. The avatar URL is derived deterministically from the identity.
func DefaultMetadata(identity string) Metadata {
	return Metadata{
		AvatarImage: avatarBaseURL + url.PathEscape(identity) + ".png",
	}
}

// ParseMetadata decodes the stored metadata blob. An empty blob yields the
// defaults for the given identity; malformed JSON yields ErrCorruptMetadata.
func ParseMetadata(raw, identity string) (Metadata, error) {
	if raw == "" {
		return DefaultMetadata(identity), nil
	}

	var m Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
	}
	return m, nil
}

// Serialize encodes metadata for storage in the participant record.
func (m Metadata) Serialize() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to serialize metadata: %w", err)
	}
	return string(data), nil
}

// roomMetadata is the subset of room metadata this service reads back.
type roomMetadata struct {
	CreatorIdentity string `json:"creator_identity"`
}

// RoomMetadata encodes the room metadata blob written at room creation. The
// caller's whole metadata object is stored as-is so fields beyond
// creator_identity survive the round trip.
func RoomMetadata(metadata map[string]any) (string, error) {
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to serialize room metadata: %w", err)
	}
	return string(data), nil
}

// CreatorIdentity extracts the creator_identity field from a room's opaque
// metadata blob. Returns ErrCorruptMetadata when the blob cannot be decoded
// and an empty string when the field is absent.
func CreatorIdentity(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	var m roomMetadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
	}
	return m.CreatorIdentity, nil
}
