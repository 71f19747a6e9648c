// Package validate provides input validation for identifiers arriving on the
// public API before they are forwarded to the room service.
package validate

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation errors.
var (
	ErrEmpty             = errors.New("value is empty")
	ErrTooLong           = errors.New("value is too long")
	ErrInvalidCharacters = errors.New("value contains invalid characters")
)

// MaxIdentityLength bounds participant identities; LiveKit itself allows
// longer values but nothing legitimate needs more.
const MaxIdentityLength = 256

// Room name validation: alphanumeric, hyphens, underscores (max 128 chars).
// This keeps names shareable in URLs and safe for the room service.
var roomNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// RoomName trims and validates a caller-supplied room name.
func RoomName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmpty
	}
	if !roomNamePattern.MatchString(name) {
		if len(name) > 128 {
			return "", ErrTooLong
		}
		return "", ErrInvalidCharacters
	}
	return name, nil
}

// Identity trims and validates a participant identity. Identities are
// free-form display-ish strings, so only emptiness, length, and control
// characters are rejected.
func Identity(identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", ErrEmpty
	}
	if utf8.RuneCountInString(identity) > MaxIdentityLength {
		return "", ErrTooLong
	}
	for _, r := range identity {
		if r < 0x20 || r == 0x7f {
			return "", ErrInvalidCharacters
		}
	}
	return identity, nil
}
