package livekit

import (
	"errors"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
)

// Token expiry configuration.
const (
	DefaultTokenExpiry = 6 * time.Hour
	MinTokenExpiry     = 1 * time.Minute
	MaxTokenExpiry     = 24 * time.Hour
)

var (
	// ErrInvalidExpiry is returned when token expiry is outside valid bounds.
	ErrInvalidExpiry = errors.New("token expiry must be between 1 minute and 24 hours")

	// ErrMissingAPIKey is returned when API key is empty.
	ErrMissingAPIKey = errors.New("livekit API key is required")

	// ErrMissingAPISecret is returned when API secret is empty.
	ErrMissingAPISecret = errors.New("livekit API secret is required")

	// ErrMissingRoomName is returned when room name is empty.
	ErrMissingRoomName = errors.New("room name is required")

	// ErrMissingIdentity is returned when identity is empty.
	ErrMissingIdentity = errors.New("participant identity is required")
)

// TokenService mints LiveKit access tokens.
type TokenService struct {
	apiKey    string
	apiSecret string
}

// NewTokenService creates a new TokenService with the given API credentials.
func NewTokenService(apiKey, apiSecret string) (*TokenService, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if apiSecret == "" {
		return nil, ErrMissingAPISecret
	}

	return &TokenService{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}, nil
}

// Grants are the room capabilities baked into a minted token. RoomJoin is
// always granted; the three publish/subscribe capabilities vary per caller
// role (broadcaster, viewer, ingress publisher).
type Grants struct {
	CanPublish     bool
	CanSubscribe   bool
	CanPublishData bool
}

// ViewerGrants returns the capabilities for a subscribe-only participant that
// may still use the data channel (chat, reactions).
func ViewerGrants() Grants {
	return Grants{CanSubscribe: true, CanPublishData: true}
}

// PublisherGrants returns the capabilities for a broadcasting creator. The
// data channel is granted too so creators can use chat without a token
// reissue; viewers already hold it through ViewerGrants.
func PublisherGrants() Grants {
	return Grants{CanPublish: true, CanSubscribe: true, CanPublishData: true}
}

// MintToken creates a signed LiveKit access token for identity scoped to
// roomName with the given grants. A zero expiry uses DefaultTokenExpiry.
func (s *TokenService) MintToken(roomName, identity string, grants Grants, expiry time.Duration) (string, error) {
	if roomName == "" {
		return "", ErrMissingRoomName
	}
	if identity == "" {
		return "", ErrMissingIdentity
	}

	if expiry == 0 {
		expiry = DefaultTokenExpiry
	}
	if expiry < MinTokenExpiry || expiry > MaxTokenExpiry {
		return "", ErrInvalidExpiry
	}

	at := auth.NewAccessToken(s.apiKey, s.apiSecret)
	at.SetIdentity(identity)
	at.AddGrant(&auth.VideoGrant{
		RoomJoin:       true,
		Room:           roomName,
		CanPublish:     boolPtr(grants.CanPublish),
		CanSubscribe:   boolPtr(grants.CanSubscribe),
		CanPublishData: boolPtr(grants.CanPublishData),
	})
	at.SetValidFor(expiry)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("failed to mint token: %w", err)
	}

	return token, nil
}

func boolPtr(b bool) *bool {
	return &b
}
