// Package session provides the signed bearer credential that binds a room
// name to a participant identity. The credential is stateless: verifying it
// requires no server-side lookup.
package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid session token")

// ErrMissingToken is returned when no bearer token is present on a request.
var ErrMissingToken = errors.New("missing session token")

// ErrEmptyRoomName is returned when the room name is empty.
var ErrEmptyRoomName = errors.New("room name cannot be empty")

// ErrEmptyIdentity is returned when the identity is empty.
var ErrEmptyIdentity = errors.New("identity cannot be empty")

// Session is the decoded credential payload.
type Session struct {
	RoomName string
	Identity string
}

// Claims represents the JWT claims carried by a session credential.
// The credential has no expiry; it stays valid for the life of the signing
// secret. IssuedAt is recorded for auditability.
type Claims struct {
	jwt.RegisteredClaims
	RoomName string `json:"room_name"`
	Identity string `json:"identity"`
}

// Codec issues and verifies session credentials.
// Supports dual-key rotation: tokens are signed with currentSecret,
// but can be validated with either currentSecret or previousSecret.
type Codec struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
}

// NewCodec creates a Codec signing with the given secret.
func NewCodec(secret string) *Codec {
	return &Codec{
		currentSecret: []byte(secret),
		leeway:        DefaultLeeway,
	}
}

// NewCodecWithRotation creates a Codec with dual-key support for
// zero-downtime secret rotation. Set previousSecret to empty string if no
// rotation is in progress.
func NewCodecWithRotation(currentSecret, previousSecret string) *Codec {
	c := NewCodec(currentSecret)
	if previousSecret != "" {
		c.previousSecret = []byte(previousSecret)
	}
	return c
}

// Issue produces a signed credential binding roomName and identity.
func (c *Codec) Issue(roomName, identity string) (string, error) {
	if roomName == "" {
		return "", ErrEmptyRoomName
	}
	if identity == "" {
		return "", ErrEmptyIdentity
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		RoomName: roomName,
		Identity: identity,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.currentSecret)
}

// Verify parses and validates a credential, returning the decoded session.
// Tries currentSecret first, then previousSecret if available.
func (c *Codec) Verify(tokenString string) (*Session, error) {
	session, err := c.verifyWith(tokenString, c.currentSecret)
	if err == nil {
		return session, nil
	}

	if c.previousSecret != nil {
		if session, err2 := c.verifyWith(tokenString, c.previousSecret); err2 == nil {
			return session, nil
		}
	}

	return nil, err
}

func (c *Codec) verifyWith(tokenString string, secret []byte) (*Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(c.leeway))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.RoomName == "" || claims.Identity == "" {
		return nil, ErrInvalidToken
	}

	return &Session{RoomName: claims.RoomName, Identity: claims.Identity}, nil
}

// FromRequest extracts and verifies the bearer credential from the
// Authorization header. Returns ErrMissingToken when no bearer token is
// present and ErrInvalidToken when verification fails.
func (c *Codec) FromRequest(r *http.Request) (*Session, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, ErrMissingToken
	}

	return c.Verify(token)
}
