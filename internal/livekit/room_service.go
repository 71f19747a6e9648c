// Package livekit is a thin facade over the LiveKit server APIs: room and
// participant management, ingress provisioning, and access token minting.
// It shapes requests for the wire protocol and performs no business logic.
package livekit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/onnwee/openstage/internal/tracing"
)

var (
	// ErrRoomServiceNotConfigured is returned when room operations are attempted without proper configuration.
	ErrRoomServiceNotConfigured = errors.New("livekit room service not configured")

	// ErrRoomNotFound is returned when a requested room does not exist in LiveKit.
	ErrRoomNotFound = errors.New("room not found")
)

// emptyRoomTimeout is how long (seconds) an empty room lingers before LiveKit
// closes it. Covers broadcaster reconnects without leaking rooms forever.
const emptyRoomTimeout = 300

// HTTPURLFromWS converts a LiveKit websocket URL to the HTTP base URL the
// server APIs are served on.
func HTTPURLFromWS(wsURL string) string {
	if rest, ok := strings.CutPrefix(wsURL, "wss://"); ok {
		return "https://" + rest
	}
	if rest, ok := strings.CutPrefix(wsURL, "ws://"); ok {
		return "http://" + rest
	}
	return wsURL
}

// RoomService provides operations for managing LiveKit rooms and their
// participants. A single instance is shared across requests; the underlying
// client holds no per-request state.
type RoomService struct {
	roomClient *lksdk.RoomServiceClient
}

// NewRoomService creates a new RoomService with the given configuration.
// The url may be a ws:// or wss:// URL; it is converted to the HTTP API URL.
// Returns nil if url, apiKey, or apiSecret is empty (room control will not be available).
func NewRoomService(url, apiKey, apiSecret string) *RoomService {
	if url == "" || apiKey == "" || apiSecret == "" {
		return nil
	}

	return &RoomService{
		roomClient: lksdk.NewRoomServiceClient(HTTPURLFromWS(url), apiKey, apiSecret),
	}
}

// CreateRoom creates a new LiveKit room carrying the given opaque metadata
// blob (which holds creator_identity among whatever else the caller sent).
func (s *RoomService) CreateRoom(ctx context.Context, roomName, metadata string) (room *livekit.Room, err error) {
	if s == nil || s.roomClient == nil {
		return nil, ErrRoomServiceNotConfigured
	}

	ctx, end := tracing.StartMediaSpan(ctx, roomName, tracing.MediaOperationCreateRoom)
	defer func() { end(err) }()

	req := &livekit.CreateRoomRequest{
		Name:         roomName,
		Metadata:     metadata,
		EmptyTimeout: emptyRoomTimeout,
	}

	room, err = s.roomClient.CreateRoom(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return room, nil
}

// DeleteRoom deletes a LiveKit room, disconnecting all participants.
func (s *RoomService) DeleteRoom(ctx context.Context, roomName string) (err error) {
	if s == nil || s.roomClient == nil {
		return ErrRoomServiceNotConfigured
	}

	ctx, end := tracing.StartMediaSpan(ctx, roomName, tracing.MediaOperationDeleteRoom)
	defer func() { end(err) }()

	req := &livekit.DeleteRoomRequest{
		Room: roomName,
	}

	_, err = s.roomClient.DeleteRoom(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	return nil
}

// ListRooms lists rooms, optionally filtered by name.
func (s *RoomService) ListRooms(ctx context.Context, names []string) ([]*livekit.Room, error) {
	if s == nil || s.roomClient == nil {
		return nil, ErrRoomServiceNotConfigured
	}

	resp, err := s.roomClient.ListRooms(ctx, &livekit.ListRoomsRequest{
		Names: names,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	return resp.Rooms, nil
}

// GetRoom retrieves information about a specific LiveKit room.
// Returns ErrRoomNotFound if the room does not exist in LiveKit.
func (s *RoomService) GetRoom(ctx context.Context, roomName string) (room *livekit.Room, err error) {
	ctx, end := tracing.StartMediaSpan(ctx, roomName, tracing.MediaOperationGetRoom)
	defer func() { end(err) }()

	rooms, err := s.ListRooms(ctx, []string{roomName})
	if err != nil {
		return nil, err
	}

	if len(rooms) == 0 {
		return nil, ErrRoomNotFound
	}

	return rooms[0], nil
}

// GetParticipant gets information about a specific participant. LiveKit does
// not distinguish "absent" from other failures in a portable way, so callers
// that only need an existence check treat any error as "not present".
func (s *RoomService) GetParticipant(ctx context.Context, roomName, identity string) (info *livekit.ParticipantInfo, err error) {
	if s == nil || s.roomClient == nil {
		return nil, ErrRoomServiceNotConfigured
	}

	ctx, end := tracing.StartMediaSpan(ctx, roomName, tracing.MediaOperationGetParticipant)
	defer func() { end(err) }()

	req := &livekit.RoomParticipantIdentity{
		Room:     roomName,
		Identity: identity,
	}

	participant, err := s.roomClient.GetParticipant(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return participant, nil
}

// ListParticipants lists all participants in a room.
func (s *RoomService) ListParticipants(ctx context.Context, roomName string) ([]*livekit.ParticipantInfo, error) {
	if s == nil || s.roomClient == nil {
		return nil, ErrRoomServiceNotConfigured
	}

	resp, err := s.roomClient.ListParticipants(ctx, &livekit.ListParticipantsRequest{
		Room: roomName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	return resp.Participants, nil
}

// UpdateParticipant writes a participant's metadata and permission in a
// single call, so the permission always lands together with the metadata
// state it was derived from.
//
// The update is last-write-wins over the full metadata blob: LiveKit exposes
// no conditional update, so two concurrent read-modify-write cycles against
// the same participant can overwrite each other. Accepted behavior.
func (s *RoomService) UpdateParticipant(ctx context.Context, roomName, identity, metadata string, permission *livekit.ParticipantPermission) (info *livekit.ParticipantInfo, err error) {
	if s == nil || s.roomClient == nil {
		return nil, ErrRoomServiceNotConfigured
	}

	ctx, end := tracing.StartMediaSpan(ctx, roomName, tracing.MediaOperationUpdateParticipant)
	defer func() { end(err) }()

	req := &livekit.UpdateParticipantRequest{
		Room:       roomName,
		Identity:   identity,
		Metadata:   metadata,
		Permission: permission,
	}

	participant, err := s.roomClient.UpdateParticipant(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}

	return participant, nil
}
