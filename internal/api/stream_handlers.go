// Package api provides HTTP handlers for the livestream control plane.
package api

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	livekitpb "github.com/livekit/protocol/livekit"

	"github.com/onnwee/openstage/internal/audit"
	"github.com/onnwee/openstage/internal/livekit"
	"github.com/onnwee/openstage/internal/middleware"
	"github.com/onnwee/openstage/internal/participant"
	"github.com/onnwee/openstage/internal/session"
	"github.com/onnwee/openstage/internal/validate"
)

// RoomGateway is the subset of the room service the handlers depend on.
type RoomGateway interface {
	CreateRoom(ctx context.Context, roomName, metadata string) (*livekitpb.Room, error)
	DeleteRoom(ctx context.Context, roomName string) error
	GetRoom(ctx context.Context, roomName string) (*livekitpb.Room, error)
	GetParticipant(ctx context.Context, roomName, identity string) (*livekitpb.ParticipantInfo, error)
	ListParticipants(ctx context.Context, roomName string) ([]*livekitpb.ParticipantInfo, error)
	UpdateParticipant(ctx context.Context, roomName, identity, metadata string, permission *livekitpb.ParticipantPermission) (*livekitpb.ParticipantInfo, error)
}

// IngressGateway provisions ingest endpoints for broadcaster software.
type IngressGateway interface {
	CreateIngress(ctx context.Context, ingressType livekit.IngressType, roomName, participantIdentity, participantName string) (*livekitpb.IngressInfo, error)
}

// TokenMinter mints LiveKit room access tokens.
type TokenMinter interface {
	MintToken(roomName, identity string, grants livekit.Grants, expiry time.Duration) (string, error)
}

// Server holds the dependencies shared by all control-plane handlers.
type Server struct {
	logger   *slog.Logger
	rooms    RoomGateway
	ingress  IngressGateway
	tokens   TokenMinter
	sessions *session.Codec
	audit    audit.Repository
	metrics  *Metrics
	wsURL    string
}

// NewServer creates a Server with the given dependencies.
func NewServer(logger *slog.Logger, rooms RoomGateway, ingress IngressGateway, tokens TokenMinter, sessions *session.Codec, auditRepo audit.Repository, metrics *Metrics, wsURL string) *Server {
	return &Server{
		logger:   logger,
		rooms:    rooms,
		ingress:  ingress,
		tokens:   tokens,
		sessions: sessions,
		audit:    auditRepo,
		metrics:  metrics,
		wsURL:    wsURL,
	}
}

// CreateStreamRequest is the request body for POST /api/create_stream.
// Metadata is stored on the room wholesale; the handlers only require a
// creator_identity field inside it.
type CreateStreamRequest struct {
	RoomName string         `json:"room_name,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

// ConnectionDetails carries what a client needs to connect to the room.
type ConnectionDetails struct {
	WSURL string `json:"ws_url"`
	Token string `json:"token"`
}

// CreateStreamResponse is the response body for POST /api/create_stream.
type CreateStreamResponse struct {
	AuthToken         string            `json:"auth_token"`
	ConnectionDetails ConnectionDetails `json:"connection_details"`
}

// CreateIngressRequest is the request body for POST /api/create_ingress.
type CreateIngressRequest struct {
	RoomName    string         `json:"room_name,omitempty"`
	IngressType string         `json:"ingress_type,omitempty"`
	Metadata    map[string]any `json:"metadata"`
}

// CreateIngressResponse is the response body for POST /api/create_ingress.
type CreateIngressResponse struct {
	Ingress           *livekitpb.IngressInfo `json:"ingress"`
	AuthToken         string                 `json:"auth_token"`
	ConnectionDetails ConnectionDetails      `json:"connection_details"`
}

// JoinStreamRequest is the request body for POST /api/join_stream.
type JoinStreamRequest struct {
	RoomName string `json:"room_name"`
	Identity string `json:"identity"`
}

// JoinStreamResponse is the response body for POST /api/join_stream.
type JoinStreamResponse struct {
	AuthToken         string            `json:"auth_token"`
	ConnectionDetails ConnectionDetails `json:"connection_details"`
}

// roomNameAlphabet matches the generated room identifier characters.
const roomNameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// generateRoomName produces identifiers like "x4kq-09bn": two 4-character
// lowercase alphanumeric segments joined by a hyphen.
func generateRoomName() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	for i := range buf {
		buf[i] = roomNameAlphabet[int(buf[i])%len(roomNameAlphabet)]
	}
	return string(buf[:4]) + "-" + string(buf[4:])
}

// creatorFromMetadata pulls the creator_identity string out of the
// caller-supplied metadata object.
func creatorFromMetadata(metadata map[string]any) string {
	creator, _ := metadata["creator_identity"].(string)
	return creator
}

// writeJSON writes a JSON response with status 200.
func (s *Server) writeJSON(w http.ResponseWriter, ctx context.Context, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// recordAudit logs an audit entry, logging but not failing on errors.
func (s *Server) recordAudit(ctx context.Context, entry audit.Entry) {
	entry.RequestID = middleware.GetRequestID(ctx)
	if _, err := s.audit.Log(entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to record audit entry",
			"error", err,
			"action", entry.Action,
		)
	}
}

// CreateStream handles POST /api/create_stream.
// Creates a room, mints a publisher token for the creator, and issues the
// session credential used to authenticate follow-up control requests.
func (s *Server) CreateStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return
	}

	identity, err := validate.Identity(creatorFromMetadata(req.Metadata))
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "metadata.creator_identity is required")
		return
	}

	roomName := req.RoomName
	if roomName == "" {
		roomName = generateRoomName()
	}
	roomName, err = validate.RoomName(roomName)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "room_name contains invalid characters or exceeds maximum length")
		return
	}

	roomMeta, err := participant.RoomMetadata(req.Metadata)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to encode room metadata")
		return
	}

	if _, err := s.rooms.CreateRoom(ctx, roomName, roomMeta); err != nil {
		s.logger.ErrorContext(ctx, "failed to create room", "error", err, "room", roomName)
		s.recordAudit(ctx, audit.Entry{Identity: identity, RoomName: roomName, Action: audit.ActionCreateStream, Outcome: audit.OutcomeFailure})
		ctx = middleware.SetErrorCode(ctx, ErrCodeUpstream)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstream, "Failed to create room")
		return
	}

	token, err := s.tokens.MintToken(roomName, identity, livekit.PublisherGrants(), livekit.DefaultTokenExpiry)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mint publisher token", "error", err, "room", roomName)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to mint access token")
		return
	}

	authToken, err := s.sessions.Issue(roomName, identity)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue session credential", "error", err, "room", roomName)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to issue session credential")
		return
	}

	s.metrics.IncStreamsCreated()
	s.recordAudit(ctx, audit.Entry{Identity: identity, RoomName: roomName, Action: audit.ActionCreateStream, Outcome: audit.OutcomeSuccess})

	s.writeJSON(w, ctx, CreateStreamResponse{
		AuthToken: authToken,
		ConnectionDetails: ConnectionDetails{
			WSURL: s.wsURL,
			Token: token,
		},
	})
}

// ingressParticipantSuffix distinguishes the broadcaster's ingest participant
// from their in-room identity.
const ingressParticipantSuffix = " (via OBS)"

// CreateIngress handles POST /api/create_ingress.
// Creates a room plus an ingest endpoint for it, and returns the credentials
// the creator needs to watch the room. A room successfully created before a
// failing ingress call is not rolled back.
func (s *Server) CreateIngress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateIngressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return
	}

	identity, err := validate.Identity(creatorFromMetadata(req.Metadata))
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "metadata.creator_identity is required")
		return
	}

	ingressType := livekit.IngressType(req.IngressType)
	if ingressType == "" {
		ingressType = livekit.IngressTypeRTMP
	}
	if ingressType != livekit.IngressTypeRTMP && ingressType != livekit.IngressTypeWHIP {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "ingress_type must be rtmp or whip")
		return
	}

	roomName := req.RoomName
	if roomName == "" {
		roomName = generateRoomName()
	}
	roomName, err = validate.RoomName(roomName)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "room_name contains invalid characters or exceeds maximum length")
		return
	}

	roomMeta, err := participant.RoomMetadata(req.Metadata)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to encode room metadata")
		return
	}

	if _, err := s.rooms.CreateRoom(ctx, roomName, roomMeta); err != nil {
		s.logger.ErrorContext(ctx, "failed to create room", "error", err, "room", roomName)
		s.recordAudit(ctx, audit.Entry{Identity: identity, RoomName: roomName, Action: audit.ActionCreateIngress, Outcome: audit.OutcomeFailure})
		ctx = middleware.SetErrorCode(ctx, ErrCodeUpstream)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstream, "Failed to create room")
		return
	}

	ingressIdentity := identity + ingressParticipantSuffix
	info, err := s.ingress.CreateIngress(ctx, ingressType, roomName, ingressIdentity, ingressIdentity)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create ingress", "error", err, "room", roomName, "type", string(ingressType))
		s.recordAudit(ctx, audit.Entry{Identity: identity, RoomName: roomName, Action: audit.ActionCreateIngress, Outcome: audit.OutcomeFailure})
		ctx = middleware.SetErrorCode(ctx, ErrCodeUpstream)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstream, "Failed to create ingress")
		return
	}

	// The creator watches their own ingest-fed room as a viewer; publishing
	// happens through the ingest endpoint.
	token, err := s.tokens.MintToken(roomName, identity, livekit.ViewerGrants(), livekit.DefaultTokenExpiry)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mint viewer token", "error", err, "room", roomName)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to mint access token")
		return
	}

	authToken, err := s.sessions.Issue(roomName, identity)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue session credential", "error", err, "room", roomName)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to issue session credential")
		return
	}

	s.metrics.IncIngressesCreated(string(ingressType))
	s.recordAudit(ctx, audit.Entry{Identity: identity, RoomName: roomName, Action: audit.ActionCreateIngress, Outcome: audit.OutcomeSuccess})

	s.writeJSON(w, ctx, CreateIngressResponse{
		Ingress:   info,
		AuthToken: authToken,
		ConnectionDetails: ConnectionDetails{
			WSURL: s.wsURL,
			Token: token,
		},
	})
}

// JoinStream handles POST /api/join_stream.
// Mints a subscribe-only token for a viewer, rejecting identities already
// present in the room.
func (s *Server) JoinStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req JoinStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return
	}

	roomName, err := validate.RoomName(req.RoomName)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "room_name is required")
		return
	}
	identity, err := validate.Identity(req.Identity)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "identity is required")
		return
	}

	// Any successful lookup means the identity is taken. Lookup errors are
	// treated as "not present": the room may not exist yet on the media
	// server, and a stale conflict is worse than a failed join.
	if _, err := s.rooms.GetParticipant(ctx, roomName, identity); err == nil {
		s.recordAudit(ctx, audit.Entry{Identity: identity, RoomName: roomName, Action: audit.ActionJoinStream, Outcome: audit.OutcomeFailure})
		ctx = middleware.SetErrorCode(ctx, ErrCodeConflict)
		WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "Participant already exists")
		return
	}

	token, err := s.tokens.MintToken(roomName, identity, livekit.ViewerGrants(), livekit.DefaultTokenExpiry)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mint viewer token", "error", err, "room", roomName)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to mint access token")
		return
	}

	authToken, err := s.sessions.Issue(roomName, identity)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue session credential", "error", err, "room", roomName)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to issue session credential")
		return
	}

	s.metrics.IncStreamJoins()
	s.recordAudit(ctx, audit.Entry{Identity: identity, RoomName: roomName, Action: audit.ActionJoinStream, Outcome: audit.OutcomeSuccess})

	s.writeJSON(w, ctx, JoinStreamResponse{
		AuthToken: authToken,
		ConnectionDetails: ConnectionDetails{
			WSURL: s.wsURL,
			Token: token,
		},
	})
}

// StopStream handles POST /api/stop_stream.
// Deletes the room, disconnecting every participant. Creator only.
func (s *Server) StopStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	ctx = middleware.SetIdentity(ctx, sess.Identity)
	ctx = middleware.SetRoomName(ctx, sess.RoomName)
	middleware.UpdateResponseContext(w, ctx)

	creator, ok := s.roomCreator(w, ctx, sess.RoomName)
	if !ok {
		return
	}

	if creator != sess.Identity {
		s.recordAudit(ctx, audit.Entry{Identity: sess.Identity, RoomName: sess.RoomName, Action: audit.ActionStopStream, Outcome: audit.OutcomeFailure})
		ctx = middleware.SetErrorCode(ctx, ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Only the creator can stop the stream")
		return
	}

	// Best-effort count of who is about to be disconnected, for the
	// operational log. Deletion proceeds either way.
	if participants, err := s.rooms.ListParticipants(ctx, sess.RoomName); err == nil {
		s.logger.InfoContext(ctx, "stopping stream",
			"room", sess.RoomName,
			"participants", len(participants),
		)
	}

	if err := s.rooms.DeleteRoom(ctx, sess.RoomName); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete room", "error", err, "room", sess.RoomName)
		ctx = middleware.SetErrorCode(ctx, ErrCodeUpstream)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstream, "Failed to delete room")
		return
	}

	s.metrics.IncStreamsStopped()
	s.recordAudit(ctx, audit.Entry{Identity: sess.Identity, RoomName: sess.RoomName, Action: audit.ActionStopStream, Outcome: audit.OutcomeSuccess})

	s.writeJSON(w, ctx, struct{}{})
}

// authenticate extracts and verifies the session credential from the request.
// Writes an unauthorized error response and returns ok=false on failure.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	ctx := r.Context()

	sess, err := s.sessions.FromRequest(r)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		if errors.Is(err, session.ErrMissingToken) {
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authorization header required")
		} else {
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid session credential")
		}
		return nil, false
	}
	return sess, true
}

// roomCreator resolves the creator identity stored in the room's metadata.
// Writes the appropriate error response and returns ok=false on failure.
func (s *Server) roomCreator(w http.ResponseWriter, ctx context.Context, roomName string) (string, bool) {
	room, err := s.rooms.GetRoom(ctx, roomName)
	if err != nil {
		if errors.Is(err, livekit.ErrRoomNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Room does not exist")
			return "", false
		}
		s.logger.ErrorContext(ctx, "failed to look up room", "error", err, "room", roomName)
		ctx = middleware.SetErrorCode(ctx, ErrCodeUpstream)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstream, "Failed to look up room")
		return "", false
	}

	creator, err := participant.CreatorIdentity(room.GetMetadata())
	if err != nil {
		s.logger.ErrorContext(ctx, "corrupt room metadata", "error", err, "room", roomName)
		ctx = middleware.SetErrorCode(ctx, ErrCodeCorruptMetadata)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeCorruptMetadata, "Room metadata is corrupt")
		return "", false
	}
	return creator, true
}
