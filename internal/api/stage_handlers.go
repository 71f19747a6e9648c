package api

import (
	"context"
	"encoding/json"
	"net/http"

	livekitpb "github.com/livekit/protocol/livekit"

	"github.com/onnwee/openstage/internal/audit"
	"github.com/onnwee/openstage/internal/middleware"
	"github.com/onnwee/openstage/internal/participant"
	"github.com/onnwee/openstage/internal/stage"
	"github.com/onnwee/openstage/internal/validate"
)

// InviteToStageRequest is the request body for POST /api/invite_to_stage.
type InviteToStageRequest struct {
	Identity string `json:"identity"`
}

// RemoveFromStageRequest is the request body for POST /api/remove_from_stage.
// Identity defaults to the caller's own when omitted.
type RemoveFromStageRequest struct {
	Identity string `json:"identity,omitempty"`
}

// InviteToStage handles POST /api/invite_to_stage. Creator only.
// Marks the target as invited; they gain publish permission once they have
// also raised their hand, in either order.
func (s *Server) InviteToStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	ctx = middleware.SetIdentity(ctx, sess.Identity)
	ctx = middleware.SetRoomName(ctx, sess.RoomName)
	middleware.UpdateResponseContext(w, ctx)

	var req InviteToStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return
	}

	target, err := validate.Identity(req.Identity)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "identity is required")
		return
	}

	creator, ok := s.roomCreator(w, ctx, sess.RoomName)
	if !ok {
		return
	}
	if creator != sess.Identity {
		s.recordAudit(ctx, audit.Entry{Identity: sess.Identity, RoomName: sess.RoomName, Target: target, Action: audit.ActionInviteToStage, Outcome: audit.OutcomeFailure})
		ctx = middleware.SetErrorCode(ctx, ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Only the creator can invite to stage")
		return
	}

	if !s.applyTransition(w, ctx, sess.RoomName, target, stage.TransitionInvite) {
		s.recordAudit(ctx, audit.Entry{Identity: sess.Identity, RoomName: sess.RoomName, Target: target, Action: audit.ActionInviteToStage, Outcome: audit.OutcomeFailure})
		return
	}

	s.metrics.IncStageTransitions(string(stage.TransitionInvite))
	s.recordAudit(ctx, audit.Entry{Identity: sess.Identity, RoomName: sess.RoomName, Target: target, Action: audit.ActionInviteToStage, Outcome: audit.OutcomeSuccess})

	s.writeJSON(w, ctx, struct{}{})
}

// RaiseHand handles POST /api/raise_hand. Always self-targeted.
func (s *Server) RaiseHand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	ctx = middleware.SetIdentity(ctx, sess.Identity)
	ctx = middleware.SetRoomName(ctx, sess.RoomName)
	middleware.UpdateResponseContext(w, ctx)

	if !s.applyTransition(w, ctx, sess.RoomName, sess.Identity, stage.TransitionRaiseHand) {
		s.recordAudit(ctx, audit.Entry{Identity: sess.Identity, RoomName: sess.RoomName, Action: audit.ActionRaiseHand, Outcome: audit.OutcomeFailure})
		return
	}

	s.metrics.IncStageTransitions(string(stage.TransitionRaiseHand))
	s.recordAudit(ctx, audit.Entry{Identity: sess.Identity, RoomName: sess.RoomName, Action: audit.ActionRaiseHand, Outcome: audit.OutcomeSuccess})

	s.writeJSON(w, ctx, struct{}{})
}

// RemoveFromStage handles POST /api/remove_from_stage.
// The creator can remove anyone; everyone else can only remove themselves.
func (s *Server) RemoveFromStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	ctx = middleware.SetIdentity(ctx, sess.Identity)
	ctx = middleware.SetRoomName(ctx, sess.RoomName)
	middleware.UpdateResponseContext(w, ctx)

	var req RemoveFromStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return
	}

	target := req.Identity
	if target == "" {
		target = sess.Identity
	}
	target, err := validate.Identity(target)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "identity is invalid")
		return
	}

	creator, ok := s.roomCreator(w, ctx, sess.RoomName)
	if !ok {
		return
	}
	if sess.Identity != creator && target != sess.Identity {
		s.recordAudit(ctx, audit.Entry{Identity: sess.Identity, RoomName: sess.RoomName, Target: target, Action: audit.ActionRemoveFromStage, Outcome: audit.OutcomeFailure})
		ctx = middleware.SetErrorCode(ctx, ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Only the creator can remove other participants")
		return
	}

	if !s.applyTransition(w, ctx, sess.RoomName, target, stage.TransitionRemove) {
		s.recordAudit(ctx, audit.Entry{Identity: sess.Identity, RoomName: sess.RoomName, Target: target, Action: audit.ActionRemoveFromStage, Outcome: audit.OutcomeFailure})
		return
	}

	s.metrics.IncStageTransitions(string(stage.TransitionRemove))
	s.recordAudit(ctx, audit.Entry{Identity: sess.Identity, RoomName: sess.RoomName, Target: target, Action: audit.ActionRemoveFromStage, Outcome: audit.OutcomeSuccess})

	s.writeJSON(w, ctx, struct{}{})
}

// applyTransition loads the target participant, applies the stage transition
// to their metadata, and writes metadata and permission back in a single
// update. Concurrent mutations are last-write-wins; the media server holds
// the only copy of the state. Writes the error response and returns false on
// failure.
func (s *Server) applyTransition(w http.ResponseWriter, ctx context.Context, roomName, identity string, t stage.Transition) bool {
	info, err := s.rooms.GetParticipant(ctx, roomName, identity)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Participant not found")
		return false
	}

	meta, err := participant.ParseMetadata(info.GetMetadata(), identity)
	if err != nil {
		s.logger.ErrorContext(ctx, "corrupt participant metadata", "error", err, "room", roomName, "participant", identity)
		ctx = middleware.SetErrorCode(ctx, ErrCodeCorruptMetadata)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeCorruptMetadata, "Participant metadata is corrupt")
		return false
	}

	decision := stage.Apply(t, meta)
	encoded, err := decision.Metadata.Serialize()
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to encode participant metadata")
		return false
	}

	permission := info.GetPermission()
	if permission == nil {
		permission = &livekitpb.ParticipantPermission{CanSubscribe: true, CanPublishData: true}
	}
	permission.CanPublish = decision.CanPublish

	if _, err := s.rooms.UpdateParticipant(ctx, roomName, identity, encoded, permission); err != nil {
		s.logger.ErrorContext(ctx, "failed to update participant", "error", err, "room", roomName, "participant", identity)
		ctx = middleware.SetErrorCode(ctx, ErrCodeUpstream)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstream, "Failed to update participant")
		return false
	}
	return true
}
