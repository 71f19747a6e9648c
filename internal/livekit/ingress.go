package livekit

import (
	"context"
	"errors"
	"fmt"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/onnwee/openstage/internal/tracing"
)

// ErrIngressServiceNotConfigured is returned when ingress operations are attempted without proper configuration.
var ErrIngressServiceNotConfigured = errors.New("livekit ingress service not configured")

// ErrUnsupportedIngressType is returned for ingress types other than rtmp and whip.
var ErrUnsupportedIngressType = errors.New("unsupported ingress type")

// IngressType selects the ingest protocol for broadcaster software.
type IngressType string

const (
	IngressTypeRTMP IngressType = "rtmp"
	IngressTypeWHIP IngressType = "whip"
)

// IngressService provisions ingest endpoints that forward incoming media
// into a room.
type IngressService struct {
	ingressClient *lksdk.IngressClient
}

// NewIngressService creates a new IngressService with the given configuration.
// The url may be a ws:// or wss:// URL; it is converted to the HTTP API URL.
// Returns nil if url, apiKey, or apiSecret is empty.
func NewIngressService(url, apiKey, apiSecret string) *IngressService {
	if url == "" || apiKey == "" || apiSecret == "" {
		return nil
	}

	return &IngressService{
		ingressClient: lksdk.NewIngressClient(HTTPURLFromWS(url), apiKey, apiSecret),
	}
}

// CreateIngress provisions an ingest endpoint scoped to the given publisher
// identity. RTMP ingests are transcoded with a fixed preset (1080p30
// three-layer H.264 video, stereo Opus audio); WHIP ingests bypass
// transcoding entirely. These are fixed policy choices, not user-configurable.
func (s *IngressService) CreateIngress(ctx context.Context, ingressType IngressType, roomName, participantIdentity, participantName string) (info *livekit.IngressInfo, err error) {
	if s == nil || s.ingressClient == nil {
		return nil, ErrIngressServiceNotConfigured
	}

	ctx, end := tracing.StartMediaSpan(ctx, roomName, tracing.MediaOperationCreateIngress)
	defer func() { end(err) }()

	req := &livekit.CreateIngressRequest{
		Name:                roomName,
		RoomName:            roomName,
		ParticipantIdentity: participantIdentity,
		ParticipantName:     participantName,
	}

	switch ingressType {
	case IngressTypeWHIP:
		req.InputType = livekit.IngressInput_WHIP_INPUT
		req.BypassTranscoding = true
	case IngressTypeRTMP:
		req.InputType = livekit.IngressInput_RTMP_INPUT
		req.Video = &livekit.IngressVideoOptions{
			Source: livekit.TrackSource_CAMERA,
			EncodingOptions: &livekit.IngressVideoOptions_Preset{
				Preset: livekit.IngressVideoEncodingPreset_H264_1080P_30FPS_3_LAYERS,
			},
		}
		req.Audio = &livekit.IngressAudioOptions{
			Source: livekit.TrackSource_MICROPHONE,
			EncodingOptions: &livekit.IngressAudioOptions_Preset{
				Preset: livekit.IngressAudioEncodingPreset_OPUS_STEREO_96KBPS,
			},
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedIngressType, ingressType)
	}

	info, err = s.ingressClient.CreateIngress(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingress: %w", err)
	}

	return info, nil
}
