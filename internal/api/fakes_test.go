package api

import (
	"context"
	"errors"
	"fmt"
	"sync"

	livekitpb "github.com/livekit/protocol/livekit"

	"github.com/onnwee/openstage/internal/livekit"
)

// errUpstream simulates a media server failure.
var errUpstream = errors.New("upstream unavailable")

// fakeMediaServer is an in-memory stand-in for the LiveKit server APIs. It
// implements RoomGateway and IngressGateway and records every call so tests
// can assert on what the handlers asked for.
type fakeMediaServer struct {
	mu           sync.Mutex
	rooms        map[string]*livekitpb.Room
	participants map[string]*livekitpb.ParticipantInfo
	ingresses    []*livekitpb.IngressInfo

	createRoomErr        error
	deleteRoomErr        error
	updateParticipantErr error
	createIngressErr     error

	updateCalls int
	listCalls   int
}

func newFakeMediaServer() *fakeMediaServer {
	return &fakeMediaServer{
		rooms:        make(map[string]*livekitpb.Room),
		participants: make(map[string]*livekitpb.ParticipantInfo),
	}
}

func participantKey(roomName, identity string) string {
	return roomName + "/" + identity
}

func (f *fakeMediaServer) CreateRoom(ctx context.Context, roomName, metadata string) (*livekitpb.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createRoomErr != nil {
		return nil, f.createRoomErr
	}
	room := &livekitpb.Room{Name: roomName, Metadata: metadata}
	f.rooms[roomName] = room
	return room, nil
}

func (f *fakeMediaServer) DeleteRoom(ctx context.Context, roomName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteRoomErr != nil {
		return f.deleteRoomErr
	}
	delete(f.rooms, roomName)
	for key := range f.participants {
		if len(key) > len(roomName) && key[:len(roomName)+1] == roomName+"/" {
			delete(f.participants, key)
		}
	}
	return nil
}

func (f *fakeMediaServer) GetRoom(ctx context.Context, roomName string) (*livekitpb.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomName]
	if !ok {
		return nil, livekit.ErrRoomNotFound
	}
	return room, nil
}

func (f *fakeMediaServer) GetParticipant(ctx context.Context, roomName, identity string) (*livekitpb.ParticipantInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.participants[participantKey(roomName, identity)]
	if !ok {
		return nil, errors.New("participant not found")
	}
	return info, nil
}

func (f *fakeMediaServer) ListParticipants(ctx context.Context, roomName string) ([]*livekitpb.ParticipantInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var infos []*livekitpb.ParticipantInfo
	for key, info := range f.participants {
		if len(key) > len(roomName) && key[:len(roomName)+1] == roomName+"/" {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

func (f *fakeMediaServer) UpdateParticipant(ctx context.Context, roomName, identity, metadata string, permission *livekitpb.ParticipantPermission) (*livekitpb.ParticipantInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateParticipantErr != nil {
		return nil, f.updateParticipantErr
	}
	info, ok := f.participants[participantKey(roomName, identity)]
	if !ok {
		return nil, errors.New("participant not found")
	}
	info.Metadata = metadata
	info.Permission = permission
	return info, nil
}

func (f *fakeMediaServer) CreateIngress(ctx context.Context, ingressType livekit.IngressType, roomName, participantIdentity, participantName string) (*livekitpb.IngressInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createIngressErr != nil {
		return nil, f.createIngressErr
	}
	info := &livekitpb.IngressInfo{
		IngressId:           fmt.Sprintf("ingress-%d", len(f.ingresses)+1),
		Name:                roomName,
		RoomName:            roomName,
		ParticipantIdentity: participantIdentity,
		ParticipantName:     participantName,
		Url:                 "rtmp://ingest.example.com/live",
		StreamKey:           "stream-key",
	}
	f.ingresses = append(f.ingresses, info)
	return info, nil
}

// addParticipant seeds a participant into a room for tests.
func (f *fakeMediaServer) addParticipant(roomName, identity, metadata string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participants[participantKey(roomName, identity)] = &livekitpb.ParticipantInfo{
		Identity: identity,
		Metadata: metadata,
		Permission: &livekitpb.ParticipantPermission{
			CanSubscribe:   true,
			CanPublishData: true,
		},
	}
}

func (f *fakeMediaServer) participant(roomName, identity string) *livekitpb.ParticipantInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participants[participantKey(roomName, identity)]
}
