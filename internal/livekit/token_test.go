package livekit

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name      string
		apiKey    string
		apiSecret string
		wantErr   error
	}{
		{
			name:      "valid credentials",
			apiKey:    "test-api-key",
			apiSecret: "test-api-secret",
			wantErr:   nil,
		},
		{
			name:      "missing API key",
			apiKey:    "",
			apiSecret: "test-api-secret",
			wantErr:   ErrMissingAPIKey,
		},
		{
			name:      "missing API secret",
			apiKey:    "test-api-key",
			apiSecret: "",
			wantErr:   ErrMissingAPISecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewTokenService(tt.apiKey, tt.apiSecret)
			if err != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && svc == nil {
				t.Error("expected service to be non-nil")
			}
		})
	}
}

func TestMintToken_ViewerGrants(t *testing.T) {
	svc, err := NewTokenService("test-api-key", "test-api-secret")
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	tok, err := svc.MintToken("abcd-1234", "alice", ViewerGrants(), 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tok == "" {
		t.Fatal("expected token to be non-empty")
	}

	// Decode and verify the embedded video grant.
	token, err := jwt.Parse(tok, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-api-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("expected MapClaims")
	}

	if sub, ok := claims["sub"].(string); !ok || sub != "alice" {
		t.Errorf("expected sub 'alice', got %v", claims["sub"])
	}

	videoGrant, ok := claims["video"].(map[string]interface{})
	if !ok {
		t.Fatal("expected video grant in claims")
	}
	if room, ok := videoGrant["room"].(string); !ok || room != "abcd-1234" {
		t.Errorf("expected room 'abcd-1234', got %v", videoGrant["room"])
	}
	if roomJoin, ok := videoGrant["roomJoin"].(bool); !ok || !roomJoin {
		t.Errorf("expected roomJoin true, got %v", videoGrant["roomJoin"])
	}
	if canPublish, ok := videoGrant["canPublish"].(bool); !ok || canPublish {
		t.Errorf("expected canPublish false, got %v", videoGrant["canPublish"])
	}
	if canSubscribe, ok := videoGrant["canSubscribe"].(bool); !ok || !canSubscribe {
		t.Errorf("expected canSubscribe true, got %v", videoGrant["canSubscribe"])
	}
	if canPublishData, ok := videoGrant["canPublishData"].(bool); !ok || !canPublishData {
		t.Errorf("expected canPublishData true, got %v", videoGrant["canPublishData"])
	}
}

func TestMintToken_PublisherGrants(t *testing.T) {
	svc, err := NewTokenService("test-api-key", "test-api-secret")
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	tok, err := svc.MintToken("abcd-1234", "bob", PublisherGrants(), time.Hour)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	token, err := jwt.Parse(tok, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-api-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}

	claims := token.Claims.(jwt.MapClaims)
	videoGrant := claims["video"].(map[string]interface{})
	if canPublish, ok := videoGrant["canPublish"].(bool); !ok || !canPublish {
		t.Errorf("expected canPublish true, got %v", videoGrant["canPublish"])
	}
	// Creators keep the data channel alongside the media publish grant.
	if canPublishData, ok := videoGrant["canPublishData"].(bool); !ok || !canPublishData {
		t.Errorf("expected canPublishData true, got %v", videoGrant["canPublishData"])
	}
}

func TestMintToken_Validation(t *testing.T) {
	svc, err := NewTokenService("test-api-key", "test-api-secret")
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	tests := []struct {
		name     string
		room     string
		identity string
		expiry   time.Duration
		wantErr  error
	}{
		{name: "missing room", room: "", identity: "alice", wantErr: ErrMissingRoomName},
		{name: "missing identity", room: "abcd-1234", identity: "", wantErr: ErrMissingIdentity},
		{name: "expiry too short", room: "abcd-1234", identity: "alice", expiry: time.Second, wantErr: ErrInvalidExpiry},
		{name: "expiry too long", room: "abcd-1234", identity: "alice", expiry: 48 * time.Hour, wantErr: ErrInvalidExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.MintToken(tt.room, tt.identity, ViewerGrants(), tt.expiry); err != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHTTPURLFromWS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "wss://livekit.example.com", want: "https://livekit.example.com"},
		{in: "ws://localhost:7880", want: "http://localhost:7880"},
		{in: "https://livekit.example.com", want: "https://livekit.example.com"},
	}

	for _, tt := range tests {
		if got := HTTPURLFromWS(tt.in); got != tt.want {
			t.Errorf("HTTPURLFromWS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
