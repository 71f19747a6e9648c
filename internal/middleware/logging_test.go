package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()

	if got := GetIdentity(ctx); got != "" {
		t.Errorf("GetIdentity on empty context = %q, want empty", got)
	}

	ctx = SetIdentity(ctx, "alice")
	if got := GetIdentity(ctx); got != "alice" {
		t.Errorf("GetIdentity = %q, want alice", got)
	}
}

func TestRoomNameContext(t *testing.T) {
	ctx := SetRoomName(context.Background(), "abcd-1234")
	if got := GetRoomName(ctx); got != "abcd-1234" {
		t.Errorf("GetRoomName = %q, want abcd-1234", got)
	}
}

func TestErrorCodeContext(t *testing.T) {
	ctx := SetErrorCode(context.Background(), "forbidden")
	if got := GetErrorCode(ctx); got != "forbidden" {
		t.Errorf("GetErrorCode = %q, want forbidden", got)
	}
}

func TestResponseWriter_CapturesStatusAndSize(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusTeapot) // ignored, first status wins
	n, err := rw.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if rw.statusCode != http.StatusCreated {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusCreated)
	}
	if n != 5 || rw.size != 5 {
		t.Errorf("size = %d (n=%d), want 5", rw.size, n)
	}
}

func TestLogging_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/raise_hand", nil)
	r = r.WithContext(SetIdentity(r.Context(), "bob"))
	r = r.WithContext(SetRoomName(r.Context(), "abcd-1234"))
	handler.ServeHTTP(httptest.NewRecorder(), r)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if entry["method"] != "POST" {
		t.Errorf("method = %v, want POST", entry["method"])
	}
	if entry["path"] != "/api/raise_hand" {
		t.Errorf("path = %v, want /api/raise_hand", entry["path"])
	}
	if entry["status"] != float64(200) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if entry["identity"] != "bob" {
		t.Errorf("identity = %v, want bob", entry["identity"])
	}
	if entry["room"] != "abcd-1234" {
		t.Errorf("room = %v, want abcd-1234", entry["room"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
}

func TestLogging_ErrorCodeOnFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Handlers push the error code back through the response writer
		// before writing the error body.
		UpdateResponseContext(w, SetErrorCode(r.Context(), "forbidden"))
		w.WriteHeader(http.StatusForbidden)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/invite_to_stage", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if entry["error_code"] != "forbidden" {
		t.Errorf("error_code = %v, want forbidden", entry["error_code"])
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN for 4xx", entry["level"])
	}
}

func TestLogging_ServerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR for 5xx", entry["level"])
	}
}

func TestNewLogger(t *testing.T) {
	if NewLogger("production") == nil {
		t.Error("NewLogger(production) returned nil")
	}
	if NewLogger("development") == nil {
		t.Error("NewLogger(development) returned nil")
	}
}
