package audit

import (
	"testing"
)

func TestInMemoryRepository_Log(t *testing.T) {
	repo := NewInMemoryRepository()

	rec, err := repo.Log(Entry{
		Identity:  "alice",
		RoomName:  "abcd-1234",
		Action:    ActionCreateStream,
		Outcome:   OutcomeSuccess,
		RequestID: "req-1",
		IPAddress: "203.0.113.7",
	})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	if rec.ID == "" {
		t.Error("Log() returned record with empty ID")
	}
	if rec.Identity != "alice" {
		t.Errorf("Identity = %q, want alice", rec.Identity)
	}
	if rec.RoomName != "abcd-1234" {
		t.Errorf("RoomName = %q, want abcd-1234", rec.RoomName)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestInMemoryRepository_QueryByRoom(t *testing.T) {
	repo := NewInMemoryRepository()

	entries := []Entry{
		{Identity: "alice", RoomName: "room-a", Action: ActionCreateStream, Outcome: OutcomeSuccess},
		{Identity: "bob", RoomName: "room-a", Action: ActionJoinStream, Outcome: OutcomeSuccess},
		{Identity: "carol", RoomName: "room-b", Action: ActionJoinStream, Outcome: OutcomeSuccess},
		{Identity: "bob", RoomName: "room-a", Action: ActionRaiseHand, Outcome: OutcomeSuccess},
	}
	for _, e := range entries {
		if _, err := repo.Log(e); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	results, err := repo.QueryByRoom("room-a", 0)
	if err != nil {
		t.Fatalf("QueryByRoom() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("QueryByRoom() returned %d records, want 3", len(results))
	}

	// Newest first
	if results[0].Action != ActionRaiseHand {
		t.Errorf("results[0].Action = %q, want %q", results[0].Action, ActionRaiseHand)
	}
	if results[2].Action != ActionCreateStream {
		t.Errorf("results[2].Action = %q, want %q", results[2].Action, ActionCreateStream)
	}

	limited, err := repo.QueryByRoom("room-a", 2)
	if err != nil {
		t.Fatalf("QueryByRoom() error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("QueryByRoom() with limit 2 returned %d records", len(limited))
	}
}

func TestInMemoryRepository_QueryByIdentity(t *testing.T) {
	repo := NewInMemoryRepository()

	entries := []Entry{
		{Identity: "alice", RoomName: "room-a", Action: ActionCreateStream, Outcome: OutcomeSuccess},
		{Identity: "bob", RoomName: "room-a", Action: ActionJoinStream, Outcome: OutcomeSuccess},
		{Identity: "alice", RoomName: "room-a", Action: ActionInviteToStage, Target: "bob", Outcome: OutcomeSuccess},
	}
	for _, e := range entries {
		if _, err := repo.Log(e); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	results, err := repo.QueryByIdentity("alice", 0)
	if err != nil {
		t.Fatalf("QueryByIdentity() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("QueryByIdentity() returned %d records, want 2", len(results))
	}
	if results[0].Target != "bob" {
		t.Errorf("results[0].Target = %q, want bob", results[0].Target)
	}
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()

	rec, err := repo.Log(Entry{Identity: "alice", RoomName: "room-a", Action: ActionCreateStream, Outcome: OutcomeSuccess})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	// Mutating the returned record must not affect stored data.
	rec.Identity = "mallory"

	results, err := repo.QueryByIdentity("alice", 0)
	if err != nil {
		t.Fatalf("QueryByIdentity() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("QueryByIdentity() returned %d records, want 1", len(results))
	}
}
