package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/vovakirdan/roomrelay/internal/store"
	"github.com/vovakirdan/roomrelay/internal/store/storetest"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestInsertMessageBumpsRoomActivity(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	room, err := s.EnsureRoom(ctx, "lobby", "Room lobby", "alice")
	if err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}

	msg := &store.Message{RoomID: "lobby", SenderID: "alice", SenderName: "Alice", Content: "hi"}
	if err := s.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if msg.Timestamp.IsZero() {
		t.Fatalf("InsertMessage should assign a timestamp when missing")
	}

	after, err := s.FindRoom(ctx, "lobby")
	if err != nil {
		t.Fatalf("FindRoom: %v", err)
	}
	if after.UpdatedAt.Before(room.UpdatedAt) {
		t.Fatalf("updated_at went backwards: %v -> %v", room.UpdatedAt, after.UpdatedAt)
	}
	if !after.UpdatedAt.Equal(msg.Timestamp) {
		t.Fatalf("updated_at = %v, want message timestamp %v", after.UpdatedAt, msg.Timestamp)
	}
}

func TestNewWithSetupFailure(t *testing.T) {
	_, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(`CREATE TABLE broken (`)
		return err
	})
	if err == nil {
		t.Fatalf("expected setup error")
	}
}
