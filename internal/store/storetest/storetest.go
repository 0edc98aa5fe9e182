// Package storetest holds behaviour checks shared by every store.Store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/roomrelay/internal/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("FindRoomMissing", func(t *testing.T) { testFindRoomMissing(t, newStore(t)) })
	t.Run("EnsureRoomIdempotent", func(t *testing.T) { testEnsureRoomIdempotent(t, newStore(t)) })
	t.Run("EnsureRoomConcurrentJoiners", func(t *testing.T) { testEnsureRoomConcurrent(t, newStore(t)) })
	t.Run("SaveRoomLastWriteWins", func(t *testing.T) { testSaveRoom(t, newStore(t)) })
	t.Run("RecentMessagesDescending", func(t *testing.T) { testRecentMessagesOrder(t, newStore(t)) })
	t.Run("RecentMessagesCap", func(t *testing.T) { testRecentMessagesCap(t, newStore(t)) })
	t.Run("RecentMessagesNonPositiveLimit", func(t *testing.T) { testRecentMessagesNonPositiveLimit(t, newStore(t)) })
	t.Run("MessagesPerRoom", func(t *testing.T) { testMessagesIsolated(t, newStore(t)) })
	t.Run("Devices", func(t *testing.T) { testDevices(t, newStore(t)) })
}

func testFindRoomMissing(t *testing.T, s store.Store) {
	defer s.Close()

	_, err := s.FindRoom(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindRoom(missing) error = %v, want ErrNotFound", err)
	}
}

func testEnsureRoomIdempotent(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		room, err := s.EnsureRoom(ctx, "r1", "Room r1", "alice")
		if err != nil {
			t.Fatalf("EnsureRoom #%d: %v", i, err)
		}
		if len(room.Participants) != 1 || room.Participants[0] != "alice" {
			t.Fatalf("participants after #%d = %v, want [alice]", i, room.Participants)
		}
	}

	room, err := s.EnsureRoom(ctx, "r1", "ignored", "bob")
	if err != nil {
		t.Fatalf("EnsureRoom bob: %v", err)
	}
	if room.Name != "Room r1" {
		t.Fatalf("name = %q, want it fixed at creation", room.Name)
	}
	if len(room.Participants) != 2 || room.Participants[0] != "alice" || room.Participants[1] != "bob" {
		t.Fatalf("participants = %v, want [alice bob]", room.Participants)
	}

	found, err := s.FindRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("FindRoom: %v", err)
	}
	if found.CreatedAt.IsZero() || found.UpdatedAt.Before(found.CreatedAt) {
		t.Fatalf("bad timestamps: created=%v updated=%v", found.CreatedAt, found.UpdatedAt)
	}
}

func testEnsureRoomConcurrent(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	const joiners = 20
	var wg sync.WaitGroup
	errs := make(chan error, joiners*2)
	for i := 0; i < joiners; i++ {
		user := fmt.Sprintf("user-%02d", i)
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.EnsureRoom(ctx, "busy", "Room busy", user); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("EnsureRoom: %v", err)
	}

	room, err := s.FindRoom(ctx, "busy")
	if err != nil {
		t.Fatalf("FindRoom: %v", err)
	}
	if len(room.Participants) != joiners {
		t.Fatalf("participants = %d (%v), want %d distinct", len(room.Participants), room.Participants, joiners)
	}
	seen := map[string]bool{}
	for _, p := range room.Participants {
		if seen[p] {
			t.Fatalf("duplicate participant %q", p)
		}
		seen[p] = true
	}
}

func testSaveRoom(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	if err := s.SaveRoom(ctx, &store.Room{RoomID: "r2", Name: "Room r2", Participants: []string{"a", "b"}}); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}
	if err := s.SaveRoom(ctx, &store.Room{RoomID: "r2", Name: "Room r2", Participants: []string{"c"}}); err != nil {
		t.Fatalf("SaveRoom overwrite: %v", err)
	}
	room, err := s.FindRoom(ctx, "r2")
	if err != nil {
		t.Fatalf("FindRoom: %v", err)
	}
	if len(room.Participants) != 1 || room.Participants[0] != "c" {
		t.Fatalf("participants = %v, want [c]", room.Participants)
	}
}

func insertSeries(t *testing.T, s store.Store, roomID string, n int) []*store.Message {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*store.Message, 0, n)
	for i := 1; i <= n; i++ {
		msg := &store.Message{
			RoomID:     roomID,
			SenderID:   "alice",
			SenderName: "Alice",
			Content:    fmt.Sprintf("m%d", i),
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		}
		if err := s.InsertMessage(context.Background(), msg); err != nil {
			t.Fatalf("InsertMessage %d: %v", i, err)
		}
		if msg.ID == 0 {
			t.Fatalf("InsertMessage did not assign an id")
		}
		out = append(out, msg)
	}
	return out
}

func testRecentMessagesOrder(t *testing.T, s store.Store) {
	defer s.Close()
	if _, err := s.EnsureRoom(context.Background(), "hist", "Room hist", "alice"); err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}
	insertSeries(t, s, "hist", 50)

	got, err := s.FindRecentMessages(context.Background(), "hist", 50)
	if err != nil {
		t.Fatalf("FindRecentMessages: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("len = %d, want 50", len(got))
	}
	for i, m := range got {
		want := fmt.Sprintf("m%d", 50-i)
		if m.Content != want {
			t.Fatalf("position %d = %q, want %q", i, m.Content, want)
		}
		if m.Kind != store.MessageKindText {
			t.Fatalf("kind = %q, want text default", m.Kind)
		}
	}
}

func testRecentMessagesCap(t *testing.T, s store.Store) {
	defer s.Close()
	if _, err := s.EnsureRoom(context.Background(), "cap", "Room cap", "alice"); err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}
	insertSeries(t, s, "cap", 60)

	got, err := s.FindRecentMessages(context.Background(), "cap", 50)
	if err != nil {
		t.Fatalf("FindRecentMessages: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("len = %d, want 50", len(got))
	}
	if got[0].Content != "m60" || got[49].Content != "m11" {
		t.Fatalf("window = %q..%q, want m60..m11", got[0].Content, got[49].Content)
	}
}

func testRecentMessagesNonPositiveLimit(t *testing.T, s store.Store) {
	defer s.Close()
	if _, err := s.EnsureRoom(context.Background(), "zero", "Room zero", "alice"); err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}
	insertSeries(t, s, "zero", 3)

	for _, limit := range []int{0, -1} {
		got, err := s.FindRecentMessages(context.Background(), "zero", limit)
		if err != nil {
			t.Fatalf("FindRecentMessages(%d): %v", limit, err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("FindRecentMessages(%d) = %v, want empty slice", limit, got)
		}
	}
}

func testMessagesIsolated(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	for _, room := range []string{"A", "B"} {
		if _, err := s.EnsureRoom(ctx, room, "Room "+room, "alice"); err != nil {
			t.Fatalf("EnsureRoom: %v", err)
		}
	}
	insertSeries(t, s, "A", 3)

	got, err := s.FindRecentMessages(ctx, "B", 50)
	if err != nil {
		t.Fatalf("FindRecentMessages: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("room B sees %d messages from room A", len(got))
	}
}

func testDevices(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	if _, err := s.UpsertDevice(ctx, "alice", "tok-1"); err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}
	if _, err := s.UpsertDevice(ctx, "alice", "tok-2"); err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}
	dev, err := s.UpsertDevice(ctx, "bob", "tok-2")
	if err != nil {
		t.Fatalf("UpsertDevice reassign: %v", err)
	}
	if dev.UserID != "bob" {
		t.Fatalf("reassigned device user = %q, want bob", dev.UserID)
	}

	alice, err := s.ListDevices(ctx, "alice")
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(alice) != 1 || alice[0].Token != "tok-1" {
		t.Fatalf("alice devices = %+v, want [tok-1]", alice)
	}

	if err := s.DeleteDevice(ctx, "tok-1"); err != nil {
		t.Fatalf("DeleteDevice: %v", err)
	}
	if err := s.DeleteDevice(ctx, "tok-unknown"); err != nil {
		t.Fatalf("DeleteDevice(missing) should be a no-op, got %v", err)
	}
	alice, err = s.ListDevices(ctx, "alice")
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(alice) != 0 {
		t.Fatalf("alice devices after delete = %+v", alice)
	}
}
