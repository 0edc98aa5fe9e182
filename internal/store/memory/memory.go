// Package memory is an in-process store.Store used by tests and the "memory" driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vovakirdan/roomrelay/internal/store"
)

// Store keeps rooms, messages and devices in maps guarded by one mutex.
type Store struct {
	mu       sync.Mutex
	rooms    map[string]*store.Room
	messages map[string][]*store.Message // roomID -> insertion order
	devices  map[string]*store.Device    // token -> device
	nextID   int64
	now      func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		rooms:    make(map[string]*store.Room),
		messages: make(map[string][]*store.Message),
		devices:  make(map[string]*store.Device),
		now:      time.Now,
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func copyRoom(r *store.Room) *store.Room {
	out := *r
	out.Participants = append([]string{}, r.Participants...)
	return &out
}

// FindRoom returns a copy of the room or store.ErrNotFound.
func (s *Store) FindRoom(_ context.Context, roomID string) (*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", roomID, store.ErrNotFound)
	}
	return copyRoom(room), nil
}

// SaveRoom replaces the stored room.
func (s *Store) SaveRoom(_ context.Context, room *store.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now
	s.rooms[room.RoomID] = copyRoom(room)
	return nil
}

// EnsureRoom is an atomic find-or-create plus participant append.
func (s *Store) EnsureRoom(_ context.Context, roomID, name, userID string) (*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	room, ok := s.rooms[roomID]
	if !ok {
		room = &store.Room{RoomID: roomID, Name: name, CreatedAt: now, UpdatedAt: now}
		s.rooms[roomID] = room
	}
	if !room.HasParticipant(userID) {
		room.Participants = append(room.Participants, userID)
	}
	room.UpdatedAt = now
	return copyRoom(room), nil
}

// InsertMessage appends msg to its room.
func (s *Store) InsertMessage(_ context.Context, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}
	if msg.Kind == "" {
		msg.Kind = store.MessageKindText
	}
	s.nextID++
	msg.ID = s.nextID

	stored := *msg
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], &stored)
	if room, ok := s.rooms[msg.RoomID]; ok {
		room.UpdatedAt = msg.Timestamp
	}
	return nil
}

// FindRecentMessages returns up to limit messages, newest first.
func (s *Store) FindRecentMessages(_ context.Context, roomID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		return []*store.Message{}, nil
	}
	s.mu.Lock()
	all := append([]*store.Message{}, s.messages[roomID]...)
	s.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].ID > all[j].ID
		}
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	if len(all) > limit {
		all = all[:limit]
	}

	out := make([]*store.Message, 0, len(all))
	for _, m := range all {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

// UpsertDevice binds token to userID.
func (s *Store) UpsertDevice(_ context.Context, userID, token string) (*store.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	dev, ok := s.devices[token]
	if !ok {
		dev = &store.Device{Token: token, CreatedAt: now}
		s.devices[token] = dev
	}
	dev.UserID = userID
	dev.UpdatedAt = now

	cp := *dev
	return &cp, nil
}

// ListDevices returns the user's devices ordered by creation.
func (s *Store) ListDevices(_ context.Context, userID string) ([]*store.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*store.Device
	for _, dev := range s.devices {
		if dev.UserID == userID {
			cp := *dev
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Token < out[j].Token
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteDevice removes token.
func (s *Store) DeleteDevice(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.devices, token)
	return nil
}

var _ store.Store = (*Store)(nil)
