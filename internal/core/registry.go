package core

import (
	"context"

	"github.com/vovakirdan/roomrelay/internal/store"
)

// RoomName derives the display name of a lazily created room.
func RoomName(roomID string) string {
	return "Room " + roomID
}

// Registry maps room ids to their persisted participant sets.
type Registry struct {
	rooms store.RoomStore
}

// NewRegistry builds a registry over a room store.
func NewRegistry(rooms store.RoomStore) *Registry {
	return &Registry{rooms: rooms}
}

// EnsureRoom creates roomID on first use and records userID as a participant.
// Repeated calls with the same arguments leave exactly one entry for userID.
func (r *Registry) EnsureRoom(ctx context.Context, roomID, userID string) (*store.Room, error) {
	room, err := r.rooms.EnsureRoom(ctx, roomID, RoomName(roomID), userID)
	if err != nil {
		return nil, coreError(ErrCodePersistence, "ensure room", err)
	}
	return room, nil
}

// Room looks up a room without modifying it.
func (r *Registry) Room(ctx context.Context, roomID string) (*store.Room, error) {
	return r.rooms.FindRoom(ctx, roomID)
}
