package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Room represents a chat room and the users that ever joined it.
type Room struct {
	RoomID       string
	Name         string
	Participants []string // join order, no duplicates
	CreatedAt    time.Time
	UpdatedAt    time.Time // last activity: join or message
}

// HasParticipant reports whether userID is in the participant set.
func (r *Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// MessageKind distinguishes user text from system-authored messages.
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindSystem MessageKind = "system"
)

// Message represents a persisted chat message.
type Message struct {
	ID         int64
	RoomID     string
	SenderID   string
	SenderName string
	Content    string
	Kind       MessageKind
	Timestamp  time.Time
}

// Device is a push-notification target registered by a user.
type Device struct {
	UserID    string
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomStore handles room persistence.
type RoomStore interface {
	// FindRoom returns the room or ErrNotFound.
	FindRoom(ctx context.Context, roomID string) (*Room, error)

	// SaveRoom writes the whole room record. Last write wins on the participant set.
	SaveRoom(ctx context.Context, room *Room) error

	// EnsureRoom creates the room named name if missing and appends userID to its
	// participants if absent, as one atomic step. Returns the resulting room.
	EnsureRoom(ctx context.Context, roomID, name, userID string) (*Room, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// InsertMessage persists msg, assigning ID and, when zero, Timestamp.
	InsertMessage(ctx context.Context, msg *Message) error

	// FindRecentMessages returns up to limit messages of a room, newest first.
	// A limit of zero or less yields an empty, non-nil slice.
	FindRecentMessages(ctx context.Context, roomID string, limit int) ([]*Message, error)
}

// DeviceStore handles push device registrations.
type DeviceStore interface {
	// UpsertDevice binds token to userID, creating or reassigning the registration.
	UpsertDevice(ctx context.Context, userID, token string) (*Device, error)

	// ListDevices returns every device registered to userID.
	ListDevices(ctx context.Context, userID string) ([]*Device, error)

	// DeleteDevice removes a registration by token. Missing tokens are not an error.
	DeleteDevice(ctx context.Context, token string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore
	MessageStore
	DeviceStore

	// Close closes the underlying connection.
	Close() error
}
