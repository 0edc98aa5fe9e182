package core

import (
	"context"
	"sync"
)

// Transport is the owned handle to one persistent connection.
// Read blocks for the next inbound frame; Write sends one frame.
// Close is called exactly once by the relay when the connection ends; cause is nil
// for an orderly close.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
	Close(cause error) error
}

// State is a connection's position in the handshake protocol.
type State int

const (
	StateConnecting State = iota
	StateAwaitingHandshake
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the live association of one connection with the user and room it joined.
// UserID and RoomID never change after creation.
type Session struct {
	ID     string
	UserID string
	RoomID string

	outbox chan []byte
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc
}

// NewSession creates a session with a bounded outbox. cancel, when set, is invoked on Close
// to stop the connection's tasks.
func NewSession(id, userID, roomID string, outboxSize int, cancel context.CancelFunc) *Session {
	if outboxSize <= 0 {
		outboxSize = 1
	}
	return &Session{
		ID:     id,
		UserID: userID,
		RoomID: roomID,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Deliver queues payload without blocking.
func (s *Session) Deliver(payload []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.outbox <- payload:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrOutboxFull
	}
}

// Close marks the session ended. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Outbox exposes queued payloads to the connection's writer.
func (s *Session) Outbox() <-chan []byte { return s.outbox }
