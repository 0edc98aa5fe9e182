package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/store"
)

// Subscriber observes every message after it has been fanned out.
// online holds the user ids that had a live session in the room at delivery time.
type Subscriber interface {
	Delivered(ctx context.Context, msg *store.Message, online map[string]struct{})
}

// Engine persists accepted messages and fans them out to the sessions of their room.
type Engine struct {
	table       *ConnTable
	messages    store.MessageStore
	stamp       *stamper
	responder   Responder
	subscribers []Subscriber
	log         *zerolog.Logger
}

// NewEngine builds a broadcast engine over the shared connection table.
func NewEngine(table *ConnTable, messages store.MessageStore, logger *zerolog.Logger) *Engine {
	return NewEngineWithClock(table, messages, logger, time.Now)
}

// NewEngineWithClock is NewEngine with an explicit time source for message timestamps.
func NewEngineWithClock(table *ConnTable, messages store.MessageStore, logger *zerolog.Logger, now func() time.Time) *Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Engine{
		table:    table,
		messages: messages,
		stamp:    newStamper(now),
		log:      logger,
	}
}

// SetResponder installs the post-broadcast responder. nil disables it.
// Must be called before the engine is in use.
func (e *Engine) SetResponder(r Responder) { e.responder = r }

// Subscribe adds an observer. Must be called before the engine is in use.
func (e *Engine) Subscribe(s Subscriber) { e.subscribers = append(e.subscribers, s) }

// Publish stamps and persists msg, broadcasts it, then lets the responder react to it.
// A persistence failure is returned before anything is delivered.
func (e *Engine) Publish(ctx context.Context, msg *store.Message) error {
	if err := e.persist(ctx, msg); err != nil {
		return err
	}
	e.Broadcast(ctx, msg)

	if e.responder != nil && msg.Kind != store.MessageKindSystem {
		if err := e.responder.Respond(ctx, msg, e.emit); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Warn().Err(err).Str("room_id", msg.RoomID).Msg("responder failed")
		}
	}
	return nil
}

func (e *Engine) persist(ctx context.Context, msg *store.Message) error {
	msg.Timestamp = e.stamp.stamp()
	if msg.Kind == "" {
		msg.Kind = store.MessageKindText
	}
	if err := e.messages.InsertMessage(ctx, msg); err != nil {
		return coreError(ErrCodePersistence, "save message", err)
	}
	return nil
}

// emit is handed to responders: synthetic messages go through the same persist-then-broadcast path.
func (e *Engine) emit(ctx context.Context, msg *store.Message) error {
	if err := e.persist(ctx, msg); err != nil {
		return err
	}
	e.Broadcast(ctx, msg)
	return nil
}

// Broadcast delivers msg to every open session in its room and returns how many accepted it.
// A failing recipient is evicted and does not affect the others.
func (e *Engine) Broadcast(ctx context.Context, msg *store.Message) int {
	payload, err := encodeMessage(msg)
	if err != nil {
		e.log.Error().Err(err).Str("room_id", msg.RoomID).Msg("encode message")
		return 0
	}

	delivered := 0
	e.table.ForEachInRoom(msg.RoomID, func(s *Session) {
		if s.Closed() {
			return
		}
		switch err := s.Deliver(payload); {
		case err == nil:
			delivered++
		case errors.Is(err, ErrSessionClosed):
		default:
			e.Evict(s, coreError(ErrCodeDelivery, "deliver", err))
		}
	})

	e.log.Debug().
		Str("room_id", msg.RoomID).
		Str("sender_id", msg.SenderID).
		Int("count", delivered).
		Msg("message broadcast")

	if len(e.subscribers) > 0 {
		online := e.table.OnlineUsers(msg.RoomID)
		for _, sub := range e.subscribers {
			sub.Delivered(ctx, msg, online)
		}
	}
	return delivered
}

// Evict removes s from the table (at most once) and ends the session.
func (e *Engine) Evict(s *Session, cause error) {
	if e.table.Remove(s.ID) != nil {
		e.log.Warn().Err(cause).
			Str("conn_id", s.ID).
			Str("user_id", s.UserID).
			Str("room_id", s.RoomID).
			Msg("session evicted")
	}
	s.Close()
}
