package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/proto"
	"github.com/vovakirdan/roomrelay/internal/store"
)

const maxIDAttempts = 5

// RelayConfig tunes the per-connection protocol.
type RelayConfig struct {
	HistoryLimit int
	OutboxSize   int
	NewID        func() string
}

// Relay runs the handshake protocol for each connection and routes its traffic.
type Relay struct {
	cfg      RelayConfig
	table    *ConnTable
	rooms    *Registry
	messages store.MessageStore
	engine   *Engine
	log      *zerolog.Logger

	life     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup
}

// NewRelay wires the relay to its collaborators. table must be the one the engine broadcasts over.
func NewRelay(cfg RelayConfig, table *ConnTable, rooms *Registry, messages store.MessageStore, engine *Engine, logger *zerolog.Logger) *Relay {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 64
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	life, shutdown := context.WithCancel(context.Background())
	return &Relay{
		cfg:      cfg,
		table:    table,
		rooms:    rooms,
		messages: messages,
		engine:   engine,
		log:      logger,
		life:     life,
		shutdown: shutdown,
	}
}

// Serve drives one connection from handshake to close. It owns t and always closes it.
// It returns nil when the session is ended from this side (eviction, shutdown, ctx),
// the read error when the peer goes away, and a handshake error for a rejected join.
func (r *Relay) Serve(ctx context.Context, t Transport) (err error) {
	r.wg.Add(1)
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.life, cancel)
	defer stop()

	c := &conn{id: r.cfg.NewID(), state: StateConnecting, t: t}
	c.state = StateAwaitingHandshake
	r.log.Debug().Str("conn_id", c.id).Msg("connection opened")

	defer func() {
		c.state = StateClosed
		if c.sess != nil {
			if r.table.Remove(c.sess.ID) != nil {
				r.log.Info().
					Str("conn_id", c.sess.ID).
					Str("user_id", c.sess.UserID).
					Str("room_id", c.sess.RoomID).
					Msg("client disconnected")
			}
			c.sess.Close()
			<-c.writerDone
		}
		if closeErr := t.Close(err); closeErr != nil {
			r.log.Debug().Err(closeErr).Str("conn_id", c.id).Msg("close transport")
		}
	}()

	for {
		raw, readErr := t.Read(ctx)
		if readErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return readErr
		}

		switch c.state {
		case StateAwaitingHandshake:
			if err := r.handshake(ctx, c, raw, cancel); err != nil {
				return err
			}
		case StateActive:
			r.handleChat(ctx, c.sess, raw)
		}
	}
}

type conn struct {
	id         string
	state      State
	t          Transport
	sess       *Session
	writerDone chan struct{}
}

// handshake processes the first payload. A returned error ends the connection;
// a persistence failure is reported to the client and leaves it awaiting a retry.
func (r *Relay) handshake(ctx context.Context, c *conn, raw []byte, cancel context.CancelFunc) error {
	hs, err := proto.DecodeHandshake(raw)
	if err != nil {
		r.log.Warn().Err(err).Str("conn_id", c.id).Msg("handshake rejected")
		return coreError(ErrCodeHandshake, "handshake", err)
	}

	if _, err := r.rooms.EnsureRoom(ctx, hs.RoomID, hs.UserID); err != nil {
		r.log.Error().Err(err).Str("conn_id", c.id).Str("room_id", hs.RoomID).Msg("join room")
		return r.reportDirect(ctx, c, ErrCodePersistence, "could not join room")
	}

	sess := NewSession(c.id, hs.UserID, hs.RoomID, r.cfg.OutboxSize, cancel)
	if err := r.insert(sess); err != nil {
		return err
	}
	c.id = sess.ID

	// Inserted before the fetch: a message racing the join may arrive both in history and live,
	// with the same id.
	history, err := r.messages.FindRecentMessages(ctx, hs.RoomID, r.cfg.HistoryLimit)
	if err != nil {
		r.table.Remove(sess.ID)
		r.log.Error().Err(err).Str("conn_id", c.id).Str("room_id", hs.RoomID).Msg("load history")
		return r.reportDirect(ctx, c, ErrCodePersistence, "could not load history")
	}
	payload, err := encodeHistory(history)
	if err != nil {
		r.table.Remove(sess.ID)
		return fmt.Errorf("encode history: %w", err)
	}
	// History goes out before the writer starts so it precedes any live message.
	if err := c.t.Write(ctx, payload); err != nil {
		r.table.Remove(sess.ID)
		return err
	}

	c.sess = sess
	c.state = StateActive
	c.writerDone = make(chan struct{})
	go r.writeLoop(ctx, c.t, sess, c.writerDone)

	r.log.Info().
		Str("conn_id", sess.ID).
		Str("user_id", sess.UserID).
		Str("room_id", sess.RoomID).
		Int("history", len(history)).
		Msg("client joined")
	return nil
}

func (r *Relay) insert(sess *Session) error {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		if r.table.Insert(sess.ID, sess) {
			return nil
		}
		r.log.Warn().Str("conn_id", sess.ID).Msg("connection id collision")
		sess.ID = r.cfg.NewID()
	}
	return errors.New("could not allocate a unique connection id")
}

func (r *Relay) reportDirect(ctx context.Context, c *conn, code, msg string) error {
	return c.t.Write(ctx, encodeError(code, msg))
}

func (r *Relay) writeLoop(ctx context.Context, t Transport, sess *Session, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case payload := <-sess.Outbox():
			if err := t.Write(ctx, payload); err != nil {
				if ctx.Err() == nil {
					r.engine.Evict(sess, coreError(ErrCodeDelivery, "write", err))
				}
				return
			}
		case <-sess.Done():
			return
		}
	}
}

func (r *Relay) handleChat(ctx context.Context, sess *Session, raw []byte) {
	cm, err := proto.DecodeChatMessage(raw)
	if err != nil {
		r.log.Warn().Err(coreError(ErrCodeInvalid, "decode message", err)).
			Str("conn_id", sess.ID).
			Str("user_id", sess.UserID).
			Msg("message dropped")
		return
	}
	if cm.RoomID != sess.RoomID {
		r.log.Debug().Str("conn_id", sess.ID).Str("payload_room_id", cm.RoomID).
			Msg("payload room differs from session room")
	}

	msg := &store.Message{
		RoomID:     sess.RoomID,
		SenderID:   cm.SenderID,
		SenderName: cm.SenderName,
		Content:    cm.Content,
		Kind:       store.MessageKindText,
	}
	if err := r.engine.Publish(ctx, msg); err != nil {
		r.log.Error().Err(err).Str("conn_id", sess.ID).Str("room_id", sess.RoomID).Msg("publish message")
		if errors.Is(err, ErrPersistence) {
			if derr := sess.Deliver(encodeError(ErrCodePersistence, "message not saved")); derr != nil && !errors.Is(derr, ErrSessionClosed) {
				r.engine.Evict(sess, coreError(ErrCodeDelivery, "deliver error", derr))
			}
		}
	}
}

// Shutdown ends every connection and waits for their tasks to return or ctx to expire.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.shutdown()
	for _, s := range r.table.Drain() {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
