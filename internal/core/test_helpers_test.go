package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/roomrelay/internal/proto"
	"github.com/vovakirdan/roomrelay/internal/store"
	"github.com/vovakirdan/roomrelay/internal/store/memory"
)

var errInjected = errors.New("injected failure")

// fakeTransport is an in-memory Transport driven by the test as the remote peer.
type fakeTransport struct {
	in     chan []byte
	out    chan []byte
	gone   chan struct{}
	closed chan struct{}

	hangOnce  sync.Once
	closeOnce sync.Once
	mu        sync.Mutex
	cause     error
	failWrite atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		gone:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case raw := <-f.in:
		return raw, nil
	case <-f.gone:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Write(ctx context.Context, payload []byte) error {
	if f.failWrite.Load() {
		return errInjected
	}
	select {
	case f.out <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Close(cause error) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.cause = cause
		f.mu.Unlock()
		close(f.closed)
	})
	return nil
}

func (f *fakeTransport) send(t *testing.T, v any) {
	t.Helper()
	raw, ok := v.([]byte)
	if !ok {
		var err error
		if raw, err = json.Marshal(v); err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	f.in <- raw
}

// hangup simulates the remote peer going away.
func (f *fakeTransport) hangup() {
	f.hangOnce.Do(func() { close(f.gone) })
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

type wireEvent struct {
	Type        string              `json:"type"`
	ID          int64               `json:"id"`
	RoomID      string              `json:"roomId"`
	SenderID    string              `json:"senderId"`
	SenderName  string              `json:"senderName"`
	Content     string              `json:"content"`
	MessageType string              `json:"messageType"`
	Timestamp   time.Time           `json:"timestamp"`
	Messages    []proto.HistoryItem `json:"messages"`
	Error       proto.Error         `json:"error"`
}

func mustEvent(t *testing.T, f *fakeTransport, kind string) wireEvent {
	t.Helper()

	select {
	case raw := <-f.out:
		var ev wireEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("decode outbound %q: %v", raw, err)
		}
		if ev.Type != kind {
			t.Fatalf("expected %q event, got %s", kind, raw)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("expected %q event not received", kind)
	}
	return wireEvent{}
}

func expectSilence(t *testing.T, f *fakeTransport, d time.Duration) {
	t.Helper()

	select {
	case raw := <-f.out:
		t.Fatalf("unexpected outbound payload: %s", raw)
	case <-time.After(d):
	}
}

// flakyStore fails selected operations on demand.
type flakyStore struct {
	*memory.Store
	failEnsure  atomic.Bool
	failInsert  atomic.Bool
	failHistory atomic.Bool
}

func (s *flakyStore) EnsureRoom(ctx context.Context, roomID, name, userID string) (*store.Room, error) {
	if s.failEnsure.Load() {
		return nil, errInjected
	}
	return s.Store.EnsureRoom(ctx, roomID, name, userID)
}

func (s *flakyStore) InsertMessage(ctx context.Context, msg *store.Message) error {
	if s.failInsert.Load() {
		return errInjected
	}
	return s.Store.InsertMessage(ctx, msg)
}

func (s *flakyStore) FindRecentMessages(ctx context.Context, roomID string, limit int) ([]*store.Message, error) {
	if s.failHistory.Load() {
		return nil, errInjected
	}
	return s.Store.FindRecentMessages(ctx, roomID, limit)
}

type harness struct {
	relay  *Relay
	engine *Engine
	table  *ConnTable
	store  *flakyStore
}

func newHarness(t *testing.T, cfg RelayConfig) *harness {
	t.Helper()

	st := &flakyStore{Store: memory.New()}
	table := NewConnTable()
	engine := NewEngine(table, st, nil)
	if cfg.NewID == nil {
		var n atomic.Int64
		cfg.NewID = func() string { return "c" + strconv.FormatInt(n.Add(1), 10) }
	}
	relay := NewRelay(cfg, table, NewRegistry(st), st, engine, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = relay.Shutdown(ctx)
	})
	return &harness{relay: relay, engine: engine, table: table, store: st}
}

// connect starts Serve on a fresh transport without sending anything.
func (h *harness) connect(t *testing.T) (*fakeTransport, <-chan error) {
	t.Helper()

	ft := newFakeTransport()
	errCh := make(chan error, 1)
	go func() { errCh <- h.relay.Serve(context.Background(), ft) }()
	return ft, errCh
}

// join connects, completes the handshake and consumes the history payload.
func (h *harness) join(t *testing.T, userID, roomID string) (*fakeTransport, <-chan error, wireEvent) {
	t.Helper()

	ft, errCh := h.connect(t)
	ft.send(t, proto.Handshake{UserID: userID, RoomID: roomID})
	history := mustEvent(t, ft, proto.TypeHistory)
	return ft, errCh, history
}

func chat(roomID, senderID, content string) proto.ChatMessage {
	return proto.ChatMessage{
		Type:       proto.TypeMessage,
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderID + "-name",
		Content:    content,
	}
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()

	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
