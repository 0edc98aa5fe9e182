package http

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/roomrelay/internal/config"
	"github.com/vovakirdan/roomrelay/internal/proto"
)

type outbound struct {
	Type     string              `json:"type"`
	RoomID   string              `json:"roomId"`
	SenderID string              `json:"senderId"`
	Content  string              `json:"content"`
	Messages []proto.HistoryItem `json:"messages"`
	Error    proto.Error         `json:"error"`
}

func dialAndJoin(t *testing.T, ctx context.Context, env *testEnv, userID, roomID string) (*websocket.Conn, outbound) {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, env.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	if err := wsjson.Write(ctx, conn, proto.Handshake{UserID: userID, RoomID: roomID}); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	history := readOutbound(t, ctx, conn)
	if history.Type != proto.TypeHistory {
		t.Fatalf("first payload type = %q, want history", history.Type)
	}
	return conn, history
}

func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn) outbound {
	t.Helper()

	var out outbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, nil, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Timestamp.IsZero() {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestWebSocketJoinAndMessage(t *testing.T) {
	env := startTestServer(t, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA, history := dialAndJoin(t, ctx, env, "alice", "general")
	if len(history.Messages) != 0 {
		t.Fatalf("fresh room history = %v", history.Messages)
	}
	connB, _ := dialAndJoin(t, ctx, env, "bob", "general")

	msg := proto.ChatMessage{Type: proto.TypeMessage, RoomID: "general", SenderID: "alice", SenderName: "Alice", Content: "hi there"}
	if err := wsjson.Write(ctx, connA, msg); err != nil {
		t.Fatalf("write message: %v", err)
	}

	for _, conn := range []*websocket.Conn{connA, connB} {
		ev := readOutbound(t, ctx, conn)
		if ev.Type != proto.TypeMessage || ev.SenderID != "alice" || ev.Content != "hi there" || ev.RoomID != "general" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}

	_, history = dialAndJoin(t, ctx, env, "carol", "general")
	if len(history.Messages) != 1 || history.Messages[0].Content != "hi there" {
		t.Fatalf("late joiner history = %+v", history.Messages)
	}
}

func TestWebSocketRejectsBadHandshake(t *testing.T) {
	env := startTestServer(t, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, env.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, map[string]string{"userId": "alice"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err = conn.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusPolicyViolation {
		t.Fatalf("close status = %v (err=%v), want policy violation", status, err)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	env := startTestServer(t, nil, func(cfg *config.Config) {
		cfg.Relay.MessagesPerMinute = 2
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := dialAndJoin(t, ctx, env, "alice", "r1")
	send := func(text string) {
		msg := proto.ChatMessage{Type: proto.TypeMessage, RoomID: "r1", SenderID: "alice", SenderName: "A", Content: text}
		if err := wsjson.Write(ctx, conn, msg); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	// The handshake counts toward the limit.
	send("one")
	if ev := readOutbound(t, ctx, conn); ev.Type != proto.TypeMessage || ev.Content != "one" {
		t.Fatalf("first event = %+v", ev)
	}
	send("two")
	if ev := readOutbound(t, ctx, conn); ev.Type != proto.TypeError || ev.Error.Code != "rate_limited" {
		t.Fatalf("second event = %+v", ev)
	}
}

func TestWebSocketReadLimitClosesConnection(t *testing.T) {
	env := startTestServer(t, nil, func(cfg *config.Config) {
		cfg.Relay.MaxMessageBytes = 64
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := dialAndJoin(t, ctx, env, "alice", "r1")
	big := make([]byte, 256)
	for i := range big {
		big[i] = 'x'
	}
	msg := proto.ChatMessage{Type: proto.TypeMessage, RoomID: "r1", SenderID: "alice", SenderName: "A", Content: string(big)}
	_ = wsjson.Write(ctx, conn, msg)

	if _, _, err := conn.Read(ctx); websocket.CloseStatus(err) != websocket.StatusMessageTooBig {
		t.Fatalf("read after oversized frame: %v", err)
	}
}
