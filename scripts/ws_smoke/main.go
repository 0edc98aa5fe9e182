package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/roomrelay/internal/proto"
)

type outbound struct {
	Type       string              `json:"type"`
	RoomID     string              `json:"roomId"`
	SenderID   string              `json:"senderId"`
	SenderName string              `json:"senderName"`
	Content    string              `json:"content"`
	Timestamp  time.Time           `json:"timestamp"`
	Messages   []proto.HistoryItem `json:"messages"`
	Error      proto.Error         `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "user id to join with")
	room := flag.String("room", "general", "room id")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, conn, proto.Handshake{UserID: *user, RoomID: *room}); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}

	var history outbound
	if err := wsjson.Read(ctx, conn, &history); err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if history.Type != proto.TypeHistory {
		return fmt.Errorf("expected history payload, got type=%s", history.Type)
	}
	fmt.Printf("History: %d messages\n", len(history.Messages))

	if err := wsjson.Write(ctx, conn, proto.ChatMessage{
		Type:       proto.TypeMessage,
		RoomID:     *room,
		SenderID:   *user,
		SenderName: *user,
		Content:    *text,
	}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch out.Type {
		case proto.TypeMessage:
			fmt.Printf("Message: room=%s sender=%s text=%q ts=%s\n", out.RoomID, out.SenderID, out.Content, out.Timestamp.Format(time.RFC3339Nano))
			if out.SenderID == *user && out.Content == *text {
				return nil
			}
		case proto.TypeError:
			return fmt.Errorf("server error %s: %s", out.Error.Code, out.Error.Msg)
		default:
			fmt.Printf("Received type=%s\n", out.Type)
		}
	}
}
