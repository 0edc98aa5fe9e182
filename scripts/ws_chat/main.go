package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/roomrelay/internal/proto"
)

// outbound is the union of every server payload.
type outbound struct {
	Type        string              `json:"type"`
	RoomID      string              `json:"roomId"`
	SenderName  string              `json:"senderName"`
	Content     string              `json:"content"`
	Timestamp   time.Time           `json:"timestamp"`
	MessageType string              `json:"messageType"`
	Messages    []proto.HistoryItem `json:"messages"`
	Error       proto.Error         `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "user id")
	name := flag.String("name", "", "display name (defaults to user id)")
	room := flag.String("room", "general", "room to join")
	flag.Parse()
	if *name == "" {
		*name = *user
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, conn, proto.Handshake{UserID: *user, RoomID: *room}); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}

	fmt.Printf("Connected to %s as %s in room %s\n", *addr, *user, *room)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, proto.ChatMessage{
		Type:       proto.TypeMessage,
		RoomID:     *room,
		SenderID:   *user,
		SenderName: *name,
	})

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch out.Type {
		case proto.TypeHistory:
			fmt.Printf("-- %d earlier messages --\n", len(out.Messages))
			for i := len(out.Messages) - 1; i >= 0; i-- {
				m := out.Messages[i]
				fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format(time.Kitchen), m.SenderName, m.Content)
			}
			fmt.Println("--")
		case proto.TypeMessage:
			prefix := ""
			if out.MessageType == "system" {
				prefix = "* "
			}
			fmt.Printf("[%s] %s%s: %s\n", out.Timestamp.Local().Format(time.Kitchen), prefix, out.SenderName, out.Content)
		case proto.TypeError:
			fmt.Printf("error %s: %s\n", out.Error.Code, out.Error.Msg)
		default:
			fmt.Printf("type=%s\n", out.Type)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, template proto.ChatMessage) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			msg := template
			msg.Content = text
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
