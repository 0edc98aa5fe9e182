package core

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/vovakirdan/roomrelay/internal/store"
)

// EmitFunc persists and broadcasts a responder-authored message.
type EmitFunc func(ctx context.Context, msg *store.Message) error

// Responder reacts to a broadcast message by emitting zero or more messages into the same room.
// It runs in the sending connection's task; ctx ends when that connection does.
type Responder interface {
	Respond(ctx context.Context, trigger *store.Message, emit EmitFunc) error
}

// BotSenderID is the sender id of every mock reply.
const BotSenderID = "bot"

// DefaultMockReplies is the canned reply pool.
var DefaultMockReplies = []string{
	"Sounds good!",
	"Got it, thanks.",
	"Let me think about that.",
	"Interesting, tell me more.",
	"I agree.",
	"Can you say that another way?",
	"Haha, nice one.",
	"See you later!",
}

// MockResponder answers every user message with one to three canned system messages.
type MockResponder struct {
	delay      time.Duration
	senderName string
	replies    []string
	intn       func(n int) int
}

// NewMockResponder builds a responder waiting delay between consecutive replies.
// An empty pool falls back to DefaultMockReplies.
func NewMockResponder(delay time.Duration, senderName string, replies []string) *MockResponder {
	if len(replies) == 0 {
		replies = DefaultMockReplies
	}
	if senderName == "" {
		senderName = "ChatBot"
	}
	return &MockResponder{
		delay:      delay,
		senderName: senderName,
		replies:    replies,
		intn:       rand.IntN,
	}
}

// replyCount draws 1 with probability one half, otherwise 2 or 3 with equal odds.
func (m *MockResponder) replyCount() int {
	if m.intn(2) == 0 {
		return 1
	}
	return 2 + m.intn(2)
}

func (m *MockResponder) Respond(ctx context.Context, trigger *store.Message, emit EmitFunc) error {
	n := m.replyCount()
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := sleep(ctx, m.delay); err != nil {
				return err
			}
		}
		msg := &store.Message{
			RoomID:     trigger.RoomID,
			SenderID:   BotSenderID,
			SenderName: m.senderName,
			Content:    m.replies[m.intn(len(m.replies))],
			Kind:       store.MessageKindSystem,
		}
		if err := emit(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
