package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/store"
	"github.com/vovakirdan/roomrelay/internal/store/memory"
)

type fakePusher struct {
	mu      sync.Mutex
	pushed  map[string][]Notification
	invalid map[string]bool
	broken  map[string]bool
}

func newFakePusher() *fakePusher {
	return &fakePusher{
		pushed:  map[string][]Notification{},
		invalid: map[string]bool{},
		broken:  map[string]bool{},
	}
}

func (p *fakePusher) Push(_ context.Context, token string, n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.invalid[token]:
		return fmt.Errorf("%w: not registered", ErrInvalidToken)
	case p.broken[token]:
		return errors.New("unavailable")
	}
	p.pushed[token] = append(p.pushed[token], n)
	return nil
}

func (p *fakePusher) count(token string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushed[token])
}

func newTestService(t *testing.T) (*Service, *memory.Store, *fakePusher) {
	t.Helper()
	st := memory.New()
	pusher := newFakePusher()
	logger := zerolog.Nop()
	return NewService(st, pusher, &logger), st, pusher
}

func TestRegisterDeviceRequiresFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.RegisterDevice(ctx, "", "tok"); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("missing user: %v", err)
	}
	if err := svc.RegisterDevice(ctx, "u1", ""); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("missing token: %v", err)
	}
}

func TestRegisterDeviceMovesTokenBetweenUsers(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.RegisterDevice(ctx, "u1", "tok"); err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if err := svc.RegisterDevice(ctx, "u2", "tok"); err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if devs, _ := st.ListDevices(ctx, "u1"); len(devs) != 0 {
		t.Fatalf("u1 still owns %d devices", len(devs))
	}
	if devs, _ := st.ListDevices(ctx, "u2"); len(devs) != 1 {
		t.Fatalf("u2 owns %d devices, want 1", len(devs))
	}
}

func TestSendNotificationRemovesInvalidTokens(t *testing.T) {
	svc, st, pusher := newTestService(t)
	ctx := context.Background()
	for _, tok := range []string{"good", "stale", "flaky"} {
		if err := svc.RegisterDevice(ctx, "u1", tok); err != nil {
			t.Fatalf("RegisterDevice: %v", err)
		}
	}
	pusher.invalid["stale"] = true
	pusher.broken["flaky"] = true

	sent, err := svc.SendNotification(ctx, "u1", Message{SenderName: "Alice", Content: "hi"})
	if err != nil {
		t.Fatalf("SendNotification: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}

	devs, _ := st.ListDevices(ctx, "u1")
	tokens := map[string]bool{}
	for _, d := range devs {
		tokens[d.Token] = true
	}
	if tokens["stale"] || !tokens["good"] || !tokens["flaky"] {
		t.Fatalf("remaining tokens = %v", tokens)
	}

	n := pusher.pushed["good"][0]
	if n.Title != "Alice" || n.Body != "hi" || n.Data["messageFrom"] != "Alice" {
		t.Fatalf("notification = %+v", n)
	}
}

func TestSendNotificationWithoutDevices(t *testing.T) {
	svc, _, _ := newTestService(t)
	sent, err := svc.SendNotification(context.Background(), "nobody", Message{Content: "x"})
	if err != nil || sent != 0 {
		t.Fatalf("sent=%d err=%v", sent, err)
	}
}

func TestOfflineNotifierSkipsOnlineAndSender(t *testing.T) {
	svc, st, pusher := newTestService(t)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob", "carol"} {
		if _, err := st.EnsureRoom(ctx, "r1", "Room r1", u); err != nil {
			t.Fatalf("EnsureRoom: %v", err)
		}
		if err := svc.RegisterDevice(ctx, u, "tok-"+u); err != nil {
			t.Fatalf("RegisterDevice: %v", err)
		}
	}

	logger := zerolog.Nop()
	notifier := NewOfflineNotifier(st, svc, &logger)
	online := map[string]struct{}{"alice": {}, "bob": {}}
	notifier.Delivered(ctx, &store.Message{RoomID: "r1", SenderID: "alice", SenderName: "Alice", Content: "hey"}, online)
	notifier.Delivered(ctx, &store.Message{RoomID: "r1", SenderID: "bot", Kind: store.MessageKindSystem, Content: "auto"}, online)
	notifier.Wait()

	if pusher.count("tok-carol") != 1 {
		t.Fatalf("carol got %d pushes, want 1", pusher.count("tok-carol"))
	}
	if pusher.count("tok-alice") != 0 || pusher.count("tok-bob") != 0 {
		t.Fatal("online users were notified")
	}
}

func TestOfflineNotifierUnknownRoom(t *testing.T) {
	svc, st, pusher := newTestService(t)
	logger := zerolog.Nop()
	notifier := NewOfflineNotifier(st, svc, &logger)

	notifier.Delivered(context.Background(), &store.Message{RoomID: "ghost", SenderID: "a", Content: "x"}, nil)
	notifier.Wait()

	if len(pusher.pushed) != 0 {
		t.Fatalf("pushes for unknown room: %v", pusher.pushed)
	}
}

type recordingSender struct {
	msgs []*messaging.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg *messaging.Message) (string, error) {
	s.msgs = append(s.msgs, msg)
	return "projects/p/messages/1", s.err
}

func TestFCMPusherBuildsMessage(t *testing.T) {
	sender := &recordingSender{}
	pusher := NewFCMPusherWithClient(sender)

	err := pusher.Push(context.Background(), "tok", Notification{Title: "Alice", Body: "hi", Data: map[string]string{"messageFrom": "Alice"}})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	msg := sender.msgs[0]
	if msg.Token != "tok" || msg.Notification.Title != "Alice" || msg.Notification.Body != "hi" {
		t.Fatalf("message = %+v", msg)
	}
	if !msg.APNS.Payload.Aps.MutableContent || msg.APNS.Payload.Aps.Sound != "default" {
		t.Fatalf("apns payload = %+v", msg.APNS.Payload.Aps)
	}
}

func TestFCMPusherWrapsTransportErrors(t *testing.T) {
	pusher := NewFCMPusherWithClient(&recordingSender{err: errors.New("network down")})

	err := pusher.Push(context.Background(), "tok", Notification{})
	if err == nil || errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Push error = %v", err)
	}
}
