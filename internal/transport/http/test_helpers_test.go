package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/auth"
	"github.com/vovakirdan/roomrelay/internal/config"
	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/notify"
	"github.com/vovakirdan/roomrelay/internal/store/memory"
	"github.com/vovakirdan/roomrelay/internal/utils"
)

type recordingPusher struct {
	mu     sync.Mutex
	tokens []string
}

func (p *recordingPusher) Push(_ context.Context, token string, _ notify.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, token)
	return nil
}

type testEnv struct {
	ts     *httptest.Server
	store  *memory.Store
	relay  *core.Relay
	pusher *recordingPusher
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

// startTestServer wires the full stack over the memory store.
func startTestServer(t *testing.T, serviceAuth *auth.JWTConfig, tweak func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Suggestions.Delay = 0
	if tweak != nil {
		tweak(&cfg)
	}

	logger := zerolog.Nop()
	st := memory.New()
	newID, err := utils.NewIDGenerator(cfg.Relay.ConnID, cfg.Relay.ConnIDLength)
	if err != nil {
		t.Fatalf("id generator: %v", err)
	}

	table := core.NewConnTable()
	engine := core.NewEngine(table, st, &logger)
	registry := core.NewRegistry(st)
	relay := core.NewRelay(core.RelayConfig{
		HistoryLimit: cfg.Relay.HistoryLimit,
		OutboxSize:   cfg.Relay.OutboxSize,
		NewID:        newID,
	}, table, registry, st, engine, &logger)

	pusher := &recordingPusher{}
	server := NewServer(Deps{
		Relay:       relay,
		Rooms:       registry,
		Messages:    st,
		Notify:      notify.NewService(st, pusher, &logger),
		ServiceAuth: serviceAuth,
	}, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = relay.Shutdown(ctx)
	})

	return &testEnv{ts: ts, store: st, relay: relay, pusher: pusher}
}
