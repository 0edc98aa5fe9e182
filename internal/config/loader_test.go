package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadWritesDefaultConfigWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay", "config.yaml")
	logger := zerolog.Nop()

	cfg, resolved, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	def := Default()
	if cfg.Addr != def.Addr || cfg.Relay.HistoryLimit != 50 || cfg.Mock.Delay != 500*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Mock.Enabled {
		t.Fatalf("mock responder must be disabled by default")
	}
}

func TestLoadPrecedenceFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
addr: ":9090"
store:
  driver: memory
relay:
  history_limit: 20
mock:
  enabled: false
  delay: 250ms
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("RELAY_MOCK_ENABLED", "true")
	t.Setenv("RELAY_RELAY_HISTORY_LIMIT", "30")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("addr = %q, want :9090", cfg.Addr)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("store.driver = %q, want memory", cfg.Store.Driver)
	}
	if !cfg.Mock.Enabled {
		t.Errorf("env RELAY_MOCK_ENABLED should override file")
	}
	if cfg.Mock.Delay != 250*time.Millisecond {
		t.Errorf("mock.delay = %v, want 250ms", cfg.Mock.Delay)
	}
	if cfg.Relay.HistoryLimit != 30 {
		t.Errorf("relay.history_limit = %d, want 30", cfg.Relay.HistoryLimit)
	}
	if cfg.Relay.OutboxSize != Default().Relay.OutboxSize {
		t.Errorf("unset keys should keep defaults, got outbox_size=%d", cfg.Relay.OutboxSize)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  driver: mongo\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := Load(nil, path); err == nil {
		t.Fatalf("expected validation error for unknown driver")
	}
}

func TestUpdateFromOverridesNonZero(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":7000", Relay: RelayConfig{HistoryLimit: 10}})

	if cfg.Addr != ":7000" || cfg.Relay.HistoryLimit != 10 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ShutdownTimeout != Default().ShutdownTimeout {
		t.Fatalf("zero values must not override")
	}
}
