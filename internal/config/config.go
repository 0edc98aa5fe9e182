package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	Store       StoreConfig       `mapstructure:"store" yaml:"store"`
	Relay       RelayConfig       `mapstructure:"relay" yaml:"relay"`
	Mock        MockConfig        `mapstructure:"mock" yaml:"mock"`
	Notify      NotifyConfig      `mapstructure:"notify" yaml:"notify"`
	Suggestions SuggestionsConfig `mapstructure:"suggestions" yaml:"suggestions"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver"` // sqlite, redis or memory
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
}

// RelayConfig tunes the connection/room relay.
type RelayConfig struct {
	HistoryLimit      int           `mapstructure:"history_limit" yaml:"history_limit"`
	OutboxSize        int           `mapstructure:"outbox_size" yaml:"outbox_size"`
	ConnID            string        `mapstructure:"conn_id" yaml:"conn_id"` // shortcode or uuid
	ConnIDLength      int           `mapstructure:"conn_id_length" yaml:"conn_id_length"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MessagesPerMinute int           `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// MockConfig toggles the synthetic bot responder.
type MockConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Delay      time.Duration `mapstructure:"delay" yaml:"delay"`
	SenderName string        `mapstructure:"sender_name" yaml:"sender_name"`
}

// NotifyConfig configures push notifications.
type NotifyConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Driver          string `mapstructure:"driver" yaml:"driver"` // log or fcm
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	Offline         bool   `mapstructure:"offline" yaml:"offline"`
	ServiceSecret   string `mapstructure:"service_secret" yaml:"service_secret"`
	Issuer          string `mapstructure:"issuer" yaml:"issuer"`
}

// SuggestionsConfig configures the canned reply suggestion endpoint.
type SuggestionsConfig struct {
	Delay time.Duration `mapstructure:"delay" yaml:"delay"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		Store: StoreConfig{
			Driver:      "sqlite",
			SQLitePath:  "relay.db",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "relay:",
		},
		Relay: RelayConfig{
			HistoryLimit:    50,
			OutboxSize:      64,
			ConnID:          "shortcode",
			ConnIDLength:    8,
			MaxMessageBytes: 32 << 10,
			WriteTimeout:    10 * time.Second,
		},
		Mock: MockConfig{
			Delay:      500 * time.Millisecond,
			SenderName: "ChatBot",
		},
		Notify: NotifyConfig{
			Driver: "log",
			Issuer: "relay",
		},
		Suggestions: SuggestionsConfig{
			Delay: time.Second,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Booleans cannot be expressed as "unset" here; callers apply them explicitly.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.SQLitePath != "" {
		c.Store.SQLitePath = other.Store.SQLitePath
	}
	if other.Store.RedisAddr != "" {
		c.Store.RedisAddr = other.Store.RedisAddr
	}
	if other.Relay.HistoryLimit != 0 {
		c.Relay.HistoryLimit = other.Relay.HistoryLimit
	}
	if other.Mock.Delay != 0 {
		c.Mock.Delay = other.Mock.Delay
	}
}
