package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "RELAY"
	envConfigDefaultPath = "RELAY_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, cfg.Validate()
}

// Validate rejects values the relay cannot run with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	switch c.Relay.ConnID {
	case "shortcode", "uuid":
	default:
		return fmt.Errorf("relay.conn_id: unknown strategy %q", c.Relay.ConnID)
	}
	if c.Relay.HistoryLimit <= 0 {
		return fmt.Errorf("relay.history_limit must be positive")
	}
	if c.Relay.OutboxSize <= 0 {
		return fmt.Errorf("relay.outbox_size must be positive")
	}
	if c.Notify.Enabled {
		switch c.Notify.Driver {
		case "log", "fcm":
		default:
			return fmt.Errorf("notify.driver: unknown driver %q", c.Notify.Driver)
		}
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can resolve nested keys such as RELAY_MOCK_ENABLED.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)

	v.SetDefault("store.driver", cfg.Store.Driver)
	v.SetDefault("store.sqlite_path", cfg.Store.SQLitePath)
	v.SetDefault("store.redis_addr", cfg.Store.RedisAddr)
	v.SetDefault("store.redis_password", cfg.Store.RedisPassword)
	v.SetDefault("store.redis_db", cfg.Store.RedisDB)
	v.SetDefault("store.redis_prefix", cfg.Store.RedisPrefix)

	v.SetDefault("relay.history_limit", cfg.Relay.HistoryLimit)
	v.SetDefault("relay.outbox_size", cfg.Relay.OutboxSize)
	v.SetDefault("relay.conn_id", cfg.Relay.ConnID)
	v.SetDefault("relay.conn_id_length", cfg.Relay.ConnIDLength)
	v.SetDefault("relay.max_message_bytes", cfg.Relay.MaxMessageBytes)
	v.SetDefault("relay.write_timeout", cfg.Relay.WriteTimeout)
	v.SetDefault("relay.messages_per_minute", cfg.Relay.MessagesPerMinute)
	v.SetDefault("relay.allowed_origins", cfg.Relay.AllowedOrigins)

	v.SetDefault("mock.enabled", cfg.Mock.Enabled)
	v.SetDefault("mock.delay", cfg.Mock.Delay)
	v.SetDefault("mock.sender_name", cfg.Mock.SenderName)

	v.SetDefault("notify.enabled", cfg.Notify.Enabled)
	v.SetDefault("notify.driver", cfg.Notify.Driver)
	v.SetDefault("notify.credentials_file", cfg.Notify.CredentialsFile)
	v.SetDefault("notify.offline", cfg.Notify.Offline)
	v.SetDefault("notify.service_secret", cfg.Notify.ServiceSecret)
	v.SetDefault("notify.issuer", cfg.Notify.Issuer)

	v.SetDefault("suggestions.delay", cfg.Suggestions.Delay)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
