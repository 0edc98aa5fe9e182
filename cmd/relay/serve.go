package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomrelay/internal/app"
	"github.com/vovakirdan/roomrelay/internal/config"
	"github.com/vovakirdan/roomrelay/internal/log"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		override config.Config
		mock     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket relay and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootstrap := log.New("info", "console")

			cfg, path, err := config.Load(bootstrap, *configPath)
			if err != nil {
				bootstrap.Error().Err(err).Str("path", path).Msg("failed to load config")
				return err
			}
			cfg.UpdateFrom(override)
			if cmd.Flags().Changed("mock") {
				cfg.Mock.Enabled = mock
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := log.New(cfg.LogLevel, cfg.LogFormat)
			logger.Info().Str("config_path", path).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, &cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("failed to initialize application")
				return err
			}

			logger.Info().Str("addr", cfg.Addr).Bool("mock", cfg.Mock.Enabled).Msg("starting relay")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&override.Addr, "addr", "", "HTTP listen address")
	flags.DurationVar(&override.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&override.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.StringVar(&override.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&override.LogFormat, "log-format", "", "log format (console or json)")
	flags.StringVar(&override.Store.Driver, "store", "", "store driver (sqlite, redis, memory)")
	flags.StringVar(&override.Store.SQLitePath, "sqlite-path", "", "SQLite database file")
	flags.StringVar(&override.Store.RedisAddr, "redis-addr", "", "Redis address")
	flags.IntVar(&override.Relay.HistoryLimit, "history-limit", 0, "messages sent on join")
	flags.BoolVar(&mock, "mock", false, "enable the mock bot responder")
	flags.DurationVar(&override.Mock.Delay, "mock-delay", 0, "delay between mock replies")
	return cmd
}
