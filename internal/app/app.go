package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/roomrelay/internal/auth"
	"github.com/vovakirdan/roomrelay/internal/config"
	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/notify"
	"github.com/vovakirdan/roomrelay/internal/store"
	"github.com/vovakirdan/roomrelay/internal/store/memory"
	"github.com/vovakirdan/roomrelay/internal/store/redis"
	"github.com/vovakirdan/roomrelay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/roomrelay/internal/transport/http"
	"github.com/vovakirdan/roomrelay/internal/utils"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	relay           *core.Relay
	notifier        *notify.OfflineNotifier
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("store initialized")

	newID, err := utils.NewIDGenerator(cfg.Relay.ConnID, cfg.Relay.ConnIDLength)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init id generator: %w", err)
	}

	table := core.NewConnTable()
	engine := core.NewEngine(table, st, logger)
	if cfg.Mock.Enabled {
		engine.SetResponder(core.NewMockResponder(cfg.Mock.Delay, cfg.Mock.SenderName, nil))
		logger.Info().Dur("delay", cfg.Mock.Delay).Msg("mock responder enabled")
	}

	registry := core.NewRegistry(st)
	relay := core.NewRelay(core.RelayConfig{
		HistoryLimit: cfg.Relay.HistoryLimit,
		OutboxSize:   cfg.Relay.OutboxSize,
		NewID:        newID,
	}, table, registry, st, engine, logger)

	deps := transporthttp.Deps{
		Relay:    relay,
		Rooms:    registry,
		Messages: st,
	}

	var notifier *notify.OfflineNotifier
	if cfg.Notify.Enabled {
		pusher, err := newPusher(ctx, cfg.Notify, logger)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("init notifications: %w", err)
		}
		deps.Notify = notify.NewService(st, pusher, logger)
		if cfg.Notify.ServiceSecret != "" {
			deps.ServiceAuth = &auth.JWTConfig{
				Secret: []byte(cfg.Notify.ServiceSecret),
				Issuer: cfg.Notify.Issuer,
			}
		}
		if cfg.Notify.Offline {
			notifier = notify.NewOfflineNotifier(st, deps.Notify, logger)
			engine.Subscribe(notifier)
		}
		logger.Info().Str("driver", cfg.Notify.Driver).Bool("offline", cfg.Notify.Offline).Msg("notifications enabled")
	}

	return &App{
		server:          transporthttp.NewServer(deps, cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		relay:           relay,
		notifier:        notifier,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return sqlite.New(cfg.SQLitePath)
	case "redis":
		return redis.New(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func newPusher(ctx context.Context, cfg config.NotifyConfig, logger *zerolog.Logger) (notify.Pusher, error) {
	switch cfg.Driver {
	case "fcm":
		return notify.NewFCMPusher(ctx, cfg.CredentialsFile)
	case "log", "":
		return notify.NewLogPusher(logger), nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler { return a.server.Handler }

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		err := a.server.Shutdown(shutdownCtx)
		if rerr := a.relay.Shutdown(shutdownCtx); rerr != nil {
			a.log.Warn().Err(rerr).Msg("relay shutdown incomplete")
		}
		if a.notifier != nil {
			a.notifier.Wait()
		}
		return err
	})

	err := g.Wait()
	a.cleanup()
	return err
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
