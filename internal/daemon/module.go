// Package daemon wires the session daemon: it owns the session lock,
// the mirror database, the mirror engine, and the outbox sender.
package daemon

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mpontes/nudge/internal/bus"
	"github.com/mpontes/nudge/internal/config"
	"github.com/mpontes/nudge/internal/lock"
	"github.com/mpontes/nudge/internal/logging"
	"github.com/mpontes/nudge/internal/mirror"
	"github.com/mpontes/nudge/internal/outbox"
	"github.com/mpontes/nudge/internal/session"
	"github.com/mpontes/nudge/internal/status"
	"github.com/mpontes/nudge/internal/store"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Config      *config.Config
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideMirrorEngine,
			provideSender,
		),
		fx.Invoke(registerEventLog, registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired", zap.String("session", p.SessionName))
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.MirrorDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	}
	if !result.FTS {
		logger.Warn("full-text search disabled: SQLite built without FTS5, rebuild with -tags sqlite_fts5")
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideMirrorEngine(p Params, db *store.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *mirror.Engine {
	poll := time.Duration(p.Config.PollSeconds) * time.Second
	return mirror.NewEngine(db, b, machine, logger, p.Config.ChatDBPath, poll)
}

func provideSender(db *store.DB, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, outbox.NewAppleScriptSender(), b, logger)
}

// registerEventLog mirrors every bus event into the session log, which is
// the only always-on observability surface the daemon has.
func registerEventLog(lc fx.Lifecycle, b *bus.Bus, logger *zap.Logger) {
	events, unsub := b.Subscribe("", 64)
	quit := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				for {
					select {
					case evt := <-events:
						logger.Debug("event", zap.String("kind", evt.Kind), zap.Any("payload", evt.Payload))
					case <-quit:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			unsub()
			close(quit)
			return nil
		},
	})
}

func registerLifecycle(lc fx.Lifecycle, p Params, lk *lock.Lock, engine *mirror.Engine, sender *outbox.Sender, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("daemon starting",
				zap.String("session", p.SessionName),
				zap.String("source", p.Config.ChatDBPath),
				zap.Int("lookback_days", p.Config.LookbackDays))

			engine.Start(context.Background())
			sender.Start(context.Background())
			return nil
		},
		OnStop: func(context.Context) error {
			sender.Stop()
			engine.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped", zap.String("state", string(machine.Current())))
			return nil
		},
	})
}
