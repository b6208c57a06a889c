// Package daemon composes the synchronizer: remote store, local cache,
// subscription manager, sync engine, outbox sender and push consumer.
package daemon

import (
	"context"
	"errors"
	"io/fs"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/avtopazar/avtochat/internal/bus"
	"github.com/avtopazar/avtochat/internal/cache"
	"github.com/avtopazar/avtochat/internal/chat"
	"github.com/avtopazar/avtochat/internal/config"
	"github.com/avtopazar/avtochat/internal/docstore"
	"github.com/avtopazar/avtochat/internal/docstore/memstore"
	"github.com/avtopazar/avtochat/internal/docstore/mongostore"
	"github.com/avtopazar/avtochat/internal/inbox"
	"github.com/avtopazar/avtochat/internal/lock"
	"github.com/avtopazar/avtochat/internal/logging"
	"github.com/avtopazar/avtochat/internal/outbox"
	"github.com/avtopazar/avtochat/internal/profile"
	"github.com/avtopazar/avtochat/internal/push"
	"github.com/avtopazar/avtochat/internal/realtime"
	"github.com/avtopazar/avtochat/internal/status"
	intsync "github.com/avtopazar/avtochat/internal/sync"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	Offline bool // run against an in-memory store, cache only
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCache,
			provideDocStore,
			provideChatService,
			provideManager,
			provideSyncEngine,
			provideInbox,
			providePushConsumer,
			provideSender,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(logger *zap.Logger) (*config.Config, error) {
	path := profile.ConfigPath()
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		if saveErr := config.Save(path, cfg); saveErr != nil {
			return nil, saveErr
		}
		logger.Info("wrote default config", zap.String("path", path))
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideCache(p Params, logger *zap.Logger) (*cache.DB, error) {
	dbPath := profile.CacheDBPath(p.Profile)
	db, err := cache.Open(dbPath)
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
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideDocStore(p Params, cfg *config.Config, lc fx.Lifecycle, logger *zap.Logger) (docstore.Store, error) {
	if p.Offline || cfg.Store.URI == "" {
		logger.Info("using in-memory document store")
		return memstore.New(), nil
	}
	store, err := mongostore.Connect(context.Background(), cfg.Store.URI, cfg.Store.Database, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close(ctx)
		},
	})
	return store, nil
}

func provideChatService(cfg *config.Config, store docstore.Store, logger *zap.Logger) *chat.Service {
	return chat.NewService(store, cfg.User.ID, cfg.User.Name, cfg.TypingStaleness(), logger)
}

func provideManager(store docstore.Store, svc *chat.Service, logger *zap.Logger) *realtime.Manager {
	return realtime.NewManager(store, svc, logger)
}

func provideSyncEngine(mgr *realtime.Manager, db *cache.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(mgr, db, b, cfg.User.ID, logger)
}

func provideInbox(db *cache.DB, logger *zap.Logger) *inbox.Inbox {
	return inbox.Load(db, logger)
}

func providePushConsumer(p Params, cfg *config.Config, in *inbox.Inbox, b *bus.Bus, logger *zap.Logger) (*push.Consumer, error) {
	if p.Offline || len(cfg.Push.Brokers) == 0 {
		logger.Info("push channel disabled")
		return nil, nil
	}
	return push.NewConsumer(cfg.Push.Brokers, cfg.Push.GroupID, cfg.Push.Topic, in, b, logger)
}

func provideSender(db *cache.DB, svc *chat.Service, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, svc, b, cfg.User.ID, cfg.User.Name, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, lk *lock.Lock, mgr *realtime.Manager, engine *intsync.Engine, sender *outbox.Sender, consumer *push.Consumer, machine *status.Machine, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if p.Offline {
				_ = machine.Transition(status.Offline)
			} else {
				_ = machine.Transition(status.Connecting)
				_ = machine.Transition(status.Syncing)
			}

			if err := engine.Start(runCtx); err != nil {
				logger.Error("sync engine start failed", zap.Error(err))
				_ = machine.Transition(status.Error)
				return err
			}

			sender.Start(runCtx)

			if consumer != nil {
				go func() {
					if err := consumer.Run(runCtx); err != nil && runCtx.Err() == nil {
						logger.Error("push consumer stopped", zap.Error(err))
						_ = machine.Transition(status.Degraded)
					}
				}()
			}

			if !p.Offline {
				_ = machine.Transition(status.Ready)
			}
			logger.Info("daemon started", zap.String("state", string(machine.Current())))
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			if consumer != nil {
				if err := consumer.Close(); err != nil {
					logger.Warn("error closing push consumer", zap.Error(err))
				}
			}
			sender.Stop()
			engine.Stop()
			mgr.StopAll()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
