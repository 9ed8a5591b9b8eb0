// Package app composes the console: configuration, logging, the profile
// lock, the warm-start cache, the backend client, the chat and notification
// cores, and the TUI shell, wired with fx lifecycle hooks.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/dispatchgrid/opsdesk/internal/backend"
	"github.com/dispatchgrid/opsdesk/internal/bus"
	"github.com/dispatchgrid/opsdesk/internal/chat"
	"github.com/dispatchgrid/opsdesk/internal/config"
	"github.com/dispatchgrid/opsdesk/internal/lock"
	"github.com/dispatchgrid/opsdesk/internal/logging"
	"github.com/dispatchgrid/opsdesk/internal/notify"
	"github.com/dispatchgrid/opsdesk/internal/profile"
	"github.com/dispatchgrid/opsdesk/internal/store"
	"github.com/dispatchgrid/opsdesk/internal/tui"
)

// uiRefreshInterval is how often the shell re-pulls the directory and the
// open thread. Badge cadence is separate and owned by the aggregator.
const uiRefreshInterval = 5 * time.Second

// Params holds the resolved profile name passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the console, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("console",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideProfile,
			provideBus,
			provideLock,
			provideCache,
			provideBackend,
			provideConversationStore,
			provideChannel,
			provideAggregator,
			NewCacheWriter,
			provideTUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideProfile(p Params) (config.Profile, error) {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		return config.Profile{}, err
	}
	return cfg.Resolve(p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideCache(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.CacheDBPath(p.ProfileName)
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
		logger.Info("cache migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("cache migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideBackend(prof config.Profile, logger *zap.Logger) *backend.Client {
	return backend.New(prof.BaseURL, prof.Token, prof.RequestTimeout(), logger)
}

func provideConversationStore(client *backend.Client, b *bus.Bus, logger *zap.Logger) *chat.ConversationStore {
	return chat.NewConversationStore(client, b, logger)
}

func provideChannel(cs *chat.ConversationStore, client *backend.Client, b *bus.Bus, logger *zap.Logger) *chat.Channel {
	return chat.NewChannel(cs, client, b, logger)
}

func provideAggregator(client *backend.Client, prof config.Profile, b *bus.Bus, logger *zap.Logger) *notify.Aggregator {
	return notify.New(notify.Sources(client), prof.PollInterval(), b, logger)
}

func provideTUI(p Params, cs *chat.ConversationStore, ch *chat.Channel, agg *notify.Aggregator, b *bus.Bus, logger *zap.Logger) *tui.App {
	return tui.NewApp(cs, ch, agg, b, logger, p.ProfileName, uiRefreshInterval)
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, ui *tui.App, cs *chat.ConversationStore, agg *notify.Aggregator, writer *CacheWriter, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Warm start: last-known directory and badges from the cache,
			// before any network traffic.
			if convs, err := db.ListConversations(); err == nil && len(convs) > 0 {
				cs.Replace(convs)
				logger.Info("warm start from cache", zap.Int("conversations", len(convs)))
			}
			if counts, err := db.GetCounts(); err == nil {
				agg.Seed(counts)
			}

			writer.Start(context.Background())
			agg.Start(context.Background())

			go func() {
				if err := ui.Run(); err != nil {
					logger.Error("terminal ui error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()

			return nil
		},
		OnStop: func(_ context.Context) error {
			ui.Stop()
			agg.Stop()
			writer.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("console stopped")
			return nil
		},
	})
}
