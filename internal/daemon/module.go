// Package daemon composes the gateway: it wires every component through fx
// and owns startup and shutdown ordering.
package daemon

import (
	"context"

	"github.com/wagw/wagw/internal/actlog"
	"github.com/wagw/wagw/internal/bus"
	"github.com/wagw/wagw/internal/config"
	"github.com/wagw/wagw/internal/dispatch"
	"github.com/wagw/wagw/internal/gateway"
	"github.com/wagw/wagw/internal/keepalive"
	"github.com/wagw/wagw/internal/lock"
	"github.com/wagw/wagw/internal/logging"
	"github.com/wagw/wagw/internal/outbound"
	"github.com/wagw/wagw/internal/respond"
	"github.com/wagw/wagw/internal/session"
	"github.com/wagw/wagw/internal/status"
	"github.com/wagw/wagw/internal/store"
	"github.com/wagw/wagw/internal/supervisor"
	"github.com/wagw/wagw/internal/sweeper"
	"github.com/wagw/wagw/internal/wa"
	"github.com/wagw/wagw/internal/web"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideActivityLog,
			provideAdapter,
			provideSupervisor,
			provideKeepAlive,
			provideSweeper,
			provideRegistry,
			provideSender,
			provideDispatcher,
			provideGateway,
			provideHub,
			provideWebServer,
			NewHealthServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig() *config.Config {
	return config.LoadOrDefault(session.ConfigPath())
}

func provideBus() *bus.Bus {
	return bus.NewBus()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.RecordDBPath(p.SessionName)
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
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideActivityLog(p Params) (*actlog.Log, error) {
	return actlog.New(session.ActivityLogPath(p.SessionName))
}

func provideAdapter(p Params, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.SessionName, b, logger)
}

func provideSupervisor(m *status.Machine, adapter *wa.Adapter, b *bus.Bus, logger *zap.Logger) *supervisor.Supervisor {
	return supervisor.New(m, adapter, b, logger)
}

func provideKeepAlive(adapter *wa.Adapter, sup *supervisor.Supervisor, b *bus.Bus, logger *zap.Logger) *keepalive.KeepAlive {
	return keepalive.New(adapter, sup, b, logger)
}

func provideSweeper(sup *supervisor.Supervisor, adapter *wa.Adapter, logger *zap.Logger) *sweeper.Sweeper {
	return sweeper.New(sup, adapter, logger)
}

func provideRegistry(cfg *config.Config, logger *zap.Logger) *respond.Registry {
	return respond.NewRegistry(cfg.Responder, logger)
}

func provideSender(adapter *wa.Adapter, m *status.Machine, db *store.DB, activity *actlog.Log, logger *zap.Logger) *outbound.Sender {
	return outbound.NewSender(adapter, m, db, activity, logger)
}

func provideDispatcher(b *bus.Bus, db *store.DB, activity *actlog.Log, registry *respond.Registry, cfg *config.Config, sender *outbound.Sender, logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(b, db, activity, registry, cfg.Responder, sender, logger)
}

func provideGateway(sup *supervisor.Supervisor, sender *outbound.Sender, db *store.DB, logger *zap.Logger) *gateway.Gateway {
	return gateway.New(sup, sender, db, logger)
}

func provideHub(logger *zap.Logger) *web.Hub {
	return web.NewHub(logger)
}

func provideWebServer(cfg *config.Config, gw *gateway.Gateway, hub *web.Hub, logger *zap.Logger) *web.Server {
	if cfg.Web.Listen == "" {
		return nil
	}
	return web.NewServer(cfg.Web.Listen, gw, hub, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	p Params,
	lk *lock.Lock,
	adapter *wa.Adapter,
	sup *supervisor.Supervisor,
	ka *keepalive.KeepAlive,
	sw *sweeper.Sweeper,
	dispatcher *dispatch.Dispatcher,
	hub *web.Hub,
	webSrv *web.Server,
	health *HealthServer,
	db *store.DB,
	activity *actlog.Log,
	b *bus.Bus,
	logger *zap.Logger,
) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			handler := wa.NewEventHandler(b, logger)
			adapter.RegisterEventHandler(handler.Handle)

			// Long-running loops. All of them stop when runCtx is cancelled
			// on shutdown.
			go sup.Run(runCtx)
			go ka.Run(runCtx)
			go sw.Run(runCtx)
			go dispatcher.Run(runCtx)
			go hub.Run(runCtx, b)
			go health.Run(runCtx, b)

			if err := health.Start(); err != nil {
				return err
			}
			if webSrv != nil {
				if err := webSrv.Start(); err != nil {
					return err
				}
			} else {
				logger.Info("web surface disabled, no listen address configured")
			}

			// Auto-connect when credentials exist; without them the session
			// idles until pairing is requested.
			if adapter.IsLoggedIn() {
				go func() {
					if err := sup.Initiate(context.Background()); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
					}
				}()
			} else {
				logger.Info("no credentials found, pairing required", zap.String("session", p.SessionName))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			if webSrv != nil {
				if err := webSrv.Stop(ctx); err != nil {
					logger.Warn("web server shutdown", zap.Error(err))
				}
			}
			health.Stop()
			adapter.Disconnect()
			activity.Close()
			if err := db.Close(); err != nil {
				logger.Warn("closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
