// Package daemon composes the sightd server with fx.
package daemon

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/sightings/internal/bus"
	"github.com/matheus3301/sightings/internal/chat"
	"github.com/matheus3301/sightings/internal/config"
	"github.com/matheus3301/sightings/internal/docstore"
	"github.com/matheus3301/sightings/internal/httpapi"
	"github.com/matheus3301/sightings/internal/hub"
	"github.com/matheus3301/sightings/internal/identify"
	"github.com/matheus3301/sightings/internal/logging"
	"github.com/matheus3301/sightings/internal/profile"
	"github.com/matheus3301/sightings/internal/relay"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"
)

const redisPingTimeout = 3 * time.Second

// Params holds the startup options passed to the fx module.
type Params struct {
	ConfigPath string
	// Config, when set, is used as-is instead of loading ConfigPath.
	Config     *config.Server
	SocketPath string // optional override for testing; empty = config or default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideDB,
			provideRepo,
			hub.NewRegistry,
			provideChat,
			provideLookup,
			provideRouter,
			provideHTTPServer,
			provideRelay,
			health.NewServer,
			NewControlServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Server, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadServer(p.ConfigPath)
}

func provideLogger(cfg *config.Server) (*zap.Logger, error) {
	path := cfg.LogPath
	if path == "" {
		path = profile.ServerLogPath()
	}
	return logging.New(path, "sightd", true)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideDB(lc fx.Lifecycle, cfg *config.Server, logger *zap.Logger) (*gorm.DB, error) {
	db, err := docstore.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	logger.Info("document store ready", zap.String("driver", cfg.Database.Driver))
	lc.Append(fx.StopHook(func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}))
	return db, nil
}

func provideRepo(db *gorm.DB) *docstore.Repo {
	return docstore.NewRepo(db)
}

func provideChat(reg *hub.Registry, repo *docstore.Repo, b *bus.Bus, logger *zap.Logger) *chat.Service {
	return chat.NewService(reg, repo, b, logger.Named("chat"))
}

// provideLookup builds the identification proxy. An unreachable Redis only
// disables caching.
func provideLookup(lc fx.Lifecycle, cfg *config.Server, logger *zap.Logger) *identify.Client {
	opts := []identify.Option{}
	if cfg.Redis.Addr != "" {
		rc := identify.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		err := rc.Ping(ctx)
		cancel()
		if err != nil {
			logger.Warn("lookup cache unavailable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = rc.Close()
		} else {
			opts = append(opts, identify.WithCache(rc, cfg.Redis.LookupTTL.Duration))
			lc.Append(fx.StopHook(rc.Close))
		}
	}
	if cfg.Lookup.Timeout.Duration > 0 {
		opts = append(opts, identify.WithHTTPClient(&http.Client{Timeout: cfg.Lookup.Timeout.Duration}))
	}
	return identify.NewClient(cfg.Lookup.Endpoint, logger.Named("identify"), opts...)
}

func provideRouter(repo *docstore.Repo, svc *chat.Service, lookup *identify.Client, b *bus.Bus, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	return httpapi.NewRouter(httpapi.Deps{
		Sightings: repo,
		Chat:      svc,
		Lookup:    lookup,
		Bus:       b,
		Logger:    logger.Named("http"),
	})
}

func provideHTTPServer(cfg *config.Server, router *gin.Engine, logger *zap.Logger) (*httpapi.Server, error) {
	return httpapi.NewServer(cfg.ListenAddr, router, logger)
}

// provideRelay connects the event relay. A broker that cannot be reached at
// startup leaves the relay disabled.
func provideRelay(cfg *config.Server, b *bus.Bus, logger *zap.Logger) *relay.Relay {
	var pub relay.Publisher
	if cfg.Rabbit.URL != "" {
		p, err := relay.NewAMQPPublisher(cfg.Rabbit.URL, cfg.Rabbit.Queue)
		if err != nil {
			logger.Warn("event relay unavailable", zap.String("queue", cfg.Rabbit.Queue), zap.Error(err))
		} else {
			pub = p
		}
	}
	return relay.New(b, pub, logger.Named("relay"))
}

func registerLifecycle(lc fx.Lifecycle, srv *httpapi.Server, ctl *ControlServer, hs *health.Server, rel *relay.Relay, reg *hub.Registry, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			rel.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
					hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
				}
			}()
			go func() {
				if err := ctl.Start(); err != nil {
					logger.Error("control server error", zap.Error(err))
				}
			}()

			hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			hs.Shutdown()
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
			ctl.Stop(ctx)
			if err := rel.Stop(); err != nil {
				logger.Warn("error closing relay", zap.Error(err))
			}
			logger.Info("daemon stopped", zap.Int("open_sessions", len(reg.Sessions())))
			return nil
		},
	})
}
