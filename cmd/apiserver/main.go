// API server entry point for PlotAtlas: the HTTP map API, the gRPC Atlas
// service and the map session sweeper.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/PlotAtlas/internal/application/atlas"
	"github.com/turtacn/PlotAtlas/internal/application/mapview"
	"github.com/turtacn/PlotAtlas/internal/bootstrap"
	"github.com/turtacn/PlotAtlas/internal/config"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/mapengine/memory"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/turtacn/PlotAtlas/internal/interfaces/grpc"
	httpserver "github.com/turtacn/PlotAtlas/internal/interfaces/http"
	"github.com/turtacn/PlotAtlas/internal/interfaces/http/handlers"
	"github.com/turtacn/PlotAtlas/internal/interfaces/http/middleware"
)

const (
	defaultConfigPath = "configs/config.yaml"
	sweepInterval     = time.Minute
	healthInterval    = 15 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.HTTP.Port = *httpPort
	}
	if *grpcPort > 0 {
		cfg.Server.GRPC.Port = *grpcPort
	}

	logger, err := logging.NewLogger(logging.LogConfig(cfg.Log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("API server exited with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("PlotAtlas API server stopped")
}

// loadConfig reads path when it exists and falls back to environment
// variables and defaults otherwise.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: config file %s not found, using environment and defaults\n", path)
		return config.LoadFromEnv()
	}
	return config.LoadFromFile(path)
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	logger.Info("starting PlotAtlas API server",
		logging.String("version", config.Version),
		logging.Int("http_port", cfg.Server.HTTP.Port),
		logging.Int("grpc_port", cfg.Server.GRPC.Port),
		logging.Bool("token_configured", cfg.Map.TokenConfigured()),
	)

	comps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			logger.Warn("failed to close backends", logging.Err(err))
		}
	}()

	sessions := newSessionManager(cfg, comps, logger)
	defer sessions.CloseAll()

	httpSrv := httpserver.NewServer(cfg.Server.HTTP, newRouter(cfg, comps, sessions, logger), logger)

	grpcSrv, err := grpcserver.NewServer(cfg.Server.GRPC,
		grpcserver.WithLogger(logger),
		grpcserver.WithMetrics(comps.Metrics),
		grpcserver.WithGracefulTimeout(shutdownTimeout),
	)
	if err != nil {
		return err
	}
	grpcserver.NewAtlasService(comps.Atlas).Register(grpcSrv)

	watcher := atlas.NewVersionWatcher(comps.Atlas, atlas.DefaultWatchInterval, sessions.Broadcast, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	g.Go(grpcSrv.Start)
	g.Go(func() error {
		sessions.RunSweeper(gctx, sweepInterval, cfg.Map.SessionIdleTTL)
		return nil
	})
	g.Go(func() error {
		grpcSrv.WatchHealth(gctx, healthInterval, comps.HealthCheck)
		return nil
	})
	g.Go(func() error {
		watcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpErr := httpSrv.Stop(stopCtx)
		grpcErr := grpcSrv.Stop(stopCtx)
		if httpErr != nil {
			return httpErr
		}
		return grpcErr
	})
	return g.Wait()
}

func newSessionManager(cfg *config.Config, comps *bootstrap.Components, logger logging.Logger) *mapview.SessionManager {
	opts := mapview.OptionsFromConfig(cfg.Map)
	factory := memory.Factory(nil)
	popups := memory.PopupRenderer{}
	return mapview.NewSessionManager(func() *mapview.Controller {
		return mapview.NewController(opts, factory, comps.Renderer, popups, logger, comps.Metrics)
	}, logger, comps.Metrics)
}

func newRouter(cfg *config.Config, comps *bootstrap.Components, sessions *mapview.SessionManager, logger logging.Logger) http.Handler {
	checkers := make([]handlers.HealthChecker, 0, len(comps.Checks))
	for _, c := range comps.Checks {
		checkers = append(checkers, handlers.CheckFunc(c.Name, c.Fn))
	}

	cors := middleware.CORSFromOrigins(cfg.Server.HTTP.AllowedOrigins)
	routerCfg := httpserver.RouterConfig{
		MapHandler:     handlers.NewMapHandler(comps.Atlas, comps.Renderer, comps.Cache, cfg.Map, logger),
		SessionHandler: handlers.NewSessionHandler(sessions, comps.Atlas, logger),
		HealthHandler:  handlers.NewHealthHandler(config.Version, comps.Metrics, checkers...),
		Observer:       comps.Metrics,
		CORS:           &cors,
		Logging:        middleware.DefaultLoggingConfig(),
		SessionRateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.Server.HTTP.SessionRate,
			Burst:             cfg.Server.HTTP.SessionBurst,
		},
		Logger: logger,
	}
	if cfg.Monitoring.Enabled {
		routerCfg.MetricsHandler = comps.Collector.Handler()
		routerCfg.MetricsPath = cfg.Monitoring.Path
	}
	return httpserver.NewRouter(routerCfg)
}

//Personal.AI order the ending
