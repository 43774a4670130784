// Worker entry point for PlotAtlas: consumes listing change events, refreshes
// the read model and republishes marker sprites.
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
	"github.com/turtacn/PlotAtlas/internal/bootstrap"
	"github.com/turtacn/PlotAtlas/internal/config"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/PlotAtlas/internal/interfaces/http"
	"github.com/turtacn/PlotAtlas/internal/interfaces/http/handlers"
	"github.com/turtacn/PlotAtlas/internal/interfaces/http/middleware"
)

const (
	defaultWorkerConfigPath = "configs/config.yaml"
	shutdownTimeout         = 30 * time.Second
	topicSetupTimeout       = 15 * time.Second
)

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file")
	ensureTopics := flag.Bool("ensure-topics", false, "create the listing topics before consuming")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.LogConfig(cfg.Log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Kafka.Enabled {
		logger.Error("kafka is disabled; the worker has nothing to consume")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *ensureTopics, logger); err != nil {
		logger.Error("worker exited with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("PlotAtlas worker stopped")
}

func run(ctx context.Context, cfg *config.Config, ensureTopics bool, logger logging.Logger) error {
	logger.Info("starting PlotAtlas worker",
		logging.String("version", config.Version),
		logging.String("topic", cfg.Kafka.ListingTopic),
		logging.String("group", cfg.Kafka.GroupID),
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

	if ensureTopics {
		if err := createTopics(ctx, cfg.Kafka, logger); err != nil {
			return err
		}
	}

	var publisher atlas.Republisher
	if comps.Sprites != nil {
		publisher = comps.SpritePublisher()
	} else {
		logger.Warn("object storage disabled; bulk reloads will not republish sprites")
	}
	refresh := atlas.NewRefreshHandler(comps.Atlas, publisher, comps.Metrics, logger)

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfigFromConfig(cfg.Kafka), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("failed to close kafka consumer", logging.Err(err))
		}
	}()
	consumer.Subscribe(cfg.Kafka.ListingTopic, refresh.MessageHandler())

	healthSrv := httpserver.NewServer(config.HTTPConfig{Port: cfg.Worker.HealthPort}, newHealthRouter(cfg, comps, logger), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(healthSrv.Start)
	g.Go(func() error {
		if err := consumer.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return healthSrv.Stop(stopCtx)
	})
	return g.Wait()
}

func createTopics(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) error {
	mgr, err := kafka.NewTopicManager(cfg.Brokers, logger)
	if err != nil {
		return err
	}
	defer mgr.Close()
	ctx, cancel := context.WithTimeout(ctx, topicSetupTimeout)
	defer cancel()
	return mgr.EnsureTopics(ctx, kafka.ListingTopics(cfg))
}

// newHealthRouter serves /healthz, /readyz and, when monitoring is on, the
// metrics endpoint.
func newHealthRouter(cfg *config.Config, comps *bootstrap.Components, logger logging.Logger) http.Handler {
	checkers := make([]handlers.HealthChecker, 0, len(comps.Checks))
	for _, c := range comps.Checks {
		checkers = append(checkers, handlers.CheckFunc(c.Name, c.Fn))
	}
	routerCfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(config.Version, comps.Metrics, checkers...),
		Logging:       middleware.DefaultLoggingConfig(),
		Logger:        logger,
	}
	if cfg.Monitoring.Enabled {
		routerCfg.MetricsHandler = comps.Collector.Handler()
		routerCfg.MetricsPath = cfg.Monitoring.Path
	}
	return httpserver.NewRouter(routerCfg)
}

//Personal.AI order the ending
