// Package bootstrap builds the shared runtime graph (listing source, cache,
// sprite storage, metrics) from configuration for the PlotAtlas binaries.
package bootstrap

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/turtacn/PlotAtlas/internal/application/atlas"
	"github.com/turtacn/PlotAtlas/internal/config"
	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/internal/domain/property"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/database/postgres"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/database/redis"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/rendering/marker"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/storage/minio"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

const spriteLockTTL = 2 * time.Minute

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Components is everything a binary needs besides its own transport.
// Optional backends are nil when disabled in configuration.
type Components struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.MapMetrics

	DB       *postgres.Connection
	Listings *repositories.ListingRepository
	Memory   *property.MemoryRepository
	Repo     property.Repository

	Redis *redis.Client
	Cache redis.Cache

	MinIO   *minio.Client
	Sprites *minio.SpriteStore

	Renderer *marker.Renderer
	Atlas    atlas.Service
	Checks   []Check

	closers []func() error
}

// Build connects every enabled backend.  On error, whatever was opened is
// closed again.
func Build(ctx context.Context, cfg *config.Config, logger logging.Logger) (_ *Components, err error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Components{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if err = c.buildMetrics(); err != nil {
		return nil, err
	}
	if err = c.buildRepository(); err != nil {
		return nil, err
	}
	if err = c.buildCache(); err != nil {
		return nil, err
	}
	if err = c.buildStorage(ctx); err != nil {
		return nil, err
	}

	c.Renderer = marker.NewRenderer(logger)
	c.Atlas = atlas.NewService(c.Repo, atlas.NewAggregatorFromConfig(cfg.Map, nil), atlas.Options{
		Cache:         c.Cache,
		CacheTTL:      cfg.Redis.TTL,
		Metrics:       c.Metrics,
		Reconstructor: plotmap.Reconstructor{Placeholder: cfg.Map.PlaceholderImage},
	}, logger)
	return c, nil
}

func (c *Components) buildMetrics() error {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            c.Config.Monitoring.Namespace,
		EnableProcessMetrics: c.Config.Monitoring.Enabled,
		EnableGoMetrics:      c.Config.Monitoring.Enabled,
	}, c.Logger)
	if err != nil {
		return err
	}
	c.Collector = collector
	c.Metrics = prometheus.NewMapMetrics(collector)
	return nil
}

func (c *Components) buildRepository() error {
	if c.Config.Database.Enabled {
		conn, err := postgres.NewConnection(c.Config.Database, c.Logger)
		if err != nil {
			return err
		}
		c.DB = conn
		c.closers = append(c.closers, conn.Close)
		c.Listings = repositories.NewListingRepository(conn, c.Logger, c.Metrics)
		c.Repo = c.Listings
		c.addCheck("postgres", conn.HealthCheck)
		return nil
	}

	var props []*property.Property
	if path := c.Config.Map.ListingsFile; path != "" {
		var err error
		if props, err = LoadListingsFile(path); err != nil {
			return err
		}
	}
	c.Memory = property.NewMemoryRepository(props)
	c.Repo = c.Memory
	c.Logger.Info("serving listings from memory",
		logging.String("file", c.Config.Map.ListingsFile),
		logging.Int("count", len(props)),
	)
	return nil
}

func (c *Components) buildCache() error {
	if !c.Config.Redis.Enabled {
		return nil
	}
	client, err := redis.NewClient(c.Config.Redis, c.Logger)
	if err != nil {
		return err
	}
	c.Redis = client
	c.closers = append(c.closers, client.Close)
	c.Cache = redis.NewRedisCache(client, c.Logger,
		redis.WithPrefix(c.Config.Redis.KeyPrefix),
		redis.WithDefaultTTL(c.Config.Redis.TTL),
	)
	c.addCheck("redis", client.Ping)
	return nil
}

func (c *Components) buildStorage(ctx context.Context) error {
	if !c.Config.MinIO.Enabled {
		return nil
	}
	client, err := minio.NewClient(c.Config.MinIO, c.Logger)
	if err != nil {
		return err
	}
	c.MinIO = client
	c.closers = append(c.closers, client.Close)
	if err := client.EnsureBucket(ctx); err != nil {
		return err
	}
	c.Sprites = minio.NewSpriteStore(client, c.Logger)
	c.addCheck("minio", client.HealthCheck)
	return nil
}

func (c *Components) addCheck(name string, fn func(context.Context) error) {
	c.Checks = append(c.Checks, Check{Name: name, Fn: fn})
}

// SpritePublisher returns a publisher over the configured store.  With Redis
// enabled, publishes are serialised across processes.
func (c *Components) SpritePublisher() *atlas.SpritePublisher {
	opts := []atlas.SpriteOption{
		atlas.WithSpriteMetrics(c.Metrics),
		atlas.WithIconSize(c.Config.Map.IconSize),
	}
	if c.Redis != nil {
		opts = append(opts, atlas.WithLocker(redis.NewMutex(c.Redis, c.Config.Redis.KeyPrefix, "sprites", spriteLockTTL)))
	}
	var store atlas.SpriteStore
	if c.Sprites != nil {
		store = c.Sprites
	}
	return atlas.NewSpritePublisher(c.Atlas, c.Renderer, store, c.Logger, opts...)
}

// HealthCheck runs every probe and returns the first failure.
func (c *Components) HealthCheck(ctx context.Context) error {
	for _, chk := range c.Checks {
		if err := chk.Fn(ctx); err != nil {
			return errors.Wrapf(err, errors.ErrCodeServiceUnavailable, "%s unhealthy", chk.Name)
		}
	}
	return nil
}

// Close releases backends in reverse order of opening.
func (c *Components) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}

// LoadListingsFile reads a JSON array of listings and validates each one.
func LoadListingsFile(path string) ([]*property.Property, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeNotFound, "cannot read listings file %s", path)
	}
	return DecodeListings(raw)
}

// DecodeListings parses a JSON array of listings.  Missing slugs are derived
// from titles and missing statuses default to available.
func DecodeListings(raw []byte) ([]*property.Property, error) {
	var props []*property.Property
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "malformed listings JSON")
	}
	for i, p := range props {
		if p == nil {
			return nil, errors.Newf(errors.ErrCodeValidation, "listing %d is null", i)
		}
		if p.Slug == "" {
			p.Slug = property.Slugify(p.Title)
		}
		if p.Status == "" {
			p.Status = property.StatusAvailable
		}
		if err := p.Validate(); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeValidation, "invalid listing at index %d", i)
		}
	}
	return props, nil
}

//Personal.AI order the ending
