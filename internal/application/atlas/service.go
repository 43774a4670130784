// Package atlas serves the map's read model: city buckets, cluster and plot
// feature collections, published marker sprites and cache refresh on
// listing change events.
package atlas

import (
	"context"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/turtacn/PlotAtlas/internal/config"
	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/internal/domain/property"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/database/redis"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/errors"
	"github.com/turtacn/PlotAtlas/pkg/types/common"
)

// Cache key layout under the cache's own prefix.
const (
	cacheNamespace   = "atlas:"
	clustersKeyFmt   = cacheNamespace + "clusters:%s"
	plotsKeyFmt      = cacheNamespace + "plots:%s:%s"
	DefaultCacheTTL  = 10 * time.Minute
	cacheResultHit   = "hit"
	cacheResultMiss  = "miss"
	cacheResultError = "error"
)

// CitySummary is one row of the city overview.
type CitySummary = common.CitySummary

// Service is the map read model.
type Service interface {
	// CityData returns the bucketed plots of the current listing snapshot.
	CityData(ctx context.Context) (plotmap.CityData, error)
	Clusters(ctx context.Context) (*geojson.FeatureCollection, error)
	Cities(ctx context.Context) ([]CitySummary, error)
	// Plots returns the plot features of city; unknown cities yield an
	// empty collection.
	Plots(ctx context.Context, city string) (*geojson.FeatureCollection, error)
	Property(ctx context.Context, id string) (*property.Property, error)
	Reconstruct(plotData, featureProps map[string]interface{}) property.Property
	Version(ctx context.Context) (string, error)
	// Invalidate drops the memoised snapshot and every cached collection.
	Invalidate(ctx context.Context) error
}

// Metrics is the observer the service reports to.
type Metrics interface {
	CacheAccess(result string)
	ListingCount(city string, n int)
}

type nopMetrics struct{}

func (nopMetrics) CacheAccess(string)       {}
func (nopMetrics) ListingCount(string, int) {}

// Options configures NewService.
type Options struct {
	// Cache is optional; a nil cache serves every request from the memo.
	Cache         redis.Cache
	CacheTTL      time.Duration
	Metrics       Metrics
	Reconstructor plotmap.Reconstructor
}

type serviceImpl struct {
	repo    property.Repository
	memo    *plotmap.Memo
	cache   redis.Cache
	ttl     time.Duration
	recon   plotmap.Reconstructor
	metrics Metrics
	logger  logging.Logger
}

// NewService builds the read model over repo, aggregating through agg.
func NewService(repo property.Repository, agg *plotmap.Aggregator, opts Options, logger logging.Logger) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Reconstructor.Placeholder == "" {
		opts.Reconstructor.Placeholder = plotmap.PlaceholderImage
	}
	return &serviceImpl{
		repo:    repo,
		memo:    plotmap.NewMemo(agg),
		cache:   opts.Cache,
		ttl:     opts.CacheTTL,
		recon:   opts.Reconstructor,
		metrics: opts.Metrics,
		logger:  logger.Named("atlas"),
	}
}

// NewAggregatorFromConfig builds the resolver and aggregator described by the
// map section: the default city table extended by configured references.
func NewAggregatorFromConfig(cfg config.MapConfig, rnd plotmap.RandSource) *plotmap.Aggregator {
	extra := make(plotmap.CityTable, len(cfg.Cities))
	for _, c := range cfg.Cities {
		extra[c.Name] = orb.Point{c.Lng, c.Lat}
	}
	var opts []plotmap.ResolverOption
	if cfg.JitterSpan > 0 {
		opts = append(opts, plotmap.WithJitterSpan(cfg.JitterSpan))
	}
	resolver := plotmap.NewResolver(plotmap.DefaultCityTable().Merge(extra), rnd, opts...)
	return plotmap.NewAggregator(resolver, rnd)
}

func (s *serviceImpl) Version(ctx context.Context) (string, error) {
	return s.repo.Version(ctx)
}

func (s *serviceImpl) CityData(ctx context.Context) (plotmap.CityData, error) {
	version, err := s.repo.Version(ctx)
	if err != nil {
		return nil, err
	}
	data, _, err := s.cityData(ctx, version)
	return data, err
}

// cityData returns the memoised buckets for version, listing the repository
// only on a memo miss.  fresh reports whether an aggregation ran.
func (s *serviceImpl) cityData(ctx context.Context, version string) (plotmap.CityData, bool, error) {
	if data, ok := s.memo.Lookup(version); ok {
		return data, false, nil
	}
	props, err := s.repo.List(ctx)
	if err != nil {
		return nil, false, err
	}
	data := s.memo.Get(version, props)
	for _, city := range data.Cities() {
		s.metrics.ListingCount(city, data.Count(city))
	}
	s.logger.Info("listing snapshot aggregated",
		logging.String("version", version),
		logging.Int("listings", len(props)),
		logging.Int("cities", len(data.Cities())))
	return data, true, nil
}

func (s *serviceImpl) Clusters(ctx context.Context) (*geojson.FeatureCollection, error) {
	version, err := s.repo.Version(ctx)
	if err != nil {
		return nil, err
	}
	return s.cachedCollection(ctx, formatKey(clustersKeyFmt, version), func() (*geojson.FeatureCollection, error) {
		data, _, err := s.cityData(ctx, version)
		if err != nil {
			return nil, err
		}
		return plotmap.BuildClusters(data), nil
	})
}

func (s *serviceImpl) Plots(ctx context.Context, city string) (*geojson.FeatureCollection, error) {
	if city == "" {
		return geojson.NewFeatureCollection(), nil
	}
	version, err := s.repo.Version(ctx)
	if err != nil {
		return nil, err
	}
	return s.cachedCollection(ctx, formatKey(plotsKeyFmt, version, city), func() (*geojson.FeatureCollection, error) {
		data, _, err := s.cityData(ctx, version)
		if err != nil {
			return nil, err
		}
		return plotmap.Expand(data, city), nil
	})
}

func (s *serviceImpl) Cities(ctx context.Context) ([]CitySummary, error) {
	fc, err := s.Clusters(ctx)
	if err != nil {
		return nil, err
	}
	return SummarizeClusters(fc), nil
}

// SummarizeClusters flattens cluster features into rows, preserving order.
func SummarizeClusters(fc *geojson.FeatureCollection) []CitySummary {
	out := make([]CitySummary, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		out = append(out, CitySummary{
			City:      f.Properties.MustString("city", ""),
			PlotCount: f.Properties.MustInt("plotCount", 0),
			Lng:       pt.Lon(),
			Lat:       pt.Lat(),
		})
	}
	return out
}

func (s *serviceImpl) Property(ctx context.Context, id string) (*property.Property, error) {
	if id == "" {
		return nil, errors.InvalidParam("property id is required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *serviceImpl) Reconstruct(plotData, featureProps map[string]interface{}) property.Property {
	return s.recon.Reconstruct(plotData, featureProps)
}

func (s *serviceImpl) Invalidate(ctx context.Context) error {
	s.memo.Reset()
	if s.cache == nil {
		return nil
	}
	n, err := s.cache.DeleteByPrefix(ctx, cacheNamespace)
	if err != nil {
		s.logger.Warn("cache invalidation failed", logging.Err(err))
		return err
	}
	s.logger.Info("atlas cache invalidated", logging.Int64("keys", n))
	return nil
}

// cachedCollection serves key from the cache, falling back to build.  Cache
// failures are logged and never surface to the caller.
func (s *serviceImpl) cachedCollection(ctx context.Context, key string, build func() (*geojson.FeatureCollection, error)) (*geojson.FeatureCollection, error) {
	if s.cache == nil {
		return build()
	}
	raw, err := s.cache.GetBytes(ctx, key)
	switch {
	case err == nil:
		fc, decErr := geojson.UnmarshalFeatureCollection(raw)
		if decErr == nil {
			s.metrics.CacheAccess(cacheResultHit)
			return fc, nil
		}
		s.logger.Warn("discarding undecodable cache entry", logging.String("key", key), logging.Err(decErr))
		s.metrics.CacheAccess(cacheResultError)
	case errors.IsCode(err, errors.ErrCodeNotFound):
		s.metrics.CacheAccess(cacheResultMiss)
	default:
		s.logger.Warn("cache read failed", logging.String("key", key), logging.Err(err))
		s.metrics.CacheAccess(cacheResultError)
	}

	fc, err := build()
	if err != nil {
		return nil, err
	}
	if data, mErr := fc.MarshalJSON(); mErr == nil {
		if setErr := s.cache.SetBytes(ctx, key, data, s.ttl); setErr != nil {
			s.logger.Warn("cache write failed", logging.String("key", key), logging.Err(setErr))
		}
	}
	return fc, nil
}

//Personal.AI order the ending
