package atlas

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/storage/minio"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

const (
	renderConcurrency = 4
	lockAttempts      = 5
	lockRetry         = 200 * time.Millisecond
)

// PNGRenderer draws one icon.
type PNGRenderer interface {
	RenderPNG(ctx context.Context, desc plotmap.IconDescriptor) ([]byte, error)
}

// SpriteStore is the object store the publisher uploads to.
type SpriteStore interface {
	PutPNG(ctx context.Context, name string, data []byte) (minio.SpriteObject, error)
	PutManifest(ctx context.Context, data []byte) (minio.SpriteObject, error)
	Prune(ctx context.Context, keep map[string]bool) ([]string, error)
}

// Locker serialises publishers across processes.
type Locker interface {
	Lock(ctx context.Context, attempts int, retry time.Duration) error
	Unlock(ctx context.Context) error
}

// SpriteMetrics observes uploads.
type SpriteMetrics interface {
	SpritePublished(kind string)
}

// RenderedIcon is an icon and its PNG bytes.
type RenderedIcon struct {
	Descriptor plotmap.IconDescriptor
	PNG        []byte
}

// ManifestEntry describes one published sprite.
type ManifestEntry struct {
	Name  string           `json:"name"`
	Kind  plotmap.IconKind `json:"kind"`
	City  string           `json:"city,omitempty"`
	Count int              `json:"count,omitempty"`
	Key   string           `json:"key"`
	Bytes int64            `json:"bytes"`
}

// Manifest lists the sprites of one listing version.
type Manifest struct {
	Version     string          `json:"version"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Icons       []ManifestEntry `json:"icons"`
	Pruned      []string        `json:"pruned,omitempty"`
}

// SpritePublisher renders the city badges and the plot pin of the current
// snapshot and uploads them.
type SpritePublisher struct {
	svc      Service
	renderer PNGRenderer
	store    SpriteStore
	lock     Locker
	metrics  SpriteMetrics
	size     int
	logger   logging.Logger
	now      func() time.Time
}

// SpriteOption configures a SpritePublisher.
type SpriteOption func(*SpritePublisher)

// WithLocker guards Publish with l.
func WithLocker(l Locker) SpriteOption {
	return func(p *SpritePublisher) { p.lock = l }
}

func WithSpriteMetrics(m SpriteMetrics) SpriteOption {
	return func(p *SpritePublisher) { p.metrics = m }
}

// WithIconSize overrides plotmap.DefaultIconSize.
func WithIconSize(size int) SpriteOption {
	return func(p *SpritePublisher) {
		if size > 0 {
			p.size = size
		}
	}
}

// NewSpritePublisher wires a publisher.  store may be nil when only Render is
// used.
func NewSpritePublisher(svc Service, renderer PNGRenderer, store SpriteStore, logger logging.Logger, opts ...SpriteOption) *SpritePublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &SpritePublisher{
		svc:      svc,
		renderer: renderer,
		store:    store,
		size:     plotmap.DefaultIconSize,
		logger:   logger.Named("sprites"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Descriptors lists the icons the current snapshot needs, cities sorted,
// plot pin last.
func (p *SpritePublisher) Descriptors(ctx context.Context) ([]plotmap.IconDescriptor, string, error) {
	version, err := p.svc.Version(ctx)
	if err != nil {
		return nil, "", err
	}
	data, err := p.svc.CityData(ctx)
	if err != nil {
		return nil, "", err
	}
	cities := data.Cities()
	descs := make([]plotmap.IconDescriptor, 0, len(cities)+1)
	for _, city := range cities {
		descs = append(descs, plotmap.DescribeCityIcon(city, data.Count(city), p.size))
	}
	descs = append(descs, plotmap.DescribePlotIcon(p.size))
	return descs, version, nil
}

// Render draws every icon of the current snapshot.
func (p *SpritePublisher) Render(ctx context.Context) ([]RenderedIcon, string, error) {
	descs, version, err := p.Descriptors(ctx)
	if err != nil {
		return nil, "", err
	}
	out := make([]RenderedIcon, len(descs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(renderConcurrency)
	for i, d := range descs {
		i, d := i, d
		g.Go(func() error {
			png, err := p.renderer.RenderPNG(gctx, d)
			if err != nil {
				return errors.Wrapf(err, errors.ErrCodeIconLoadFailed, "render %s", d.Name)
			}
			out[i] = RenderedIcon{Descriptor: d, PNG: png}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}
	return out, version, nil
}

// Publish renders, uploads and writes the manifest, then removes sprites
// that no longer belong to the snapshot.
func (p *SpritePublisher) Publish(ctx context.Context) (*Manifest, error) {
	if p.store == nil {
		return nil, errors.New(errors.ErrCodeConfigurationMissing, "sprite store is not configured")
	}
	if p.lock != nil {
		if err := p.lock.Lock(ctx, lockAttempts, lockRetry); err != nil {
			return nil, err
		}
		defer func() {
			if err := p.lock.Unlock(context.Background()); err != nil {
				p.logger.Warn("failed to release sprite lock", logging.Err(err))
			}
		}()
	}

	icons, version, err := p.Render(ctx)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{Version: version, GeneratedAt: p.now().UTC()}
	keep := make(map[string]bool, len(icons))
	for _, icon := range icons {
		obj, err := p.store.PutPNG(ctx, icon.Descriptor.Name, icon.PNG)
		if err != nil {
			return nil, err
		}
		keep[icon.Descriptor.Name] = true
		manifest.Icons = append(manifest.Icons, ManifestEntry{
			Name:  icon.Descriptor.Name,
			Kind:  icon.Descriptor.Kind,
			City:  icon.Descriptor.City,
			Count: icon.Descriptor.Count,
			Key:   obj.Key,
			Bytes: obj.Size,
		})
		if p.metrics != nil {
			p.metrics.SpritePublished(string(icon.Descriptor.Kind))
		}
	}

	pruned, err := p.store.Prune(ctx, keep)
	if err != nil {
		p.logger.Warn("sprite prune failed", logging.Err(err))
	}
	sort.Strings(pruned)
	manifest.Pruned = pruned

	body, err := json.Marshal(manifest)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode sprite manifest")
	}
	if _, err := p.store.PutManifest(ctx, body); err != nil {
		return nil, err
	}
	p.logger.Info("sprites published",
		logging.String("version", version),
		logging.Int("icons", len(manifest.Icons)),
		logging.Int("pruned", len(pruned)))
	return manifest, nil
}

//Personal.AI order the ending
