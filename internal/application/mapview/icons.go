package mapview

import (
	"context"
	"image"
	"sync"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/turtacn/PlotAtlas/pkg/errors"

	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
)

const iconRenderConcurrency = 8

type iconKey struct {
	city  string
	count int
}

// IconSet memoises icon descriptors by (city, count) and rendered bitmaps by
// icon name, so re-entering a state never rebuilds an image.
type IconSet struct {
	size int

	mu     sync.Mutex
	descs  map[iconKey]plotmap.IconDescriptor
	images map[string]image.Image
}

// NewIconSet returns an empty IconSet for icons of size pixels.
func NewIconSet(size int) *IconSet {
	if size <= 0 {
		size = plotmap.DefaultIconSize
	}
	return &IconSet{
		size:   size,
		descs:  make(map[iconKey]plotmap.IconDescriptor),
		images: make(map[string]image.Image),
	}
}

// City returns the descriptor for a city badge.
func (s *IconSet) City(city string, count int) plotmap.IconDescriptor {
	k := iconKey{city: city, count: count}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.descs[k]; ok {
		return d
	}
	d := plotmap.DescribeCityIcon(city, count, s.size)
	s.descs[k] = d
	return d
}

// Plot returns the descriptor for the plot pin.
func (s *IconSet) Plot() plotmap.IconDescriptor {
	return plotmap.DescribePlotIcon(s.size)
}

// Required lists the descriptors needed to draw data: one badge per
// non-empty city plus the plot pin.
func (s *IconSet) Required(data plotmap.CityData) []plotmap.IconDescriptor {
	out := make([]plotmap.IconDescriptor, 0, len(data)+1)
	for _, city := range data.Cities() {
		if n := data.Count(city); n > 0 {
			out = append(out, s.City(city, n))
		}
	}
	return append(out, s.Plot())
}

// Image returns a rendered bitmap by icon name.
func (s *IconSet) Image(name string) (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[name]
	return img, ok
}

// Len returns the number of rendered bitmaps held.
func (s *IconSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

// Retain drops every descriptor and bitmap not in descs.
func (s *IconSet) Retain(descs []plotmap.IconDescriptor) {
	keep := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		keep[d.Name] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.images {
		if _, ok := keep[name]; !ok {
			delete(s.images, name)
		}
	}
	for k, d := range s.descs {
		if _, ok := keep[d.Name]; !ok {
			delete(s.descs, k)
		}
	}
}

// Load renders every descriptor not already cached and waits for all of
// them.  On any failure nothing from this call is cached and the error is
// returned; the result maps icon name to bitmap.
func (s *IconSet) Load(ctx context.Context, r IconRenderer, descs []plotmap.IconDescriptor) (map[string]image.Image, error) {
	out := make(map[string]image.Image, len(descs))
	var missing []plotmap.IconDescriptor
	s.mu.Lock()
	for _, d := range descs {
		if img, ok := s.images[d.Name]; ok {
			out[d.Name] = img
			continue
		}
		if _, dup := out[d.Name]; !dup {
			missing = append(missing, d)
			out[d.Name] = nil
		}
	}
	s.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	rendered := make([]image.Image, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(iconRenderConcurrency)
	for i, d := range missing {
		i, d := i, d
		g.Go(func() error {
			img, err := r.Render(gctx, d)
			if err != nil {
				return apperrors.Wrapf(err, apperrors.ErrCodeIconLoadFailed, "render icon %s", d.Name)
			}
			rendered[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i, d := range missing {
		s.images[d.Name] = rendered[i]
		out[d.Name] = rendered[i]
	}
	s.mu.Unlock()
	return out, nil
}

//Personal.AI order the ending
