package plotmap

import (
	"math/rand"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/turtacn/PlotAtlas/internal/domain/property"
)

// DefaultJitterSpan spreads default placements uniformly over ±0.05 degrees.
const DefaultJitterSpan = 0.1

// RandSource yields uniform values in [0,1).
type RandSource interface {
	Float64() float64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// NewRandSource returns a goroutine-safe source seeded with seed.
func NewRandSource(seed int64) RandSource {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

// DefaultRand returns a time-seeded goroutine-safe source.
func DefaultRand() RandSource {
	return NewRandSource(time.Now().UnixNano())
}

// CityTable maps a city name to its reference point (lng, lat).
type CityTable map[string]orb.Point

// DefaultReference is used for cities missing from the table (Riyadh).
var DefaultReference = orb.Point{46.6753, 24.7136}

// DefaultCityTable returns the reference points of the industrial cities
// listings are published for.  The result is a fresh map on every call.
func DefaultCityTable() CityTable {
	return CityTable{
		"Riyadh":  {46.6753, 24.7136},
		"Jeddah":  {39.1925, 21.4858},
		"Dammam":  {50.1033, 26.4207},
		"Jubail":  {49.6583, 27.0174},
		"Yanbu":   {38.0618, 24.0895},
		"Makkah":  {39.8262, 21.3891},
		"Madinah": {39.5692, 24.5247},
		"Khobar":  {50.2083, 26.2172},
		"Tabuk":   {36.5662, 28.3835},
		"Abha":    {42.5053, 18.2164},
		"Qassim":  {43.9750, 26.3260},
		"Hail":    {41.6907, 27.5114},
		"Sudair":  {45.6200, 25.9300},
		"Rabigh":  {39.0349, 22.7986},
	}
}

// Merge returns a copy of t with extra entries added or replaced.
func (t CityTable) Merge(extra CityTable) CityTable {
	out := make(CityTable, len(t)+len(extra))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Resolver places a property on the map.
type Resolver struct {
	table    CityTable
	fallback orb.Point
	span     float64
	rnd      RandSource
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithFallback sets the reference point for unknown cities.
func WithFallback(p orb.Point) ResolverOption {
	return func(r *Resolver) { r.fallback = p }
}

// WithJitterSpan sets the full width of the jitter window per axis.
func WithJitterSpan(span float64) ResolverOption {
	return func(r *Resolver) {
		if span >= 0 {
			r.span = span
		}
	}
}

// NewResolver builds a Resolver.  A nil table means DefaultCityTable and a
// nil rnd means DefaultRand.
func NewResolver(table CityTable, rnd RandSource, opts ...ResolverOption) *Resolver {
	if table == nil {
		table = DefaultCityTable()
	}
	if rnd == nil {
		rnd = DefaultRand()
	}
	r := &Resolver{
		table:    table,
		fallback: DefaultReference,
		span:     DefaultJitterSpan,
		rnd:      rnd,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reference returns the reference point for city, or the fallback.
func (r *Resolver) Reference(city string) orb.Point {
	if p, ok := r.table[city]; ok {
		return p
	}
	return r.fallback
}

// Resolve returns the explicit coordinates of p when set.  Otherwise it
// returns the city reference point with independent uniform jitter on each
// axis, so co-located listings do not hide behind one marker.
func (r *Resolver) Resolve(p *property.Property) (lat, lng float64) {
	if p.Coordinates != nil {
		return p.Coordinates.Lat, p.Coordinates.Lng
	}
	base := r.Reference(p.City)
	lat = base.Lat() + (r.rnd.Float64()-0.5)*r.span
	lng = base.Lon() + (r.rnd.Float64()-0.5)*r.span
	return lat, lng
}

//Personal.AI order the ending
