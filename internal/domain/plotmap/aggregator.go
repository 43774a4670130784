package plotmap

import (
	"sort"
	"strconv"
	"sync"

	"github.com/paulmach/orb"

	"github.com/turtacn/PlotAtlas/internal/domain/property"
)

// PlotType is the fixed listing type carried by every plot.
const PlotType = "industrial"

// PlotPoint is the map-ready form of one listing.
type PlotPoint struct {
	ID          string   `json:"id"`
	City        string   `json:"city"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Title       string   `json:"title"`
	Address     string   `json:"address"`
	Area        float64  `json:"area"`
	Price       float64  `json:"price"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	Image       string   `json:"image"`
	Description string   `json:"description"`
	Amenities   []string `json:"amenities"`
	Electricity string   `json:"electricity,omitempty"`
	Gas         string   `json:"gas,omitempty"`
	Water       string   `json:"water,omitempty"`
}

// Point returns the plot position in (lng, lat) order.
func (p PlotPoint) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// CityData groups plots by their literal city string.  It is treated as
// immutable once built.
type CityData map[string][]PlotPoint

// Cities returns the bucket keys, sorted.
func (d CityData) Cities() []string {
	out := make([]string, 0, len(d))
	for c := range d {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of plots.
func (d CityData) Len() int {
	n := 0
	for _, pts := range d {
		n += len(pts)
	}
	return n
}

// Count returns the number of plots in city.
func (d CityData) Count(city string) int {
	return len(d[city])
}

// Aggregator groups properties into CityData.
type Aggregator struct {
	resolver *Resolver
	rnd      RandSource
}

// NewAggregator returns an Aggregator.  rnd feeds fallback ids; nil means
// DefaultRand.
func NewAggregator(resolver *Resolver, rnd RandSource) *Aggregator {
	if resolver == nil {
		resolver = NewResolver(nil, rnd)
	}
	if rnd == nil {
		rnd = DefaultRand()
	}
	return &Aggregator{resolver: resolver, rnd: rnd}
}

// Aggregate resolves every property and appends it to its city bucket.
// City names are used verbatim: "Jeddah" and "jeddah " are different buckets.
func (a *Aggregator) Aggregate(props []*property.Property) CityData {
	data := make(CityData)
	for _, p := range props {
		if p == nil {
			continue
		}
		data[p.City] = append(data[p.City], a.plotPoint(p))
	}
	return data
}

func (a *Aggregator) plotPoint(p *property.Property) PlotPoint {
	lat, lng := a.resolver.Resolve(p)
	id := p.ID
	if id == "" {
		id = a.fallbackID(p)
	}
	return PlotPoint{
		ID:          id,
		City:        p.City,
		Lat:         lat,
		Lng:         lng,
		Title:       p.Title,
		Address:     p.Title + ", " + p.City,
		Area:        p.Area,
		Price:       0,
		Type:        PlotType,
		Status:      string(p.Status),
		Image:       p.Image,
		Description: "",
		Amenities:   []string{},
		Electricity: p.Electricity,
		Gas:         p.Gas,
		Water:       p.Water,
	}
}

const fallbackSuffixLen = 8

// fallbackID is "{slug}-{up to 8 random base36 chars}".  Callers must not rely on it being
// stable across aggregations.
func (a *Aggregator) fallbackID(p *property.Property) string {
	slug := p.Slug
	if slug == "" {
		slug = property.Slugify(p.Title)
	}
	if slug == "" {
		slug = "plot"
	}
	n := uint64(a.rnd.Float64() * (1 << 53))
	suffix := strconv.FormatUint(n, 36)
	if len(suffix) > fallbackSuffixLen {
		suffix = suffix[:fallbackSuffixLen]
	}
	return slug + "-" + suffix
}

// Memo caches the CityData of the most recent listing snapshot, keyed by the
// snapshot version.
type Memo struct {
	agg *Aggregator

	mu   sync.Mutex
	key  string
	data CityData
}

// NewMemo returns a Memo over agg.
func NewMemo(agg *Aggregator) *Memo {
	return &Memo{agg: agg}
}

// Get returns the cached CityData when key matches the last call, otherwise it
// aggregates props and remembers the result.
func (m *Memo) Get(key string, props []*property.Property) CityData {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data != nil && key != "" && key == m.key {
		return m.data
	}
	m.data = m.agg.Aggregate(props)
	m.key = key
	return m.data
}

// Lookup returns the memoised CityData when key is the memoised snapshot.
// The check and the read happen under one lock, so a concurrent Get for
// another key cannot hand back a different snapshot.
func (m *Memo) Lookup(key string) (CityData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data != nil && key != "" && key == m.key {
		return m.data, true
	}
	return nil, false
}

// Reset drops the memoised snapshot.
func (m *Memo) Reset() {
	m.mu.Lock()
	m.key, m.data = "", nil
	m.mu.Unlock()
}

//Personal.AI order the ending
