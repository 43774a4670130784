package prometheus

import (
	"strconv"
	"time"
)

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultIconDurationBuckets = []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// MapMetrics holds every metric PlotAtlas records.  It satisfies
// mapview.Metrics.
type MapMetrics struct {
	// map view
	StateTransitionsTotal CounterVec
	PopupsOpenedTotal     CounterVec
	DeferredUpdatesTotal  CounterVec
	IconLoadsTotal        CounterVec
	IconLoadDuration      HistogramVec
	IconsRenderedTotal    CounterVec
	SessionsActiveGauge   GaugeVec

	// atlas service
	CacheRequestsTotal CounterVec
	ListingsTotal      GaugeVec

	// infrastructure
	DBQueryDuration       HistogramVec
	ListingEventsTotal    CounterVec
	SpritesPublishedTotal CounterVec
	HTTPRequestsTotal     CounterVec
	HTTPRequestDuration   HistogramVec
	GRPCRequestsTotal     CounterVec
	GRPCRequestDuration   HistogramVec
	HealthCheckStatus     GaugeVec
}

// NewMapMetrics registers all metrics on collector.
func NewMapMetrics(c MetricsCollector) *MapMetrics {
	return &MapMetrics{
		StateTransitionsTotal: c.RegisterCounter("map_state_transitions_total", "Map view state transitions", "from", "to"),
		PopupsOpenedTotal:     c.RegisterCounter("map_popups_opened_total", "Plot popups opened"),
		DeferredUpdatesTotal:  c.RegisterCounter("map_deferred_updates_total", "Map updates deferred until the style loaded"),
		IconLoadsTotal:        c.RegisterCounter("map_icon_loads_total", "Combined icon loads", "result"),
		IconLoadDuration:      c.RegisterHistogram("map_icon_load_duration_seconds", "Combined icon load duration", DefaultIconDurationBuckets),
		IconsRenderedTotal:    c.RegisterCounter("map_icons_rendered_total", "Marker bitmaps rendered", "kind"),
		SessionsActiveGauge:   c.RegisterGauge("map_sessions_active", "Live map sessions"),

		CacheRequestsTotal: c.RegisterCounter("atlas_cache_requests_total", "Feature cache lookups", "result"),
		ListingsTotal:      c.RegisterGauge("atlas_listings", "Listings in the current snapshot", "city"),

		DBQueryDuration:       c.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "operation"),
		ListingEventsTotal:    c.RegisterCounter("listing_events_processed_total", "Listing change events processed", "type", "result"),
		SpritesPublishedTotal: c.RegisterCounter("sprites_published_total", "Icon sprites uploaded to object storage", "kind"),
		HTTPRequestsTotal:     c.RegisterCounter("http_requests_total", "HTTP requests", "method", "path", "status"),
		HTTPRequestDuration:   c.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path"),
		GRPCRequestsTotal:     c.RegisterCounter("grpc_requests_total", "gRPC calls", "service", "method", "code"),
		GRPCRequestDuration:   c.RegisterHistogram("grpc_request_duration_seconds", "gRPC call duration", DefaultHTTPDurationBuckets, "service", "method"),
		HealthCheckStatus:     c.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component"),
	}
}

func (m *MapMetrics) StateTransition(from, to string) {
	m.StateTransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *MapMetrics) PopupOpened() { m.PopupsOpenedTotal.WithLabelValues().Inc() }

func (m *MapMetrics) DeferredUpdate() { m.DeferredUpdatesTotal.WithLabelValues().Inc() }

func (m *MapMetrics) IconsLoaded(count int, elapsed time.Duration, err error) {
	m.IconLoadsTotal.WithLabelValues(resultLabel(err)).Inc()
	m.IconLoadDuration.WithLabelValues().Observe(elapsed.Seconds())
}

func (m *MapMetrics) SessionsActive(n int) {
	m.SessionsActiveGauge.WithLabelValues().Set(float64(n))
}

// IconRendered counts one rasterised bitmap.
func (m *MapMetrics) IconRendered(kind string) {
	m.IconsRenderedTotal.WithLabelValues(kind).Inc()
}

// CacheAccess records a feature cache lookup: hit, miss or error.
func (m *MapMetrics) CacheAccess(result string) {
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}

// ListingCount sets the per-city listing gauge.
func (m *MapMetrics) ListingCount(city string, n int) {
	m.ListingsTotal.WithLabelValues(city).Set(float64(n))
}

func (m *MapMetrics) DBQuery(operation string, d time.Duration) {
	m.DBQueryDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ListingEvent records a processed change event.
func (m *MapMetrics) ListingEvent(eventType string, err error) {
	m.ListingEventsTotal.WithLabelValues(eventType, resultLabel(err)).Inc()
}

func (m *MapMetrics) SpritePublished(kind string) {
	m.SpritesPublishedTotal.WithLabelValues(kind).Inc()
}

func (m *MapMetrics) HTTPRequest(method, path string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *MapMetrics) GRPCRequest(service, method, code string, d time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(d.Seconds())
}

// HealthStatus sets a component's health gauge.
func (m *MapMetrics) HealthStatus(component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

//Personal.AI order the ending
