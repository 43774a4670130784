package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PlotAtlas/internal/testutil"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test"}, testutil.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrape(t *testing.T, c MetricsCollector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_RequiresNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, nil)
	assert.Error(t, err)
}

func TestNewMetricsCollector_ProcessMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", EnableProcessMetrics: true, EnableGoMetrics: true}, nil)
	require.NoError(t, err)
	out := scrape(t, c)
	assert.Contains(t, out, "go_goroutines")
}

func TestRegisterCounter_ReusesExisting(t *testing.T) {
	c := newTestCollector(t)
	a := c.RegisterCounter("hits_total", "hits", "kind")
	b := c.RegisterCounter("hits_total", "hits", "kind")
	a.WithLabelValues("x").Inc()
	b.WithLabelValues("x").Add(2)
	assert.Contains(t, scrape(t, c), `test_hits_total{kind="x"} 3`)
}

func TestRegister_TypeMismatchIsNoop(t *testing.T) {
	logger := testutil.NewMockLogger()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test"}, logger)
	require.NoError(t, err)

	c.RegisterCounter("thing", "a counter")
	g := c.RegisterGauge("thing", "now a gauge")
	assert.NotPanics(t, func() { g.WithLabelValues().Set(5) })
	assert.True(t, logger.HasMessage("warn", "type mismatch"))
}

func TestRegister_ConflictingCollectorIsNoop(t *testing.T) {
	logger := testutil.NewMockLogger()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test"}, logger)
	require.NoError(t, err)

	c.Registry().MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Namespace: "test", Name: "taken_total", Help: "x"}))
	vec := c.RegisterCounter("taken_total", "x")
	assert.NotPanics(t, func() { vec.WithLabelValues().Inc() })
	assert.True(t, logger.HasMessage("error", "failed to register counter"))
}

func TestHistogramAndTimer(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("op_seconds", "op", nil, "op")
	timer := NewTimer(h.WithLabelValues("render"))
	time.Sleep(time.Millisecond)
	assert.Greater(t, timer.ObserveDuration(), time.Duration(0))
	assert.Contains(t, scrape(t, c), `test_op_seconds_count{op="render"} 1`)
}

//Personal.AI order the ending
