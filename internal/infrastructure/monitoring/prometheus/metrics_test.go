package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMapMetrics_RecordsMapViewEvents(t *testing.T) {
	c := newTestCollector(t)
	m := NewMapMetrics(c)

	m.StateTransition("all-cities", "city-focused")
	m.PopupOpened()
	m.PopupOpened()
	m.DeferredUpdate()
	m.IconsLoaded(3, 20*time.Millisecond, nil)
	m.IconsLoaded(3, time.Millisecond, errors.New("boom"))
	m.IconRendered("city")
	m.SessionsActive(4)

	out := scrape(t, c)
	assert.Contains(t, out, `test_map_state_transitions_total{from="all-cities",to="city-focused"} 1`)
	assert.Contains(t, out, "test_map_popups_opened_total 2")
	assert.Contains(t, out, "test_map_deferred_updates_total 1")
	assert.Contains(t, out, `test_map_icon_loads_total{result="success"} 1`)
	assert.Contains(t, out, `test_map_icon_loads_total{result="error"} 1`)
	assert.Contains(t, out, "test_map_icon_load_duration_seconds_count 2")
	assert.Contains(t, out, `test_map_icons_rendered_total{kind="city"} 1`)
	assert.Contains(t, out, "test_map_sessions_active 4")
}

func TestMapMetrics_RecordsServiceEvents(t *testing.T) {
	c := newTestCollector(t)
	m := NewMapMetrics(c)

	m.CacheAccess("hit")
	m.ListingCount("Jeddah", 7)
	m.DBQuery("list", 5*time.Millisecond)
	m.ListingEvent("upsert", nil)
	m.SpritePublished("plot")
	m.HTTPRequest("GET", "/api/v1/map/clusters", 200, 10*time.Millisecond)
	m.GRPCRequest("plotatlas.v1.Atlas", "Clusters", "OK", time.Millisecond)
	m.HealthStatus("postgres", true)
	m.HealthStatus("redis", false)

	out := scrape(t, c)
	assert.Contains(t, out, `test_atlas_cache_requests_total{result="hit"} 1`)
	assert.Contains(t, out, `test_atlas_listings{city="Jeddah"} 7`)
	assert.Contains(t, out, `test_db_query_duration_seconds_count{operation="list"} 1`)
	assert.Contains(t, out, `test_listing_events_processed_total{result="success",type="upsert"} 1`)
	assert.Contains(t, out, `test_sprites_published_total{kind="plot"} 1`)
	assert.Contains(t, out, `test_http_requests_total{method="GET",path="/api/v1/map/clusters",status="200"} 1`)
	assert.Contains(t, out, `test_grpc_requests_total{code="OK",method="Clusters",service="plotatlas.v1.Atlas"} 1`)
	assert.Contains(t, out, `test_health_check_status{component="postgres"} 1`)
	assert.Contains(t, out, `test_health_check_status{component="redis"} 0`)
}

//Personal.AI order the ending
