package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PlotAtlas/pkg/errors"
	"github.com/turtacn/PlotAtlas/pkg/types/common"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetryWait(time.Millisecond, 5*time.Millisecond)}, opts...)
	c, err := NewClient(server.URL+"/", opts...)
	require.NoError(t, err)
	return c
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(common.ErrorResponse{Code: code, Message: msg, RequestID: "srv-1"})
}

func TestNewClient_Validation(t *testing.T) {
	for _, in := range []string{"", "ftp://atlas", "atlas.example.com", "http://"} {
		_, err := NewClient(in)
		assert.Error(t, err, in)
	}

	c, err := NewClient("https://atlas.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://atlas.example.com", c.baseURL)
	assert.Equal(t, "plotatlas-go-sdk/"+Version, c.userAgent)
	assert.Equal(t, 3, c.retryMax)
}

func TestClient_Headers(t *testing.T) {
	var got http.Header
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_ = json.NewEncoder(w).Encode(common.VersionResponse{Version: "v7"})
	}, WithAPIKey("secret"), WithUserAgent("atlas-test"))

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v7", v)
	assert.Equal(t, "Bearer secret", got.Get("Authorization"))
	assert.Equal(t, "atlas-test", got.Get("User-Agent"))
	assert.NotEmpty(t, got.Get("X-Request-Id"))
	assert.Empty(t, got.Get("Content-Type"))
}

func TestClient_NoAuthorizationWithoutKey(t *testing.T) {
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"version":"x"}`))
	})
	_, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestClient_4xxNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeError(w, http.StatusNotFound, "LISTING_001", "property not found")
	})

	_, err := c.Property(context.Background(), "p-404")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "LISTING_001", apiErr.Code)
	assert.Equal(t, "srv-1", apiErr.RequestID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClient_5xxRetriedThenSucceeds(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeError(w, http.StatusInternalServerError, "COMMON_001", "internal error")
			return
		}
		_, _ = w.Write([]byte(`[{"city":"Riyadh","plotCount":2,"lng":46.8,"lat":24.6}]`))
	})

	cities, err := c.Cities(context.Background())
	require.NoError(t, err)
	require.Len(t, cities, 1)
	assert.Equal(t, 2, cities[0].PlotCount)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClient_RetriesExhausted(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeError(w, http.StatusBadGateway, "COMMON_008", "upstream")
	}, WithRetryMax(2))

	_, err := c.Version(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsServerError())
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClient_UnconfiguredMapNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeError(w, http.StatusServiceUnavailable, "MAP_001", "map access token is not configured")
	})

	_, err := c.Sessions().SelectCity(context.Background(), "s1", "Riyadh")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsUnavailable())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClient_RateLimitedHonoursRetryAfter(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "COMMON_007", "too many requests")
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"s1","state":{"mode":"all-cities"}}`))
	})

	start := time.Now()
	s, err := c.Sessions().Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestClient_ContextCanceledDuringBackoff(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusInternalServerError, "COMMON_001", "internal error")
	}, WithRetryWait(time.Second, time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Version(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAPIError_Message(t *testing.T) {
	err := &APIError{StatusCode: 409, Code: "COMMON_006", Message: "a city is already selected", Detail: "city=Jeddah", RequestID: "r1"}
	assert.Equal(t, "plotatlas: COMMON_006 (HTTP 409): a city is already selected (city=Jeddah) [request_id=r1]", err.Error())
	assert.False(t, err.IsRateLimited())
}

func TestAPIError_PlainTextBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway says no", http.StatusForbidden)
	})
	_, err := c.Config(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "gateway says no", apiErr.Message)
	assert.Empty(t, apiErr.Code)
}

func TestCalculateBackoff_Capped(t *testing.T) {
	c := &Client{retryWaitMin: 100 * time.Millisecond, retryWaitMax: 300 * time.Millisecond}
	for attempt := 1; attempt <= 5; attempt++ {
		d := c.calculateBackoff(attempt)
		assert.LessOrEqual(t, d, 375*time.Millisecond, fmt.Sprint(attempt))
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	}
}

//Personal.AI order the ending
