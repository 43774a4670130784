package mapview_test

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PlotAtlas/internal/application/mapview"
	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/internal/domain/property"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/mapengine/memory"
	"github.com/turtacn/PlotAtlas/internal/testutil"
	apperrors "github.com/turtacn/PlotAtlas/pkg/errors"
)

type stubRenderer struct {
	calls atomic.Int32
	err   error
	gate  chan struct{}
}

func (r *stubRenderer) Render(ctx context.Context, d plotmap.IconDescriptor) (image.Image, error) {
	r.calls.Add(1)
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return image.NewRGBA(image.Rect(0, 0, d.Size, d.Size)), nil
}

type recordingMetrics struct {
	mu          sync.Mutex
	transitions []string
	popups      int
	deferred    int
	iconLoads   int
}

func (m *recordingMetrics) StateTransition(from, to string) {
	m.mu.Lock()
	m.transitions = append(m.transitions, from+">"+to)
	m.mu.Unlock()
}

func (m *recordingMetrics) PopupOpened() {
	m.mu.Lock()
	m.popups++
	m.mu.Unlock()
}

func (m *recordingMetrics) DeferredUpdate() {
	m.mu.Lock()
	m.deferred++
	m.mu.Unlock()
}

func (m *recordingMetrics) IconsLoaded(int, time.Duration, error) {
	m.mu.Lock()
	m.iconLoads++
	m.mu.Unlock()
}

func (m *recordingMetrics) SessionsActive(int) {}

func sampleData() plotmap.CityData {
	return plotmap.CityData{
		"Jeddah": {
			{ID: "j1", City: "Jeddah", Lat: 21.5, Lng: 39.2, Title: "Port Yard", Area: 1200, Type: plotmap.PlotType, Status: "available", Electricity: "11kV"},
			{ID: "j2", City: "Jeddah", Lat: 21.6, Lng: 39.3, Title: "North Lot", Area: 800, Type: plotmap.PlotType, Status: "sold"},
		},
		"Riyadh": {
			{ID: "r1", City: "Riyadh", Lat: 24.7, Lng: 46.6, Title: "Hub", Area: 3000, Type: plotmap.PlotType, Status: "reserved"},
		},
	}
}

type fixture struct {
	ctrl     *mapview.Controller
	engine   *memory.Engine
	renderer *stubRenderer
	metrics  *recordingMetrics
	logger   *testutil.MockLogger
	viewed   []property.Property
}

func newFixture(t *testing.T, token string, engineOpts ...memory.Option) *fixture {
	t.Helper()
	f := &fixture{renderer: &stubRenderer{}, metrics: &recordingMetrics{}, logger: testutil.NewMockLogger()}
	opts := mapview.Options{
		AccessToken: token,
		ResizeDelay: 20 * time.Millisecond,
		IconSize:    16,
		OnView:      func(p property.Property) { f.viewed = append(f.viewed, p) },
	}
	factory := memory.Factory(func(e *memory.Engine) { f.engine = e }, engineOpts...)
	f.ctrl = mapview.NewController(opts, factory, f.renderer, memory.PopupRenderer{}, f.logger, f.metrics)
	t.Cleanup(f.ctrl.Unmount)
	return f
}

func indexOf(ops []string, prefix string) (first, last int) {
	first, last = -1, -1
	for i, op := range ops {
		if strings.HasPrefix(op, prefix) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return first, last
}

func TestController_NoTokenShowsPlaceholder(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))

	assert.Nil(t, f.engine)
	assert.Equal(t, int32(0), f.renderer.calls.Load())
	s := f.ctrl.Snapshot()
	assert.True(t, s.Placeholder)
	assert.False(t, s.Mounted)
	assert.Equal(t, 3, s.Plots)
	assert.True(t, f.logger.HasMessage("warn", "access token"))

	err := f.ctrl.SelectCity("Jeddah")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigurationMissing))
}

func TestController_MountRegistersIconsBeforeLayers(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))
	require.NotNil(t, f.engine)
	assert.Equal(t, "pk.test", f.engine.Options().AccessToken)

	ops := f.engine.Ops()
	_, lastImage := indexOf(ops, "addImage:")
	_, lastSource := indexOf(ops, "addSource:")
	firstLayer, _ := indexOf(ops, "addLayer:")
	require.GreaterOrEqual(t, firstLayer, 0)
	assert.Less(t, lastImage, firstLayer)
	assert.Less(t, lastSource, firstLayer)

	assert.ElementsMatch(t, []string{
		plotmap.CityIconName("Jeddah", 2),
		plotmap.CityIconName("Riyadh", 1),
		plotmap.PlotIconName,
	}, f.engine.Images())

	clusters := f.engine.VisibleFeatures(mapview.ClusterLayerID)
	require.Len(t, clusters, 2)
	assert.Equal(t, "Jeddah", clusters[0].Properties["city"])

	plots, ok := f.engine.Source(mapview.PlotSourceID)
	require.True(t, ok)
	assert.Empty(t, plots.Features)

	cam, fits := f.engine.Camera()
	require.NotNil(t, cam)
	assert.Equal(t, 1, fits)
	assert.Equal(t, 50, cam.Opts.Padding)
	assert.Equal(t, 10.0, cam.Opts.MaxZoom)

	layer, ok := f.engine.Layer(mapview.ClusterLayerID)
	require.True(t, ok)
	assert.Equal(t, plotmap.CityIconName("Jeddah", 2), layer.Icon.Resolve(map[string]interface{}{"city": "Jeddah"}))

	s := f.ctrl.Snapshot()
	assert.Equal(t, mapview.ModeAllCities, s.Mode)
	assert.True(t, s.LayersReady)
	assert.True(t, s.Mounted)
}

func TestController_ClusterClickFocusesCity(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))

	require.True(t, f.engine.Click(mapview.ClusterLayerID, 0))

	s := f.ctrl.Snapshot()
	assert.Equal(t, mapview.ModeCityFocused, s.Mode)
	assert.Equal(t, "Jeddah", s.SelectedCity)

	assert.Empty(t, f.engine.VisibleFeatures(mapview.ClusterLayerID))
	plots := f.engine.VisibleFeatures(mapview.PlotLayerID)
	require.Len(t, plots, 2)
	assert.Equal(t, orb.Point{39.2, 21.5}, plots[0].Geometry)

	cam, fits := f.engine.Camera()
	assert.Equal(t, 2, fits)
	assert.Equal(t, 80, cam.Opts.Padding)
	assert.Equal(t, 14.0, cam.Opts.MaxZoom)
	assert.Equal(t, orb.Point{39.2, 21.5}, cam.Bound.Min)
	assert.Equal(t, orb.Point{39.3, 21.6}, cam.Bound.Max)

	// hidden clusters cannot be clicked
	assert.False(t, f.engine.Click(mapview.ClusterLayerID, 0))
	assert.Equal(t, []string{"all-cities>city-focused"}, f.metrics.transitions)
}

func TestController_BackToCitiesRestoresClusters(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))
	require.NoError(t, f.ctrl.SelectCity("Riyadh"))
	require.True(t, f.engine.Click(mapview.PlotLayerID, 0))

	require.NoError(t, f.ctrl.BackToCities())

	assert.Len(t, f.engine.VisibleFeatures(mapview.ClusterLayerID), 2)
	assert.Empty(t, f.engine.VisibleFeatures(mapview.PlotLayerID))
	assert.Empty(t, f.engine.OpenPopups())
	s := f.ctrl.Snapshot()
	assert.Equal(t, mapview.ModeAllCities, s.Mode)
	assert.False(t, s.PopupOpen)

	// no-op when already showing all cities
	require.NoError(t, f.ctrl.BackToCities())
	assert.Len(t, f.metrics.transitions, 2)
}

func TestController_SelectCityRejectedWhileFocused(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))
	require.NoError(t, f.ctrl.SelectCity("Jeddah"))
	err := f.ctrl.SelectCity("Riyadh")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))
	assert.Equal(t, "Jeddah", f.ctrl.Snapshot().SelectedCity)
}

func TestController_UnknownCityShowsNothing(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))
	_, fitsBefore := f.engine.Camera()

	require.NoError(t, f.ctrl.SelectCity("Atlantis"))

	assert.Empty(t, f.engine.VisibleFeatures(mapview.PlotLayerID))
	_, fitsAfter := f.engine.Camera()
	assert.Equal(t, fitsBefore, fitsAfter)
}

func TestController_PopupsAreExclusive(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))
	require.NoError(t, f.ctrl.SelectCity("Jeddah"))

	require.True(t, f.engine.Click(mapview.PlotLayerID, 0))
	popups := f.engine.OpenPopups()
	require.Len(t, popups, 1)
	first := popups[0]
	p, ok := first.Content()
	require.True(t, ok)
	assert.Equal(t, "j1", p.ID)
	assert.Equal(t, "Port Yard", p.Title)
	assert.Equal(t, "11kV", p.Electricity)
	assert.True(t, p.Featured)
	assert.Equal(t, orb.Point{39.2, 21.5}, first.At())

	require.True(t, f.engine.Click(mapview.PlotLayerID, 1))
	popups = f.engine.OpenPopups()
	require.Len(t, popups, 1)
	assert.NotEqual(t, first.ID(), popups[0].ID())
	p, _ = popups[0].Content()
	assert.Equal(t, "j2", p.ID)

	s := f.ctrl.Snapshot()
	require.NotNil(t, s.Popup)
	assert.Equal(t, "j2", s.Popup.ID)

	// a stale close action must not close the newer popup
	first.PressClose()
	assert.Len(t, f.engine.OpenPopups(), 1)

	popups[0].PressClose()
	assert.Empty(t, f.engine.OpenPopups())
	assert.False(t, f.ctrl.Snapshot().PopupOpen)
	assert.Equal(t, 2, f.metrics.popups)
}

func TestController_PopupViewAction(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))
	require.NoError(t, f.ctrl.SelectCity("Riyadh"))
	require.True(t, f.engine.Click(mapview.PlotLayerID, 0))

	popups := f.engine.OpenPopups()
	require.Len(t, popups, 1)
	assert.True(t, popups[0].PressView())
	require.Len(t, f.viewed, 1)
	assert.Equal(t, "r1", f.viewed[0].ID)
}

func TestController_OpenPopupValidation(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))

	assert.True(t, apperrors.IsCode(f.ctrl.OpenPopup(nil), apperrors.ErrCodeFeatureInvalid))

	fc := plotmap.Expand(sampleData(), "Jeddah")
	err := f.ctrl.OpenPopup(fc.Features[0])
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))
}

func TestController_DefersUntilStyleLoaded(t *testing.T) {
	f := newFixture(t, "pk.test", memory.WithStyleLoading())
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))

	assert.False(t, f.engine.HasLayer(mapview.ClusterLayerID))
	assert.True(t, f.ctrl.Snapshot().DeferredPending)
	listenersWhilePending := f.engine.Listeners()

	require.NoError(t, f.ctrl.SelectCity("Jeddah"))
	require.NoError(t, f.ctrl.BackToCities())
	require.NoError(t, f.ctrl.SelectCity("Jeddah"))
	assert.Equal(t, listenersWhilePending, f.engine.Listeners())
	assert.Equal(t, 1, f.metrics.deferred)

	f.engine.FinishStyleLoad()

	assert.False(t, f.ctrl.Snapshot().DeferredPending)
	assert.Equal(t, listenersWhilePending-1, f.engine.Listeners())
	assert.Len(t, f.engine.VisibleFeatures(mapview.PlotLayerID), 2)
	assert.Empty(t, f.engine.VisibleFeatures(mapview.ClusterLayerID))

	first, last := indexOf(f.engine.Ops(), "setData:"+mapview.PlotSourceID)
	assert.Equal(t, first, last, "deferred update replayed more than once")

	// a second load event does nothing
	f.engine.FinishStyleLoad()
	first, last = indexOf(f.engine.Ops(), "setData:"+mapview.PlotSourceID)
	assert.Equal(t, first, last)
}

func TestController_StyleReloadReinstalls(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))
	renders := f.renderer.calls.Load()

	f.engine.ReloadStyle()
	require.NoError(t, f.ctrl.SelectCity("Jeddah"))
	assert.False(t, f.engine.HasLayer(mapview.PlotLayerID))

	f.engine.FinishStyleLoad()

	assert.True(t, f.engine.HasLayer(mapview.ClusterLayerID))
	assert.True(t, f.engine.HasLayer(mapview.PlotLayerID))
	assert.Len(t, f.engine.Images(), 3)
	assert.Len(t, f.engine.VisibleFeatures(mapview.PlotLayerID), 2)
	assert.Equal(t, renders, f.renderer.calls.Load(), "icons re-rendered after style reload")
}

func TestController_IdleStyleReloadRestoresLayers(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))
	require.NoError(t, f.ctrl.SelectCity("Jeddah"))
	require.Len(t, f.engine.VisibleFeatures(mapview.PlotLayerID), 2)
	require.True(t, f.ctrl.Snapshot().LayersReady)
	renders := f.renderer.calls.Load()

	f.engine.ReloadStyle()
	assert.False(t, f.ctrl.Snapshot().LayersReady)

	f.engine.FinishStyleLoad()

	assert.True(t, f.engine.HasLayer(mapview.ClusterLayerID))
	assert.True(t, f.engine.HasLayer(mapview.PlotLayerID))
	assert.Len(t, f.engine.Images(), 3)
	assert.Len(t, f.engine.VisibleFeatures(mapview.PlotLayerID), 2)
	assert.Empty(t, f.engine.VisibleFeatures(mapview.ClusterLayerID))
	assert.True(t, f.ctrl.Snapshot().LayersReady)
	assert.Equal(t, "Jeddah", f.ctrl.Snapshot().SelectedCity)
	assert.Equal(t, renders, f.renderer.calls.Load(), "icons re-rendered after style reload")
	assert.True(t, f.logger.HasMessage("info", "style reloaded"))

	// layers intact: a further load event changes nothing
	ops := len(f.engine.Ops())
	f.engine.FinishStyleLoad()
	assert.Len(t, f.engine.Ops(), ops)
}

func TestController_IconFailureBlocksLayers(t *testing.T) {
	f := newFixture(t, "pk.test")
	f.renderer.err = errors.New("font missing")

	err := f.ctrl.Mount(context.Background(), sampleData())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeIconLoadFailed))
	assert.False(t, f.engine.HasLayer(mapview.ClusterLayerID))
	assert.False(t, f.engine.HasLayer(mapview.PlotLayerID))
	assert.Empty(t, f.engine.Images())
	assert.True(t, f.logger.HasMessage("error", "icons failed"))
}

func TestController_UnmountDuringIconLoad(t *testing.T) {
	f := newFixture(t, "pk.test")
	f.renderer.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Mount(context.Background(), sampleData()) }()

	require.Eventually(t, func() bool { return f.renderer.calls.Load() > 0 }, time.Second, time.Millisecond)
	f.ctrl.Unmount()
	close(f.renderer.gate)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("mount did not return")
	}
	assert.True(t, f.engine.Removed())
	assert.Empty(t, f.engine.Images())
	assert.False(t, f.engine.HasLayer(mapview.ClusterLayerID))
	assert.False(t, f.ctrl.Snapshot().Mounted)
}

func TestController_SetDataReinitialises(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))
	require.NoError(t, f.ctrl.SelectCity("Jeddah"))
	renders := f.renderer.calls.Load()

	// same counts: no new bitmaps
	require.NoError(t, f.ctrl.SetData(context.Background(), sampleData()))
	assert.Equal(t, renders, f.renderer.calls.Load())

	data := sampleData()
	data["Jeddah"] = append(data["Jeddah"], plotmap.PlotPoint{ID: "j3", City: "Jeddah", Lat: 21.7, Lng: 39.4, Title: "South"})
	require.NoError(t, f.ctrl.SetData(context.Background(), data))

	assert.Equal(t, renders+1, f.renderer.calls.Load())
	assert.Contains(t, f.engine.Images(), plotmap.CityIconName("Jeddah", 3))
	layer, _ := f.engine.Layer(mapview.ClusterLayerID)
	assert.Equal(t, plotmap.CityIconName("Jeddah", 3), layer.Icon.Resolve(map[string]interface{}{"city": "Jeddah"}))
	assert.Len(t, f.engine.VisibleFeatures(mapview.PlotLayerID), 3)
	assert.Equal(t, "Jeddah", f.ctrl.Snapshot().SelectedCity)
}

func TestController_SetDataDropsUnusedIcons(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))
	require.Contains(t, f.engine.Images(), plotmap.CityIconName("Riyadh", 1))

	data := sampleData()
	delete(data, "Riyadh")
	data["Jeddah"] = append(data["Jeddah"], plotmap.PlotPoint{ID: "j3", City: "Jeddah", Lat: 21.7, Lng: 39.4, Title: "South"})
	require.NoError(t, f.ctrl.SetData(context.Background(), data))

	assert.ElementsMatch(t, []string{
		plotmap.CityIconName("Jeddah", 3),
		plotmap.PlotIconName,
	}, f.engine.Images())
	layer, ok := f.engine.Layer(mapview.ClusterLayerID)
	require.True(t, ok)
	assert.Equal(t, plotmap.CityIconName("Jeddah", 3), layer.Icon.Resolve(map[string]interface{}{"city": "Jeddah"}))
	assert.True(t, f.ctrl.Snapshot().LayersReady)

	// back to the original data re-renders the dropped badges
	renders := f.renderer.calls.Load()
	require.NoError(t, f.ctrl.SetData(context.Background(), sampleData()))
	assert.Equal(t, renders+2, f.renderer.calls.Load())
	assert.Len(t, f.engine.Images(), 3)
	assert.NotContains(t, f.engine.Images(), plotmap.CityIconName("Jeddah", 3))
}

func TestController_HoverSetsCursor(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))

	f.engine.Hover(mapview.ClusterLayerID, false)
	assert.Equal(t, mapview.CursorPointer, f.engine.Cursor())
	f.engine.Hover(mapview.ClusterLayerID, true)
	assert.Equal(t, "", f.engine.Cursor())
	f.engine.Hover(mapview.PlotLayerID, false)
	assert.Equal(t, mapview.CursorPointer, f.engine.Cursor())
}

func TestController_ResizeIsDebounced(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))

	for i := 0; i < 10; i++ {
		f.ctrl.ObserveResize()
	}
	assert.Eventually(t, func() bool { return f.engine.Resizes() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.engine.Resizes())
}

func TestController_UnmountReleasesEverything(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))
	require.NoError(t, f.ctrl.SelectCity("Jeddah"))
	require.True(t, f.engine.Click(mapview.PlotLayerID, 0))
	f.ctrl.ObserveResize()

	f.ctrl.Unmount()

	assert.True(t, f.engine.Removed())
	assert.Equal(t, 0, f.engine.Listeners())
	assert.Empty(t, f.engine.OpenPopups())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.engine.Resizes())

	err := f.ctrl.SelectCity("Riyadh")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeControllerUnmounted))
	err = f.ctrl.SetData(context.Background(), sampleData())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeControllerUnmounted))

	// idempotent
	f.ctrl.Unmount()
}

func TestController_EngineFactoryFailure(t *testing.T) {
	factory := func(context.Context, mapview.EngineOptions) (mapview.Engine, error) {
		return nil, errors.New("webgl unavailable")
	}
	ctrl := mapview.NewController(mapview.Options{AccessToken: "pk"}, factory, &stubRenderer{}, nil, nil, nil)
	err := ctrl.Mount(context.Background(), sampleData())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEngineUnavailable))
	assert.True(t, ctrl.Snapshot().Placeholder)
}

func TestController_MountTwiceRejected(t *testing.T) {
	f := newFixture(t, "pk.test")
	require.NoError(t, f.ctrl.Mount(context.Background(), sampleData()))
	err := f.ctrl.Mount(context.Background(), sampleData())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))
}

func TestController_ZeroOptionsIsPlaceholder(t *testing.T) {
	ctrl := mapview.NewController(mapview.Options{}, nil, nil, nil, nil, nil)
	require.NoError(t, ctrl.Mount(context.Background(), nil))
	s := ctrl.Snapshot()
	assert.True(t, s.Placeholder)
	assert.Equal(t, 0, s.Cities)
}

//Personal.AI order the ending
