package memory

import (
	"context"
	"image"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PlotAtlas/internal/application/mapview"
	"github.com/turtacn/PlotAtlas/internal/domain/property"
	apperrors "github.com/turtacn/PlotAtlas/pkg/errors"
)

func pointFC(props ...map[string]interface{}) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, p := range props {
		f := geojson.NewFeature(orb.Point{float64(i), float64(i)})
		f.Properties = p
		fc.Append(f)
	}
	return fc
}

func TestEngine_LayerRequiresSourceAndIcons(t *testing.T) {
	e := NewEngine()
	spec := mapview.LayerSpec{ID: "l", Source: "s", Icon: mapview.IconRef{Name: "pin"}}

	err := e.AddLayer(spec)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, e.AddSource("s", nil))
	err = e.AddLayer(spec)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeIconNotFound))

	require.NoError(t, e.AddImage("pin", image.NewRGBA(image.Rect(0, 0, 1, 1))))
	require.NoError(t, e.AddLayer(spec))
	assert.True(t, e.HasLayer("l"))

	assert.True(t, apperrors.IsCode(e.AddLayer(spec), apperrors.ErrCodeConflict))
	assert.True(t, apperrors.IsCode(e.AddSource("s", nil), apperrors.ErrCodeConflict))
	assert.Equal(t, []string{"addSource:s", "addImage:pin", "addLayer:l"}, e.Ops())
}

func TestEngine_RejectsMutationWhileLoading(t *testing.T) {
	e := NewEngine(WithStyleLoading())
	assert.False(t, e.IsStyleLoaded())
	assert.Error(t, e.AddSource("s", nil))
	assert.Error(t, e.AddImage("i", image.NewRGBA(image.Rect(0, 0, 1, 1))))

	loads := 0
	e.On(mapview.EventLoad, "", func(mapview.Event) { loads++ })
	e.FinishStyleLoad()
	assert.Equal(t, 1, loads)
	assert.True(t, e.IsStyleLoaded())
	assert.NoError(t, e.AddSource("s", nil))
}

func TestEngine_FilterAndVisibleFeatures(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.AddSource("s", pointFC(
		map[string]interface{}{"city": "Jeddah"},
		map[string]interface{}{"city": "Riyadh"},
	)))
	require.NoError(t, e.AddImage("pin", image.NewRGBA(image.Rect(0, 0, 1, 1))))
	require.NoError(t, e.AddLayer(mapview.LayerSpec{ID: "l", Source: "s", Icon: mapview.IconRef{Name: "pin"}}))

	assert.Len(t, e.VisibleFeatures("l"), 2)
	require.NoError(t, e.SetFilter("l", mapview.Eq("city", "Riyadh")))
	assert.Len(t, e.VisibleFeatures("l"), 1)
	require.NoError(t, e.SetFilter("l", mapview.MatchNothing))
	assert.Empty(t, e.VisibleFeatures("l"))
	assert.False(t, e.Click("l", 0))

	assert.True(t, apperrors.IsNotFound(e.SetFilter("missing", nil)))
	assert.True(t, apperrors.IsNotFound(e.SetSourceData("missing", nil)))
}

func TestEngine_ClickDeliversToLayerListeners(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.AddSource("s", pointFC(map[string]interface{}{"id": "a"})))
	require.NoError(t, e.AddImage("pin", image.NewRGBA(image.Rect(0, 0, 1, 1))))
	require.NoError(t, e.AddLayer(mapview.LayerSpec{ID: "l", Source: "s", Icon: mapview.IconRef{Name: "pin"}}))

	var got []mapview.Event
	unsub := e.On(mapview.EventClick, "l", func(ev mapview.Event) { got = append(got, ev) })
	e.On(mapview.EventClick, "other", func(mapview.Event) { t.Fatal("wrong layer") })

	require.True(t, e.Click("l", 0))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Features[0].Properties["id"])
	assert.Equal(t, orb.Point{0, 0}, got[0].LngLat)

	unsub()
	unsub()
	e.Click("l", 0)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, e.Listeners())
}

func TestEngine_ReloadStyleDropsResources(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.AddSource("s", nil))
	require.NoError(t, e.AddImage("pin", image.NewRGBA(image.Rect(0, 0, 1, 1))))
	e.ReloadStyle()
	assert.False(t, e.HasSource("s"))
	assert.False(t, e.HasImage("pin"))
	assert.False(t, e.IsStyleLoaded())
}

func TestEngine_RemoveImageRespectsLayers(t *testing.T) {
	e := NewEngine()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	require.NoError(t, e.AddSource("s", nil))
	require.NoError(t, e.AddImage("old", img))
	require.NoError(t, e.AddImage("new", img))
	require.NoError(t, e.AddLayer(mapview.LayerSpec{ID: "l", Source: "s", Icon: mapview.IconRef{Name: "old"}}))

	err := e.RemoveImage("old")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))

	require.NoError(t, e.SetLayerIcon("l", mapview.IconRef{Name: "new"}))
	require.NoError(t, e.RemoveImage("old"))
	assert.Equal(t, []string{"new"}, e.Images())
	assert.True(t, apperrors.IsNotFound(e.RemoveImage("old")))
}

func TestEngine_PopupsAndRenderer(t *testing.T) {
	e := NewEngine()
	h, err := e.CreatePopup(orb.Point{39.2, 21.5})
	require.NoError(t, err)
	require.Len(t, e.OpenPopups(), 1)

	closed := false
	require.NoError(t, PopupRenderer{}.Render(h, property.Property{ID: "p1"}, mapview.PopupActions{OnClose: func() { closed = true }}))
	p := e.OpenPopups()[0]
	content, ok := p.Content()
	require.True(t, ok)
	assert.Equal(t, "p1", content.ID)
	assert.False(t, p.PressView())
	p.PressClose()
	assert.True(t, closed)

	h.Remove()
	h.Remove()
	assert.Empty(t, e.OpenPopups())
}

func TestEngine_RemoveStopsEverything(t *testing.T) {
	e := NewEngine()
	called := false
	e.On(mapview.EventLoad, "", func(mapview.Event) { called = true })
	e.Remove()
	e.Emit(mapview.Event{Type: mapview.EventLoad})
	assert.False(t, called)
	assert.True(t, e.Removed())
	assert.False(t, e.IsStyleLoaded())
	_, err := e.CreatePopup(orb.Point{})
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	var made *Engine
	f := Factory(func(e *Engine) { made = e })

	_, err := f(context.Background(), mapview.EngineOptions{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigurationMissing))

	eng, err := f(context.Background(), mapview.EngineOptions{AccessToken: "pk", StyleURL: "mapbox://styles/x"})
	require.NoError(t, err)
	assert.Same(t, made, eng)
	assert.Equal(t, "mapbox://styles/x", made.Options().StyleURL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f(ctx, mapview.EngineOptions{AccessToken: "pk"})
	assert.ErrorIs(t, err, context.Canceled)
}

//Personal.AI order the ending
