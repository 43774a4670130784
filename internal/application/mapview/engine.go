// Package mapview drives an external map-rendering engine from CityData.
//
// The Controller owns the selected-city state (AllCities or CityFocused),
// keeps the engine's sources, layers, icons and camera in step with it, and
// manages the single open popup.  The engine is a black box behind the
// Engine interface; internal/infrastructure/mapengine/memory implements it
// in-process.
package mapview

import (
	"context"
	"image"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/internal/domain/property"
)

// EventType names an engine event.
type EventType string

const (
	EventClick      EventType = "click"
	EventMouseEnter EventType = "mouseenter"
	EventMouseLeave EventType = "mouseleave"
	// EventLoad fires whenever the style finishes (re)loading.
	EventLoad EventType = "load"
)

// Event is delivered to handlers registered with Engine.On.
type Event struct {
	Type     EventType
	LayerID  string
	Features []*geojson.Feature
	LngLat   orb.Point
}

// Handler receives engine events.
type Handler func(Event)

// Unsubscribe removes a handler.  Calling it more than once is harmless.
type Unsubscribe func()

// FitOptions parameterise a camera fit.
type FitOptions struct {
	Padding  int
	MaxZoom  float64
	Duration time.Duration
}

// IconRef selects the image a symbol layer draws.  When Property is set the
// image is looked up per feature in Cases, otherwise Name is used.
type IconRef struct {
	Name     string
	Property string
	Cases    map[string]string
}

// Resolve returns the image name for a feature with props.
func (r IconRef) Resolve(props map[string]interface{}) string {
	if r.Property == "" {
		return r.Name
	}
	if v, ok := props[r.Property].(string); ok {
		if name, ok := r.Cases[v]; ok {
			return name
		}
	}
	return r.Name
}

// Names lists every image the reference can resolve to.
func (r IconRef) Names() []string {
	out := make([]string, 0, len(r.Cases)+1)
	if r.Name != "" {
		out = append(out, r.Name)
	}
	for _, n := range r.Cases {
		out = append(out, n)
	}
	return out
}

// LayerSpec describes a symbol layer bound to a source.
type LayerSpec struct {
	ID     string
	Source string
	Icon   IconRef
	Filter Filter
}

// EngineOptions are passed to an EngineFactory.
type EngineOptions struct {
	AccessToken string
	StyleURL    string
}

// Engine is the rendering collaborator.  Implementations must never invoke a
// handler synchronously from inside On or while holding their own locks.
type Engine interface {
	IsStyleLoaded() bool
	// On subscribes h to event.  layerID scopes the subscription; "" is map-wide.
	On(event EventType, layerID string, h Handler) Unsubscribe

	AddSource(id string, fc *geojson.FeatureCollection) error
	SetSourceData(id string, fc *geojson.FeatureCollection) error
	HasSource(id string) bool

	AddLayer(spec LayerSpec) error
	HasLayer(id string) bool
	SetFilter(layerID string, f Filter) error
	SetLayerIcon(layerID string, icon IconRef) error

	AddImage(name string, img image.Image) error
	HasImage(name string) bool
	// RemoveImage drops an image no layer references any more.
	RemoveImage(name string) error

	FitBounds(b orb.Bound, opts FitOptions)
	Resize()
	SetCursor(cursor string)

	// CreatePopup returns a detached overlay anchored at a point.
	CreatePopup(at orb.Point) (OverlayHandle, error)
	Remove()
}

// EngineFactory creates an engine.  It is only called when an access token
// is configured.
type EngineFactory func(ctx context.Context, opts EngineOptions) (Engine, error)

// OverlayHandle is a popup container owned by the Controller.
type OverlayHandle interface {
	ID() string
	Remove()
}

// PopupActions are the callbacks offered to the popup UI.
type PopupActions struct {
	OnClose func()
	// OnView is nil when no view callback is configured.
	OnView func()
}

// PopupRenderer draws a property card into an overlay.
type PopupRenderer interface {
	Render(handle OverlayHandle, p property.Property, actions PopupActions) error
}

// IconRenderer rasterises marker icons.
type IconRenderer interface {
	Render(ctx context.Context, desc plotmap.IconDescriptor) (image.Image, error)
}

//Personal.AI order the ending
