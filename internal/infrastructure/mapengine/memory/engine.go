// Package memory is an in-process map engine.  It records every call, keeps
// sources, layers and images like a real renderer would and rejects calls
// that a real renderer would reject: layers before their source or icons,
// and any mutation while the style is loading.
package memory

import (
	"context"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/turtacn/PlotAtlas/internal/application/mapview"
	apperrors "github.com/turtacn/PlotAtlas/pkg/errors"
)

// Camera is the last FitBounds call.
type Camera struct {
	Bound orb.Bound
	Opts  mapview.FitOptions
}

type listener struct {
	id      uint64
	event   mapview.EventType
	layerID string
	h       mapview.Handler
}

var _ mapview.Engine = (*Engine)(nil)

// Engine implements mapview.Engine.
type Engine struct {
	mu          sync.Mutex
	opts        mapview.EngineOptions
	styleLoaded bool
	removed     bool
	sources     map[string]*geojson.FeatureCollection
	layers      map[string]*mapview.LayerSpec
	layerOrder  []string
	images      map[string]image.Image
	listeners   map[uint64]listener
	nextID      uint64
	popups      map[string]*Popup
	popupSeq    int
	camera      *Camera
	fits        int
	resizes     int
	cursor      string
	ops         []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithStyleLoading starts the engine with its style still loading.  Call
// FinishStyleLoad to complete it.
func WithStyleLoading() Option {
	return func(e *Engine) { e.styleLoaded = false }
}

// NewEngine returns an engine whose style is loaded.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		styleLoaded: true,
		sources:     make(map[string]*geojson.FeatureCollection),
		layers:      make(map[string]*mapview.LayerSpec),
		images:      make(map[string]image.Image),
		listeners:   make(map[uint64]listener),
		popups:      make(map[string]*Popup),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Factory returns a mapview.EngineFactory producing memory engines.  created,
// when non-nil, receives each engine.
func Factory(created func(*Engine), opts ...Option) mapview.EngineFactory {
	return func(ctx context.Context, eo mapview.EngineOptions) (mapview.Engine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if eo.AccessToken == "" {
			return nil, apperrors.New(apperrors.ErrCodeConfigurationMissing, "access token is required")
		}
		e := NewEngine(opts...)
		e.opts = eo
		if created != nil {
			created(e)
		}
		return e, nil
	}
}

func (e *Engine) record(format string, args ...interface{}) {
	e.ops = append(e.ops, fmt.Sprintf(format, args...))
}

func (e *Engine) checkMutable() error {
	if e.removed {
		return apperrors.InvalidState("engine removed")
	}
	if !e.styleLoaded {
		return apperrors.InvalidState("style is not done loading")
	}
	return nil
}

func (e *Engine) IsStyleLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.styleLoaded && !e.removed
}

func (e *Engine) On(event mapview.EventType, layerID string, h mapview.Handler) mapview.Unsubscribe {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners[id] = listener{id: id, event: event, layerID: layerID, h: h}
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, id)
			e.mu.Unlock()
		})
	}
}

func (e *Engine) AddSource(id string, fc *geojson.FeatureCollection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return err
	}
	if _, ok := e.sources[id]; ok {
		return apperrors.Newf(apperrors.ErrCodeConflict, "source %s already exists", id)
	}
	e.sources[id] = orEmpty(fc)
	e.record("addSource:%s", id)
	return nil
}

func (e *Engine) SetSourceData(id string, fc *geojson.FeatureCollection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return err
	}
	if _, ok := e.sources[id]; !ok {
		return apperrors.Newf(apperrors.ErrCodeNotFound, "source %s not found", id)
	}
	e.sources[id] = orEmpty(fc)
	e.record("setData:%s:%d", id, len(e.sources[id].Features))
	return nil
}

func (e *Engine) HasSource(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sources[id]
	return ok
}

func (e *Engine) AddLayer(spec mapview.LayerSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return err
	}
	if _, ok := e.layers[spec.ID]; ok {
		return apperrors.Newf(apperrors.ErrCodeConflict, "layer %s already exists", spec.ID)
	}
	if _, ok := e.sources[spec.Source]; !ok {
		return apperrors.Newf(apperrors.ErrCodeNotFound, "layer %s references missing source %s", spec.ID, spec.Source)
	}
	if err := e.checkIcons(spec.ID, spec.Icon); err != nil {
		return err
	}
	s := spec
	e.layers[spec.ID] = &s
	e.layerOrder = append(e.layerOrder, spec.ID)
	e.record("addLayer:%s", spec.ID)
	return nil
}

func (e *Engine) checkIcons(layerID string, ref mapview.IconRef) error {
	for _, name := range ref.Names() {
		if _, ok := e.images[name]; !ok {
			return apperrors.Newf(apperrors.ErrCodeIconNotFound, "layer %s references missing image %s", layerID, name)
		}
	}
	return nil
}

func (e *Engine) HasLayer(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.layers[id]
	return ok
}

func (e *Engine) SetFilter(layerID string, f mapview.Filter) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return err
	}
	l, ok := e.layers[layerID]
	if !ok {
		return apperrors.Newf(apperrors.ErrCodeNotFound, "layer %s not found", layerID)
	}
	l.Filter = f
	e.record("setFilter:%s:%v", layerID, f.IsMatchNothing())
	return nil
}

func (e *Engine) SetLayerIcon(layerID string, icon mapview.IconRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return err
	}
	l, ok := e.layers[layerID]
	if !ok {
		return apperrors.Newf(apperrors.ErrCodeNotFound, "layer %s not found", layerID)
	}
	if err := e.checkIcons(layerID, icon); err != nil {
		return err
	}
	l.Icon = icon
	e.record("setIcon:%s", layerID)
	return nil
}

func (e *Engine) AddImage(name string, img image.Image) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return err
	}
	if img == nil {
		return apperrors.InvalidParam("image is nil")
	}
	if _, ok := e.images[name]; ok {
		return apperrors.Newf(apperrors.ErrCodeConflict, "image %s already exists", name)
	}
	e.images[name] = img
	e.record("addImage:%s", name)
	return nil
}

func (e *Engine) HasImage(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.images[name]
	return ok
}

func (e *Engine) RemoveImage(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMutable(); err != nil {
		return err
	}
	if _, ok := e.images[name]; !ok {
		return apperrors.Newf(apperrors.ErrCodeNotFound, "image %s not found", name)
	}
	for _, id := range e.layerOrder {
		for _, ref := range e.layers[id].Icon.Names() {
			if ref == name {
				return apperrors.Newf(apperrors.ErrCodeConflict, "image %s is used by layer %s", name, id)
			}
		}
	}
	delete(e.images, name)
	e.record("removeImage:%s", name)
	return nil
}

func (e *Engine) FitBounds(b orb.Bound, opts mapview.FitOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return
	}
	e.camera = &Camera{Bound: b, Opts: opts}
	e.fits++
	e.record("fitBounds:%d", opts.Padding)
}

func (e *Engine) Resize() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resizes++
}

func (e *Engine) SetCursor(cursor string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor = cursor
}

func (e *Engine) CreatePopup(at orb.Point) (mapview.OverlayHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, apperrors.InvalidState("engine removed")
	}
	e.popupSeq++
	p := &Popup{id: fmt.Sprintf("popup-%d", e.popupSeq), at: at, engine: e}
	e.popups[p.id] = p
	e.record("popup:%s", p.id)
	return p, nil
}

func (e *Engine) Remove() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = true
	e.listeners = make(map[uint64]listener)
	e.popups = make(map[string]*Popup)
	e.record("remove")
}

// ─── test and simulation helpers ────────────────────────────────────────────

// Emit delivers an event to matching listeners, outside the engine lock.
func (e *Engine) Emit(evt mapview.Event) {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return
	}
	ids := make([]uint64, 0, len(e.listeners))
	for id, l := range e.listeners {
		if l.event == evt.Type && l.layerID == evt.LayerID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	hs := make([]mapview.Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, e.listeners[id].h)
	}
	e.mu.Unlock()

	for _, h := range hs {
		h(evt)
	}
}

// Click emits a click on the i-th visible feature of a layer.  It reports
// false when no such feature is visible.
func (e *Engine) Click(layerID string, i int) bool {
	fs := e.VisibleFeatures(layerID)
	if i < 0 || i >= len(fs) {
		return false
	}
	f := fs[i]
	var at orb.Point
	if p, ok := f.Geometry.(orb.Point); ok {
		at = p
	}
	e.Emit(mapview.Event{Type: mapview.EventClick, LayerID: layerID, Features: []*geojson.Feature{f}, LngLat: at})
	return true
}

// Hover emits mouseenter (or mouseleave when leave is set) on a layer.
func (e *Engine) Hover(layerID string, leave bool) {
	t := mapview.EventMouseEnter
	if leave {
		t = mapview.EventMouseLeave
	}
	e.Emit(mapview.Event{Type: t, LayerID: layerID})
}

// ReloadStyle drops every source, layer and image and marks the style as
// loading.
func (e *Engine) ReloadStyle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.styleLoaded = false
	e.sources = make(map[string]*geojson.FeatureCollection)
	e.layers = make(map[string]*mapview.LayerSpec)
	e.layerOrder = nil
	e.images = make(map[string]image.Image)
	e.record("reloadStyle")
}

// FinishStyleLoad marks the style loaded and emits the load event.
func (e *Engine) FinishStyleLoad() {
	e.mu.Lock()
	e.styleLoaded = true
	e.mu.Unlock()
	e.Emit(mapview.Event{Type: mapview.EventLoad})
}

// VisibleFeatures returns the features of a layer's source that pass its
// filter.
func (e *Engine) VisibleFeatures(layerID string) []*geojson.Feature {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.layers[layerID]
	if !ok {
		return nil
	}
	src := e.sources[l.Source]
	if src == nil {
		return nil
	}
	var out []*geojson.Feature
	for _, f := range src.Features {
		if l.Filter.Matches(f.Properties) {
			out = append(out, f)
		}
	}
	return out
}

// Source returns a source's current data.
func (e *Engine) Source(id string) (*geojson.FeatureCollection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fc, ok := e.sources[id]
	return fc, ok
}

// Layer returns a copy of a layer spec.
func (e *Engine) Layer(id string) (mapview.LayerSpec, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.layers[id]
	if !ok {
		return mapview.LayerSpec{}, false
	}
	return *l, true
}

// Images returns the registered image names, sorted.
func (e *Engine) Images() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.images))
	for n := range e.images {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Image returns a registered image.
func (e *Engine) Image(name string) (image.Image, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	img, ok := e.images[name]
	return img, ok
}

// Camera returns the last fit and the number of fits so far.
func (e *Engine) Camera() (*Camera, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.camera == nil {
		return nil, e.fits
	}
	c := *e.camera
	return &c, e.fits
}

// Resizes returns how many times Resize was called.
func (e *Engine) Resizes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resizes
}

// Cursor returns the current cursor.
func (e *Engine) Cursor() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// OpenPopups returns the popups not yet removed, ordered by id.
func (e *Engine) OpenPopups() []*Popup {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Popup, 0, len(e.popups))
	for _, p := range e.popups {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Listeners returns the number of registered listeners.
func (e *Engine) Listeners() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Removed reports whether Remove was called.
func (e *Engine) Removed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removed
}

// Options returns the options the engine was created with.
func (e *Engine) Options() mapview.EngineOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// Ops returns the recorded mutation log.
func (e *Engine) Ops() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ops...)
}

func orEmpty(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	if fc == nil {
		return geojson.NewFeatureCollection()
	}
	return fc
}

//Personal.AI order the ending
