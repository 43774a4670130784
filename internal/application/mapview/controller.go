package mapview

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/turtacn/PlotAtlas/internal/config"
	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/internal/domain/property"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/PlotAtlas/pkg/errors"
)

// Engine resource names.
const (
	ClusterSourceID = "city-clusters"
	PlotSourceID    = "city-plots"
	ClusterLayerID  = "city-cluster-layer"
	PlotLayerID     = "city-plot-layer"

	CursorPointer = "pointer"
)

// Mode is the selected-city state.
type Mode string

const (
	ModeAllCities   Mode = "all-cities"
	ModeCityFocused Mode = "city-focused"
)

// Options configure a Controller.
type Options struct {
	AccessToken    string
	StyleURL       string
	ClusterPadding int
	PlotPadding    int
	ClusterMaxZoom float64
	PlotMaxZoom    float64
	ResizeDelay    time.Duration
	IconSize       int
	// Placeholder is the image used by popups for plots without one.
	Placeholder string
	// OnView, when set, is offered to the popup as its "view" action.
	OnView func(property.Property)
}

// OptionsFromConfig maps the map section of the configuration.
func OptionsFromConfig(cfg config.MapConfig) Options {
	return Options{
		AccessToken:    cfg.AccessToken,
		StyleURL:       cfg.StyleURL,
		ClusterPadding: cfg.ClusterPadding,
		PlotPadding:    cfg.PlotPadding,
		ClusterMaxZoom: cfg.ClusterMaxZoom,
		PlotMaxZoom:    cfg.PlotMaxZoom,
		ResizeDelay:    cfg.ResizeDebounce,
		IconSize:       cfg.IconSize,
		Placeholder:    cfg.PlaceholderImage,
	}
}

func (o *Options) applyDefaults() {
	if o.ClusterPadding <= 0 {
		o.ClusterPadding = config.DefaultClusterPadding
	}
	if o.PlotPadding <= 0 {
		o.PlotPadding = config.DefaultPlotPadding
	}
	if o.ClusterMaxZoom <= 0 {
		o.ClusterMaxZoom = config.DefaultClusterMaxZoom
	}
	if o.PlotMaxZoom <= 0 {
		o.PlotMaxZoom = config.DefaultPlotMaxZoom
	}
	if o.ResizeDelay <= 0 {
		o.ResizeDelay = config.DefaultResizeDebounce
	}
	if o.IconSize <= 0 {
		o.IconSize = plotmap.DefaultIconSize
	}
}

// State is a point-in-time view of a Controller.
type State struct {
	Mode            Mode               `json:"mode"`
	SelectedCity    string             `json:"selectedCity,omitempty"`
	Placeholder     bool               `json:"placeholder"`
	Mounted         bool               `json:"mounted"`
	LayersReady     bool               `json:"layersReady"`
	DeferredPending bool               `json:"deferredPending"`
	PopupOpen       bool               `json:"popupOpen"`
	Popup           *property.Property `json:"popup,omitempty"`
	Cities          int                `json:"cities"`
	Plots           int                `json:"plots"`
}

// Controller keeps an Engine in step with the selected-city state.
//
// Engine callbacks and async icon loads may complete after Unmount; every
// such path checks the liveness flag and the init generation before
// touching the engine.
type Controller struct {
	opts     Options
	factory  EngineFactory
	renderer IconRenderer
	popups   PopupRenderer
	recon    plotmap.Reconstructor
	icons    *IconSet
	logger   logging.Logger
	metrics  Metrics

	alive atomic.Bool

	mu          sync.Mutex
	engine      Engine
	placeholder bool
	data        plotmap.CityData
	selected    string
	images      map[string]image.Image
	installed   map[string]struct{}
	generation  uint64
	layersReady bool
	popup       popupState
	deferred    OneShot
	subs        []Unsubscribe
	resize      *Debouncer
}

// NewController wires a Controller.  popups and metrics may be nil.
func NewController(opts Options, factory EngineFactory, renderer IconRenderer, popups PopupRenderer, logger logging.Logger, metrics Metrics) *Controller {
	opts.applyDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Controller{
		opts:     opts,
		factory:  factory,
		renderer: renderer,
		popups:   popups,
		recon:    plotmap.Reconstructor{Placeholder: opts.Placeholder},
		icons:    NewIconSet(opts.IconSize),
		logger:   logger.Named("mapview"),
		metrics:  metrics,
	}
}

// Mount creates the engine and draws data.  Without an access token no
// engine is created and the controller stays in placeholder mode; that is
// not an error.  Mount blocks until icons are loaded.
func (c *Controller) Mount(ctx context.Context, data plotmap.CityData) error {
	c.mu.Lock()
	if c.engine != nil || c.placeholder {
		c.mu.Unlock()
		return apperrors.InvalidState("controller already mounted")
	}
	c.data = data
	if c.opts.AccessToken == "" {
		c.placeholder = true
		c.mu.Unlock()
		c.logger.Warn("map access token not configured, showing placeholder")
		return nil
	}
	if c.factory == nil {
		c.placeholder = true
		c.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeEngineUnavailable, "no engine factory")
	}
	engine, err := c.factory(ctx, EngineOptions{AccessToken: c.opts.AccessToken, StyleURL: c.opts.StyleURL})
	if err != nil {
		c.placeholder = true
		c.mu.Unlock()
		c.logger.Error("map engine failed to initialise", logging.Err(err))
		return apperrors.Wrap(err, apperrors.ErrCodeEngineUnavailable, "create map engine")
	}
	c.engine = engine
	c.alive.Store(true)
	c.resize = NewDebouncer(c.opts.ResizeDelay, c.applyResize)
	c.subscribeLocked()
	c.mu.Unlock()

	return c.initialize(ctx)
}

// SetData replaces the CityData and re-runs initialisation.  The selected
// city is kept; a city that no longer exists shows no plots.
func (c *Controller) SetData(ctx context.Context, data plotmap.CityData) error {
	c.mu.Lock()
	if c.placeholder {
		c.data = data
		c.mu.Unlock()
		return nil
	}
	if !c.alive.Load() {
		c.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeControllerUnmounted, "controller is not mounted")
	}
	c.data = data
	c.mu.Unlock()
	return c.initialize(ctx)
}

// initialize loads every icon the current data needs, then installs layers
// and applies the state.  Layers are never added before all icons resolve.
func (c *Controller) initialize(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.images = nil
	descs := c.icons.Required(c.data)
	c.mu.Unlock()

	start := time.Now()
	images, err := c.icons.Load(ctx, c.renderer, descs)
	c.metrics.IconsLoaded(len(descs), time.Since(start), err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive.Load() || gen != c.generation {
		c.logger.Debug("discarding stale icon load", logging.Int64("generation", int64(gen)))
		return nil
	}
	if err != nil {
		c.logger.Error("marker icons failed to load", logging.Err(err))
		return err
	}
	c.images = images
	c.icons.Retain(descs)
	c.syncLocked()
	return nil
}

// SelectCity focuses a city (cluster click).  It is only valid from
// AllCities.
func (c *Controller) SelectCity(city string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLiveLocked(); err != nil {
		return err
	}
	if c.selected != "" {
		return apperrors.InvalidState("a city is already selected")
	}
	if city == "" {
		return apperrors.InvalidParam("city is required")
	}
	c.popup.teardown()
	c.selected = city
	c.metrics.StateTransition(string(ModeAllCities), string(ModeCityFocused))
	c.logger.Debug("city selected", logging.String("city", city))
	c.syncLocked()
	return nil
}

// BackToCities returns to AllCities.  It is a no-op when nothing is selected.
func (c *Controller) BackToCities() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLiveLocked(); err != nil {
		return err
	}
	if c.selected == "" {
		return nil
	}
	c.popup.teardown()
	c.selected = ""
	c.metrics.StateTransition(string(ModeCityFocused), string(ModeAllCities))
	c.syncLocked()
	return nil
}

// OpenPopup reconstructs the property behind a plot feature and shows it,
// replacing any open popup.
func (c *Controller) OpenPopup(f *geojson.Feature) error {
	if f == nil {
		return apperrors.New(apperrors.ErrCodeFeatureInvalid, "feature is nil")
	}
	at, ok := f.Geometry.(orb.Point)
	if !ok {
		return apperrors.New(apperrors.ErrCodeFeatureInvalid, "feature geometry is not a point")
	}

	c.mu.Lock()
	if err := c.checkLiveLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.selected == "" {
		c.mu.Unlock()
		return apperrors.InvalidState("no city selected")
	}
	c.popup.teardown()
	p := c.recon.ReconstructFeature(f)
	handle, err := c.engine.CreatePopup(at)
	if err != nil {
		c.mu.Unlock()
		return apperrors.Wrap(err, apperrors.ErrCodeEngineUnavailable, "create popup")
	}
	c.popup = popupState{handle: handle, prop: &p}
	renderer := c.popups
	c.mu.Unlock()

	c.metrics.PopupOpened()
	if renderer == nil {
		return nil
	}
	actions := PopupActions{OnClose: func() { c.closeHandle(handle) }}
	if c.opts.OnView != nil {
		view := c.opts.OnView
		actions.OnView = func() { view(p) }
	}
	if err := renderer.Render(handle, p, actions); err != nil {
		c.logger.Warn("popup render failed", logging.String("property", p.ID), logging.Err(err))
	}
	return nil
}

// ClosePopup closes the open popup, if any.
func (c *Controller) ClosePopup() {
	c.mu.Lock()
	c.popup.teardown()
	c.mu.Unlock()
}

// closeHandle closes the popup only if it is still the one behind handle.
func (c *Controller) closeHandle(handle OverlayHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.popup.handle == handle {
		c.popup.teardown()
	}
}

// ObserveResize notes a container size change.  The engine is resized once
// the changes settle.
func (c *Controller) ObserveResize() {
	c.mu.Lock()
	d := c.resize
	c.mu.Unlock()
	if d != nil && c.alive.Load() {
		d.Trigger()
	}
}

func (c *Controller) applyResize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive.Load() || c.engine == nil {
		return
	}
	c.engine.Resize()
}

// Unmount releases the engine, listeners, timers and popup.  Late callbacks
// become no-ops.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive.Store(false)
	c.generation++
	c.deferred.Cancel()
	if c.resize != nil {
		c.resize.Stop()
	}
	c.popup.teardown()
	for _, unsub := range c.subs {
		unsub()
	}
	c.subs = nil
	if c.engine != nil {
		c.engine.Remove()
		c.engine = nil
	}
	c.layersReady = false
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Mode:            ModeAllCities,
		SelectedCity:    c.selected,
		Placeholder:     c.placeholder,
		Mounted:         c.alive.Load(),
		LayersReady:     c.layersReady && c.installedLocked(),
		DeferredPending: c.deferred.Pending(),
		PopupOpen:       c.popup.open(),
		Cities:          len(c.data),
		Plots:           c.data.Len(),
	}
	if c.selected != "" {
		s.Mode = ModeCityFocused
	}
	if c.popup.prop != nil {
		p := *c.popup.prop
		s.Popup = &p
	}
	return s
}

// VisiblePlots returns the plot features of the selected city.
func (c *Controller) VisiblePlots() *geojson.FeatureCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return plotmap.Expand(c.data, c.selected)
}

// Clusters returns the cluster features for the current data.
func (c *Controller) Clusters() *geojson.FeatureCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return plotmap.BuildClusters(c.data)
}

func (c *Controller) checkLiveLocked() error {
	if c.placeholder {
		return apperrors.New(apperrors.ErrCodeConfigurationMissing, "map engine is not available")
	}
	if !c.alive.Load() || c.engine == nil {
		return apperrors.New(apperrors.ErrCodeControllerUnmounted, "controller is not mounted")
	}
	return nil
}

func (c *Controller) subscribeLocked() {
	e := c.engine
	c.subs = append(c.subs,
		e.On(EventClick, ClusterLayerID, c.onClusterClick),
		e.On(EventClick, PlotLayerID, c.onPlotClick),
	)
	for _, layer := range []string{ClusterLayerID, PlotLayerID} {
		c.subs = append(c.subs,
			e.On(EventMouseEnter, layer, func(Event) { c.setCursor(CursorPointer) }),
			e.On(EventMouseLeave, layer, func(Event) { c.setCursor("") }),
		)
	}
	c.subs = append(c.subs, e.On(EventLoad, "", c.onStyleLoad))
}

// onStyleLoad restores what a style reload dropped.  When a deferred update
// is armed it replays on the same event and does the work instead.
func (c *Controller) onStyleLoad(Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive.Load() || c.images == nil || c.deferred.Pending() || c.installedLocked() {
		return
	}
	c.layersReady = false
	c.logger.Info("map style reloaded, reinstalling layers")
	c.syncLocked()
}

// installedLocked reports whether the engine still holds every image and
// layer the controller installed.
func (c *Controller) installedLocked() bool {
	e := c.engine
	if e == nil || !e.IsStyleLoaded() || !e.HasLayer(ClusterLayerID) || !e.HasLayer(PlotLayerID) {
		return false
	}
	for name := range c.images {
		if !e.HasImage(name) {
			return false
		}
	}
	return true
}

func (c *Controller) onClusterClick(e Event) {
	if !c.alive.Load() || len(e.Features) == 0 || e.Features[0] == nil {
		return
	}
	city, _ := e.Features[0].Properties["city"].(string)
	if err := c.SelectCity(city); err != nil {
		c.logger.Debug("cluster click ignored", logging.String("city", city), logging.Err(err))
	}
}

func (c *Controller) onPlotClick(e Event) {
	if !c.alive.Load() || len(e.Features) == 0 {
		return
	}
	if err := c.OpenPopup(e.Features[0]); err != nil {
		c.logger.Debug("plot click ignored", logging.Err(err))
	}
}

func (c *Controller) setCursor(cursor string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.alive.Load() && c.engine != nil {
		c.engine.SetCursor(cursor)
	}
}

// syncLocked brings the engine in line with the state, deferring to the next
// style load when the style is not ready.
func (c *Controller) syncLocked() {
	if c.images == nil || c.engine == nil {
		return
	}
	if !c.engine.IsStyleLoaded() {
		c.layersReady = false
		engine := c.engine
		if c.deferred.Arm(func(h Handler) Unsubscribe { return engine.On(EventLoad, "", h) }, c.replay) {
			c.metrics.DeferredUpdate()
			c.logger.Debug("style not loaded, deferring update")
		}
		return
	}
	if err := c.installLocked(); err != nil {
		c.layersReady = false
		c.logger.Error("failed to install map layers", logging.Err(err))
		return
	}
	if c.selected == "" {
		c.showAllCitiesLocked()
	} else {
		c.showCityLocked(c.selected)
	}
}

func (c *Controller) replay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive.Load() {
		return
	}
	c.syncLocked()
}

// installLocked registers images, then sources, then layers.  Each step is
// skipped when the engine already has the resource.  Images the current data
// no longer needs are dropped once the cluster layer stops referencing them.
func (c *Controller) installLocked() error {
	e := c.engine
	if c.installed == nil {
		c.installed = make(map[string]struct{}, len(c.images))
	}
	for name, img := range c.images {
		c.installed[name] = struct{}{}
		if e.HasImage(name) {
			continue
		}
		if err := e.AddImage(name, img); err != nil {
			return err
		}
	}
	for _, id := range []string{ClusterSourceID, PlotSourceID} {
		if e.HasSource(id) {
			continue
		}
		if err := e.AddSource(id, geojson.NewFeatureCollection()); err != nil {
			return err
		}
	}

	clusterIcon := c.clusterIconLocked()
	if e.HasLayer(ClusterLayerID) {
		if err := e.SetLayerIcon(ClusterLayerID, clusterIcon); err != nil {
			return err
		}
	} else if err := e.AddLayer(LayerSpec{ID: ClusterLayerID, Source: ClusterSourceID, Icon: clusterIcon}); err != nil {
		return err
	}
	if !e.HasLayer(PlotLayerID) {
		if err := e.AddLayer(LayerSpec{ID: PlotLayerID, Source: PlotSourceID, Icon: IconRef{Name: plotmap.PlotIconName}}); err != nil {
			return err
		}
	}
	c.pruneImagesLocked()
	c.layersReady = true
	return nil
}

func (c *Controller) pruneImagesLocked() {
	for name := range c.installed {
		if _, ok := c.images[name]; ok {
			continue
		}
		delete(c.installed, name)
		if c.engine.HasImage(name) {
			c.logErr("remove image", c.engine.RemoveImage(name))
		}
	}
}

func (c *Controller) clusterIconLocked() IconRef {
	ref := IconRef{Property: "city", Cases: make(map[string]string, len(c.data))}
	for _, city := range c.data.Cities() {
		if n := c.data.Count(city); n > 0 {
			ref.Cases[city] = c.icons.City(city, n).Name
		}
	}
	return ref
}

func (c *Controller) showAllCitiesLocked() {
	e := c.engine
	clusters := plotmap.BuildClusters(c.data)
	c.logErr("set cluster filter", e.SetFilter(ClusterLayerID, MatchAll))
	c.logErr("set cluster data", e.SetSourceData(ClusterSourceID, clusters))
	c.logErr("clear plot data", e.SetSourceData(PlotSourceID, geojson.NewFeatureCollection()))
	if b, ok := plotmap.FeatureBounds(clusters); ok {
		e.FitBounds(b, FitOptions{Padding: c.opts.ClusterPadding, MaxZoom: c.opts.ClusterMaxZoom})
	}
}

func (c *Controller) showCityLocked(city string) {
	e := c.engine
	c.logErr("hide clusters", e.SetFilter(ClusterLayerID, MatchNothing))
	c.logErr("set plot data", e.SetSourceData(PlotSourceID, plotmap.Expand(c.data, city)))
	if b, ok := plotmap.CityBounds(c.data, city); ok {
		e.FitBounds(b, FitOptions{Padding: c.opts.PlotPadding, MaxZoom: c.opts.PlotMaxZoom})
	}
}

func (c *Controller) logErr(op string, err error) {
	if err != nil {
		c.logger.Warn("engine call failed", logging.String("op", op), logging.Err(err))
	}
}

//Personal.AI order the ending
