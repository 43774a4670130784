package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/PlotAtlas/internal/application/atlas"
	"github.com/turtacn/PlotAtlas/internal/config"
	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/database/redis"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/errors"
	"github.com/turtacn/PlotAtlas/pkg/types/common"
)

const (
	plotIconFile  = "plot.png"
	iconCacheTTL  = 24 * time.Hour
	iconCacheTmpl = "icon:%s:%d"
	contentPNG    = "image/png"
)

// MapConfigResponse tells the client whether the map can render.
type MapConfigResponse = common.MapConfig

// ReconstructRequest is the body of POST /map/reconstruct.
type ReconstructRequest = common.ReconstructRequest

// MapHandler serves the read model and marker icons.
type MapHandler struct {
	svc      atlas.Service
	renderer atlas.PNGRenderer
	cache    redis.Cache
	cfg      config.MapConfig
	logger   logging.Logger
	group    singleflight.Group
}

// NewMapHandler builds the handler.  cache may be nil.
func NewMapHandler(svc atlas.Service, renderer atlas.PNGRenderer, cache redis.Cache, cfg config.MapConfig, logger logging.Logger) *MapHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.IconSize <= 0 {
		cfg.IconSize = plotmap.DefaultIconSize
	}
	if cfg.PlaceholderImage == "" {
		cfg.PlaceholderImage = plotmap.PlaceholderImage
	}
	return &MapHandler{svc: svc, renderer: renderer, cache: cache, cfg: cfg, logger: logger.Named("map")}
}

// Config handles GET /map/config.
func (h *MapHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MapConfigResponse{
		TokenConfigured: h.cfg.TokenConfigured(),
		StyleURL:        h.cfg.StyleURL,
		Placeholder:     h.cfg.PlaceholderImage,
		IconSize:        h.cfg.IconSize,
		ClusterMaxZoom:  h.cfg.ClusterMaxZoom,
		PlotMaxZoom:     h.cfg.PlotMaxZoom,
	})
}

// Version handles GET /map/version.
func (h *MapHandler) Version(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Version(r.Context())
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, common.VersionResponse{Version: v})
}

// Clusters handles GET /map/clusters.
func (h *MapHandler) Clusters(w http.ResponseWriter, r *http.Request) {
	fc, err := h.svc.Clusters(r.Context())
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeGeoJSON(w, fc)
}

// Cities handles GET /map/cities.
func (h *MapHandler) Cities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.svc.Cities(r.Context())
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cities)
}

// Plots handles GET /map/cities/{city}/plots.  Unknown cities yield an
// empty collection.
func (h *MapHandler) Plots(w http.ResponseWriter, r *http.Request) {
	city, err := pathParam(r, "city")
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	fc, err := h.svc.Plots(r.Context(), city)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeGeoJSON(w, fc)
}

// Property handles GET /properties/{id}.
func (h *MapHandler) Property(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.Property(r.Context(), id)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Reconstruct handles POST /map/reconstruct.  plotData may be an object or
// the JSON string an engine produced when flattening it.
func (h *MapHandler) Reconstruct(w http.ResponseWriter, r *http.Request) {
	var req ReconstructRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	plotData := plotmap.PlotDataFromProperties(map[string]interface{}{"plotData": req.PlotData})
	writeJSON(w, http.StatusOK, h.svc.Reconstruct(plotData, req.Properties))
}

// Icon handles GET /map/icons/{file}: plot.png or {city}.png?count=N.  A
// missing count is taken from the current snapshot.
func (h *MapHandler) Icon(w http.ResponseWriter, r *http.Request) {
	file, err := pathParam(r, "file")
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if !strings.HasSuffix(file, ".png") {
		writeAppError(w, r, h.logger, errors.New(errors.ErrCodeIconNotFound, "icons are served as .png").WithDetail(file))
		return
	}
	desc, err := h.describe(r, file)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	etag := fmt.Sprintf("%q", fmt.Sprintf("%s-%d", desc.Name, desc.Size))
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	png, err := h.iconPNG(r.Context(), desc)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", contentPNG)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *MapHandler) describe(r *http.Request, file string) (plotmap.IconDescriptor, error) {
	size := h.cfg.IconSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 8 || n > 256 {
			return plotmap.IconDescriptor{}, errors.InvalidParam("size must be an integer between 8 and 256")
		}
		size = n
	}
	if file == plotIconFile {
		return plotmap.DescribePlotIcon(size), nil
	}

	city := strings.TrimSuffix(file, ".png")
	if c := r.URL.Query().Get("count"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 0 {
			return plotmap.IconDescriptor{}, errors.InvalidParam("count must be a non-negative integer")
		}
		return plotmap.DescribeCityIcon(city, n, size), nil
	}
	data, err := h.svc.CityData(r.Context())
	if err != nil {
		return plotmap.IconDescriptor{}, err
	}
	n := data.Count(city)
	if n == 0 {
		return plotmap.IconDescriptor{}, errors.Newf(errors.ErrCodeIconNotFound, "no listings in %s", city)
	}
	return plotmap.DescribeCityIcon(city, n, size), nil
}

// iconPNG renders desc once per name and size, sharing concurrent renders
// and the Redis copy when a cache is configured.
func (h *MapHandler) iconPNG(ctx context.Context, desc plotmap.IconDescriptor) ([]byte, error) {
	key := fmt.Sprintf(iconCacheTmpl, desc.Name, desc.Size)
	v, err, _ := h.group.Do(key, func() (interface{}, error) {
		if h.cache != nil {
			if b, err := h.cache.GetBytes(ctx, key); err == nil {
				return b, nil
			}
		}
		b, err := h.renderer.RenderPNG(ctx, desc)
		if err != nil {
			return nil, err
		}
		if h.cache != nil {
			if err := h.cache.SetBytes(ctx, key, b, iconCacheTTL); err != nil {
				h.logger.Warn("icon cache write failed", logging.String("icon", desc.Name), logging.Err(err))
			}
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	v, err := url.PathUnescape(raw)
	if err != nil {
		return "", errors.InvalidParam("malformed path parameter").WithDetail(name)
	}
	return v, nil
}

//Personal.AI order the ending
