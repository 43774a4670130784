package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/turtacn/PlotAtlas/pkg/errors"
	"github.com/turtacn/PlotAtlas/pkg/types/common"
)

const mapPrefix = common.APIVersionPrefix + "/map"

// Config returns the public map configuration.
func (c *Client) Config(ctx context.Context) (*common.MapConfig, error) {
	var out common.MapConfig
	if err := c.do(ctx, http.MethodGet, mapPrefix+"/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version returns the listing snapshot version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out common.VersionResponse
	if err := c.do(ctx, http.MethodGet, mapPrefix+"/version", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// Clusters returns one point feature per city.
func (c *Client) Clusters(ctx context.Context) (*geojson.FeatureCollection, error) {
	return c.collection(ctx, mapPrefix+"/clusters")
}

// Plots returns the plot features of city.  Unknown cities yield an empty
// collection, not an error.
func (c *Client) Plots(ctx context.Context, city string) (*geojson.FeatureCollection, error) {
	if city == "" {
		return nil, errors.InvalidParam("city is required")
	}
	return c.collection(ctx, mapPrefix+"/cities/"+url.PathEscape(city)+"/plots")
}

func (c *Client) Cities(ctx context.Context) ([]common.CitySummary, error) {
	var out []common.CitySummary
	if err := c.do(ctx, http.MethodGet, mapPrefix+"/cities", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Property(ctx context.Context, id string) (*common.Property, error) {
	if id == "" {
		return nil, errors.InvalidParam("property id is required")
	}
	var out common.Property
	if err := c.do(ctx, http.MethodGet, common.APIVersionPrefix+"/properties/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reconstruct rebuilds a listing from a clicked plot feature.
func (c *Client) Reconstruct(ctx context.Context, req common.ReconstructRequest) (*common.Property, error) {
	var out common.Property
	if err := c.do(ctx, http.MethodPost, mapPrefix+"/reconstruct", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReconstructFeature is Reconstruct over a feature taken from Plots.
func (c *Client) ReconstructFeature(ctx context.Context, f *geojson.Feature) (*common.Property, error) {
	if f == nil {
		return nil, errors.InvalidParam("feature is required")
	}
	return c.Reconstruct(ctx, common.ReconstructRequest{
		PlotData:   f.Properties["plotData"],
		Properties: f.Properties,
	})
}

// IconOptions tune Icon.  Zero values use the server defaults.
type IconOptions struct {
	Count int
	Size  int
}

// CityIcon fetches the PNG cluster marker of city.
func (c *Client) CityIcon(ctx context.Context, city string, opts IconOptions) ([]byte, error) {
	if city == "" {
		return nil, errors.InvalidParam("city is required")
	}
	return c.icon(ctx, city+".png", opts)
}

// PlotIcon fetches the PNG plot marker.
func (c *Client) PlotIcon(ctx context.Context, size int) ([]byte, error) {
	return c.icon(ctx, "plot.png", IconOptions{Size: size})
}

func (c *Client) icon(ctx context.Context, file string, opts IconOptions) ([]byte, error) {
	q := url.Values{}
	if opts.Count > 0 {
		q.Set("count", strconv.Itoa(opts.Count))
	}
	if opts.Size > 0 {
		q.Set("size", strconv.Itoa(opts.Size))
	}
	path := mapPrefix + "/icons/" + url.PathEscape(file)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	raw, _, err := c.doRaw(ctx, http.MethodGet, path, nil, "image/png")
	return raw, err
}

func (c *Client) collection(ctx context.Context, path string) (*geojson.FeatureCollection, error) {
	raw, _, err := c.doRaw(ctx, http.MethodGet, path, nil, "application/geo+json")
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode feature collection")
	}
	return fc, nil
}

//Personal.AI order the ending
