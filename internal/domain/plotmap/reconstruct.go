package plotmap

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/turtacn/PlotAtlas/internal/domain/property"
)

// Fallback values used when neither the feature nor its snapshot carries a field.
const (
	PlaceholderImage = "/images/plot-placeholder.jpg"
	UnknownID        = "unknown"
	UnknownSlug      = "unknown"
	UntitledPlot     = "Untitled Plot"
	UnknownCity      = "Unknown City"
)

// Reconstructor rebuilds properties with a configurable placeholder image.
type Reconstructor struct {
	Placeholder string
}

// Reconstruct uses the package placeholder image.
func Reconstruct(plotData, featureProps map[string]interface{}) property.Property {
	return Reconstructor{Placeholder: PlaceholderImage}.Reconstruct(plotData, featureProps)
}

// Reconstruct builds a Property field by field: feature properties first, the
// plotData snapshot second, a fixed default last.  Featured is always true
// because popup cards use the featured style.  Nil maps are fine.
func (r Reconstructor) Reconstruct(plotData, featureProps map[string]interface{}) property.Property {
	placeholder := r.Placeholder
	if placeholder == "" {
		placeholder = PlaceholderImage
	}
	sources := []map[string]interface{}{featureProps, plotData}

	slug := firstString(sources, "slug")
	if slug == "" {
		if name := firstString(sources, "name"); name != "" {
			slug = property.Slugify(name)
		}
	}
	if slug == "" {
		slug = UnknownSlug
	}

	status := firstString(sources, "status")
	if status == "" {
		status = string(property.StatusAvailable)
	}

	return property.Property{
		ID:          orDefault(firstString(sources, "id"), UnknownID),
		Slug:        slug,
		Title:       orDefault(firstString(sources, "title"), UntitledPlot),
		City:        orDefault(firstString(sources, "city"), UnknownCity),
		Area:        firstNumber(sources, "area"),
		Electricity: firstString(sources, "electricity"),
		Gas:         firstString(sources, "gas"),
		Water:       firstString(sources, "water"),
		Image:       orDefault(firstString(sources, "image"), placeholder),
		Status:      property.Status(status),
		Featured:    true,
	}
}

// PlotDataFromFeature extracts the nested snapshot from a plot feature.
// Engines that flatten nested values deliver it as a JSON string; both forms
// are accepted.  Anything else yields an empty map.
func PlotDataFromFeature(f *geojson.Feature) map[string]interface{} {
	if f == nil {
		return map[string]interface{}{}
	}
	return PlotDataFromProperties(f.Properties)
}

// PlotDataFromProperties is PlotDataFromFeature over a bare property bag.
func PlotDataFromProperties(props map[string]interface{}) map[string]interface{} {
	switch v := props["plotData"].(type) {
	case map[string]interface{}:
		return v
	case geojson.Properties:
		return v
	case string:
		out := map[string]interface{}{}
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out
		}
	}
	return map[string]interface{}{}
}

// ReconstructFeature reconstructs straight from a clicked feature.
func (r Reconstructor) ReconstructFeature(f *geojson.Feature) property.Property {
	if f == nil {
		return r.Reconstruct(nil, nil)
	}
	return r.Reconstruct(PlotDataFromFeature(f), f.Properties)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// firstString returns the first non-empty string (or stringified number)
// stored under key.
func firstString(sources []map[string]interface{}, key string) string {
	for _, src := range sources {
		if src == nil {
			continue
		}
		switch v := src[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

// firstNumber returns the first non-zero numeric value stored under key.
func firstNumber(sources []map[string]interface{}, key string) float64 {
	for _, src := range sources {
		if src == nil {
			continue
		}
		var n float64
		switch v := src[key].(type) {
		case float64:
			n = v
		case float32:
			n = float64(v)
		case int:
			n = float64(v)
		case int64:
			n = float64(v)
		case json.Number:
			n, _ = v.Float64()
		case string:
			n, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
		}
		if n != 0 {
			return n
		}
	}
	return 0
}

//Personal.AI order the ending
