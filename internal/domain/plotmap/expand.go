package plotmap

import (
	"github.com/paulmach/orb/geojson"
)

// PlotFeatureType tags individual plot features.
const PlotFeatureType = "plot"

// Expand emits one feature per plot of city.  An empty city name, a city
// missing from data or an empty bucket all yield an empty collection.
// Coordinates are [lng, lat].
func Expand(data CityData, city string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if city == "" {
		return fc
	}
	for _, p := range data[city] {
		f := geojson.NewFeature(p.Point())
		f.ID = p.ID
		f.Properties = plotProperties(p)
		fc.Append(f)
	}
	return fc
}

func plotProperties(p PlotPoint) geojson.Properties {
	return geojson.Properties{
		"id":          p.ID,
		"name":        p.Title,
		"title":       p.Title,
		"city":        p.City,
		"address":     p.Address,
		"area":        p.Area,
		"price":       p.Price,
		"status":      p.Status,
		"image":       p.Image,
		"type":        PlotFeatureType,
		"electricity": p.Electricity,
		"gas":         p.Gas,
		"water":       p.Water,
		"plotData":    snapshot(p),
	}
}

// snapshot is the nested payload a click handler reconstructs from.
func snapshot(p PlotPoint) map[string]interface{} {
	return map[string]interface{}{
		"id":          p.ID,
		"title":       p.Title,
		"city":        p.City,
		"area":        p.Area,
		"type":        p.Type,
		"status":      p.Status,
		"image":       p.Image,
		"electricity": p.Electricity,
		"gas":         p.Gas,
		"water":       p.Water,
	}
}

//Personal.AI order the ending
