package plotmap

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ClusterType tags city centroid features.
const ClusterType = "city-cluster"

// Centroid returns the arithmetic mean of pts.  ok is false for an empty slice.
func Centroid(pts []PlotPoint) (c orb.Point, ok bool) {
	if len(pts) == 0 {
		return orb.Point{}, false
	}
	var lat, lng float64
	for _, p := range pts {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(pts))
	return orb.Point{lng / n, lat / n}, true
}

// BuildClusters emits one centroid feature per non-empty city, in sorted
// city order.  The result is never nil.
func BuildClusters(data CityData) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, city := range data.Cities() {
		pts := data[city]
		c, ok := Centroid(pts)
		if !ok {
			continue
		}
		f := geojson.NewFeature(c)
		f.Properties = geojson.Properties{
			"name":      city,
			"city":      city,
			"plotCount": len(pts),
			"type":      ClusterType,
		}
		fc.Append(f)
	}
	return fc
}

// FeatureBounds returns the bounding box of all point geometries in fc.
func FeatureBounds(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	if fc == nil {
		return orb.Bound{}, false
	}
	var (
		b     orb.Bound
		found bool
	)
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if !found {
			b, found = fb, true
			continue
		}
		b = b.Union(fb)
	}
	return b, found
}

// CityBounds returns the bounding box of the plots in city.
func CityBounds(data CityData, city string) (orb.Bound, bool) {
	pts := data[city]
	if len(pts) == 0 {
		return orb.Bound{}, false
	}
	b := orb.Bound{Min: pts[0].Point(), Max: pts[0].Point()}
	for _, p := range pts[1:] {
		b = b.Extend(p.Point())
	}
	return b, true
}

//Personal.AI order the ending
