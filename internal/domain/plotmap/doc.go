// Package plotmap turns flat listing records into map-ready GeoJSON.
//
// The pipeline is Aggregate (properties -> CityData), then either
// BuildClusters (one centroid per city) or Expand (the plots of one city).
// Reconstruct runs the other way, turning the property bag of a clicked
// feature back into a property.Property.  None of these functions return
// errors: malformed input degrades to defaults or empty collections.
package plotmap

//Personal.AI order the ending
