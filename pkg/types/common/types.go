// Package common holds the JSON shapes of the public HTTP API.  The server
// encodes them and the Go SDK decodes them.
package common

import (
	"strings"
	"time"
)

// APIVersionPrefix is the path prefix of every versioned endpoint.
const APIVersionPrefix = "/api/v1"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// MapConfig is the public part of the map configuration.  The access token
// itself is never exposed.
type MapConfig struct {
	TokenConfigured bool    `json:"tokenConfigured"`
	StyleURL        string  `json:"styleUrl,omitempty"`
	Placeholder     string  `json:"placeholder"`
	IconSize        int     `json:"iconSize"`
	ClusterMaxZoom  float64 `json:"clusterMaxZoom"`
	PlotMaxZoom     float64 `json:"plotMaxZoom"`
}

// VersionResponse carries the listing snapshot version.
type VersionResponse struct {
	Version string `json:"version"`
}

// CitySummary is one row of the city overview.
type CitySummary struct {
	City      string  `json:"city"`
	PlotCount int     `json:"plotCount"`
	Lng       float64 `json:"lng"`
	Lat       float64 `json:"lat"`
}

// ReconstructRequest asks the server to rebuild a listing from a clicked
// plot feature.  PlotData is the nested snapshot, either an object or its
// JSON string.
type ReconstructRequest struct {
	PlotData   interface{}            `json:"plotData"`
	Properties map[string]interface{} `json:"properties"`
}

// Coordinates is an explicit placement override.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Property is a listing as served by the API.
type Property struct {
	ID          string       `json:"id"`
	Slug        string       `json:"slug"`
	Title       string       `json:"title"`
	City        string       `json:"city"`
	Area        float64      `json:"area"`
	Electricity string       `json:"electricity,omitempty"`
	Gas         string       `json:"gas,omitempty"`
	Water       string       `json:"water,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Image       string       `json:"image"`
	Status      string       `json:"status"`
	Featured    bool         `json:"featured"`
}

// Utilities lists the utility descriptors present on p.
func (p Property) Utilities() []string {
	var out []string
	for _, u := range []string{p.Electricity, p.Gas, p.Water} {
		if strings.TrimSpace(u) != "" {
			out = append(out, u)
		}
	}
	return out
}

// Map view modes.
const (
	ModeAllCities   = "all-cities"
	ModeCityFocused = "city-focused"
)

// SessionState is the observable state of a server-side map session.
type SessionState struct {
	Mode            string    `json:"mode"`
	SelectedCity    string    `json:"selectedCity,omitempty"`
	Placeholder     bool      `json:"placeholder"`
	Mounted         bool      `json:"mounted"`
	LayersReady     bool      `json:"layersReady"`
	DeferredPending bool      `json:"deferredPending"`
	PopupOpen       bool      `json:"popupOpen"`
	Popup           *Property `json:"popup,omitempty"`
	Cities          int       `json:"cities"`
	Plots           int       `json:"plots"`
}

// Session is a map session as returned by the sessions endpoints.
type Session struct {
	ID        string       `json:"id"`
	State     SessionState `json:"state"`
	CreatedAt time.Time    `json:"createdAt"`
	LastSeen  time.Time    `json:"lastSeen"`
}

// SessionList is the body of GET /map/sessions.
type SessionList struct {
	Sessions []string `json:"sessions"`
}

// SelectCityRequest is the body of POST /map/sessions/{id}/select.
type SelectCityRequest struct {
	City string `json:"city"`
}

// OpenPopupRequest is the body of POST /map/sessions/{id}/popup.  The index
// points into the session's visible plots.
type OpenPopupRequest struct {
	FeatureIndex *int `json:"featureIndex"`
}

//Personal.AI order the ending
