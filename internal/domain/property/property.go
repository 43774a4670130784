// Package property defines the listing record consumed read-only by the map
// pipeline, together with its repository contract and change events.
package property

import (
	"regexp"
	"strings"

	"github.com/turtacn/PlotAtlas/pkg/errors"
)

// Status is the commercial state of a listing.
type Status string

const (
	StatusAvailable Status = "available"
	StatusSold      Status = "sold"
	StatusReserved  Status = "reserved"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusSold, StatusReserved:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus maps free text to a Status.  Unknown or empty input yields
// StatusAvailable.
func ParseStatus(s string) Status {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st.IsValid() {
		return st
	}
	return StatusAvailable
}

// Coordinates is an explicit placement override.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Property is a flat listing record.  Empty utility strings mean the
// descriptor is absent.
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
	Status      Status       `json:"status"`
	Featured    bool         `json:"featured"`
}

// NewProperty builds a validated Property with status available.  The slug
// is derived from title when empty.
func NewProperty(id, slug, title, city string, area float64) (*Property, error) {
	if slug == "" {
		slug = Slugify(title)
	}
	p := &Property{
		ID:     id,
		Slug:   slug,
		Title:  title,
		City:   city,
		Area:   area,
		Status: StatusAvailable,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the fields the listing store must guarantee.
func (p *Property) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.New(errors.ErrCodePropertyInvalid, "title is required")
	}
	if strings.TrimSpace(p.City) == "" {
		return errors.New(errors.ErrCodePropertyInvalid, "city is required")
	}
	if p.Area < 0 {
		return errors.New(errors.ErrCodePropertyInvalid, "area must be non-negative")
	}
	if p.Status != "" && !p.Status.IsValid() {
		return errors.New(errors.ErrCodePropertyInvalid, "unknown status").WithDetail(string(p.Status))
	}
	if c := p.Coordinates; c != nil {
		if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
			return errors.New(errors.ErrCodePropertyInvalid, "coordinates out of range")
		}
	}
	return nil
}

// HasCoordinates reports whether an explicit placement override is set.
func (p *Property) HasCoordinates() bool {
	return p.Coordinates != nil
}

var whitespace = regexp.MustCompile(`\s+`)

// Slugify lower-cases name and replaces each whitespace run with "-".
func Slugify(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(name), "-")
}

//Personal.AI order the ending
