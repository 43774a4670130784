package property

import (
	"context"
	"time"
)

// Repository is the read side of the listing store.
type Repository interface {
	List(ctx context.Context, opts ...QueryOption) ([]*Property, error)
	FindByID(ctx context.Context, id string) (*Property, error)
	// Cities returns the distinct city names, sorted.
	Cities(ctx context.Context) ([]string, error)
	// Version identifies the current listing snapshot; it changes whenever any
	// listing is added, edited or removed.
	Version(ctx context.Context) (string, error)
}

// QueryOptions holds List filters.
type QueryOptions struct {
	City         string
	Status       Status
	FeaturedOnly bool
	Limit        int
}

// QueryOption is a functional option for QueryOptions.
type QueryOption func(*QueryOptions)

func WithCity(city string) QueryOption {
	return func(o *QueryOptions) { o.City = city }
}

func WithStatus(s Status) QueryOption {
	return func(o *QueryOptions) { o.Status = s }
}

func WithFeaturedOnly() QueryOption {
	return func(o *QueryOptions) { o.FeaturedOnly = true }
}

// WithLimit caps the result size; values <= 0 mean unlimited.
func WithLimit(n int) QueryOption {
	return func(o *QueryOptions) {
		if n < 0 {
			n = 0
		}
		o.Limit = n
	}
}

// ApplyOptions folds opts into a QueryOptions.
func ApplyOptions(opts ...QueryOption) QueryOptions {
	var o QueryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Matches reports whether p passes the filters.  Used by in-memory stores.
func (o QueryOptions) Matches(p *Property) bool {
	if o.City != "" && p.City != o.City {
		return false
	}
	if o.Status != "" && p.Status != o.Status {
		return false
	}
	if o.FeaturedOnly && !p.Featured {
		return false
	}
	return true
}

// ChangeType classifies a listing change event.
type ChangeType string

const (
	ChangeCreated    ChangeType = "created"
	ChangeUpdated    ChangeType = "updated"
	ChangeDeleted    ChangeType = "deleted"
	ChangeBulkReload ChangeType = "bulk_reload"
)

// IsValid reports whether t is a known change type.
func (t ChangeType) IsValid() bool {
	switch t {
	case ChangeCreated, ChangeUpdated, ChangeDeleted, ChangeBulkReload:
		return true
	}
	return false
}

// ChangeEvent is published on the listing topic whenever the store changes.
type ChangeEvent struct {
	ID         string     `json:"id"`
	Type       ChangeType `json:"type"`
	PropertyID string     `json:"property_id,omitempty"`
	City       string     `json:"city,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

//Personal.AI order the ending
