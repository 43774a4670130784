package property

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/turtacn/PlotAtlas/pkg/errors"
)

// MemoryRepository is a Repository over an in-process slice.  The CLI and
// tests use it when no database is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	items    []*Property
	revision int
}

// NewMemoryRepository copies props into a new repository.
func NewMemoryRepository(props []*Property) *MemoryRepository {
	r := &MemoryRepository{}
	r.Replace(props)
	return r
}

// Replace swaps the whole listing set and bumps the version.
func (r *MemoryRepository) Replace(props []*Property) {
	cp := make([]*Property, len(props))
	copy(cp, props)
	r.mu.Lock()
	r.items = cp
	r.revision++
	r.mu.Unlock()
}

func (r *MemoryRepository) List(_ context.Context, opts ...QueryOption) ([]*Property, error) {
	o := ApplyOptions(opts...)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Property, 0, len(r.items))
	for _, p := range r.items {
		if !o.Matches(p) {
			continue
		}
		out = append(out, p)
		if o.Limit > 0 && len(out) == o.Limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.items {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, errors.New(errors.ErrCodePropertyNotFound, "property not found").WithDetail("id=" + id)
}

func (r *MemoryRepository) Cities(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, p := range r.items {
		seen[p.City] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) Version(_ context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("mem-%d-%d", r.revision, len(r.items)), nil
}

//Personal.AI order the ending
