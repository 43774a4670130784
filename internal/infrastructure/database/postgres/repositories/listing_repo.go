// Package repositories implements the listing store over PostgreSQL.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/PlotAtlas/internal/domain/property"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/database/postgres"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

// QueryObserver receives the latency of each repository call.
type QueryObserver interface {
	DBQuery(operation string, d time.Duration)
}

// ListingRepository is the read side plus the upserts the CLI seeds with.
type ListingRepository struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
	observer QueryObserver
}

var _ property.Repository = (*ListingRepository)(nil)

// NewListingRepository binds the repository to conn.  observer may be nil.
func NewListingRepository(conn *postgres.Connection, log logging.Logger, observer QueryObserver) *ListingRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ListingRepository{
		conn:     conn,
		log:      log.Named("listing_repo"),
		executor: conn.DB(),
		observer: observer,
	}
}

func (r *ListingRepository) observe(op string, start time.Time) {
	if r.observer != nil {
		r.observer.DBQuery(op, time.Since(start))
	}
}

// WithTx runs fn against a transaction-bound copy of the repository.
func (r *ListingRepository) WithTx(ctx context.Context, fn func(*ListingRepository) error) error {
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	txRepo := &ListingRepository{conn: r.conn, log: r.log, executor: tx, observer: r.observer}
	if err := fn(txRepo); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

// List returns listings ordered by city then title.
func (r *ListingRepository) List(ctx context.Context, opts ...property.QueryOption) ([]*property.Property, error) {
	defer r.observe("list", time.Now())
	query, args := buildListQuery(property.ApplyOptions(opts...))
	rows, err := r.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list listings")
	}
	defer rows.Close()

	var out []*property.Property
	for rows.Next() {
		p, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate listings")
	}
	return out, nil
}

func buildListQuery(o property.QueryOptions) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if o.City != "" {
		args = append(args, o.City)
		where = append(where, fmt.Sprintf("city = $%d", len(args)))
	}
	if o.Status != "" {
		args = append(args, string(o.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if o.FeaturedOnly {
		where = append(where, "featured = TRUE")
	}

	var b strings.Builder
	b.WriteString("SELECT " + listingColumns + " FROM listings")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY city, title")
	if o.Limit > 0 {
		args = append(args, o.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

func (r *ListingRepository) FindByID(ctx context.Context, id string) (*property.Property, error) {
	defer r.observe("find_by_id", time.Now())
	row := r.executor.QueryRowContext(ctx, "SELECT "+listingColumns+" FROM listings WHERE id = $1", id)
	p, err := scanListing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New(errors.ErrCodePropertyNotFound, "property not found").WithDetail("id=" + id)
		}
		return nil, err
	}
	return p, nil
}

func (r *ListingRepository) Cities(ctx context.Context) ([]string, error) {
	defer r.observe("cities", time.Now())
	rows, err := r.executor.QueryContext(ctx, "SELECT DISTINCT city FROM listings ORDER BY city")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list cities")
	}
	defer rows.Close()

	cities := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan city")
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate cities")
	}
	return cities, nil
}

// Version combines the latest edit time with the row count so deletes are
// detected as well as edits.
func (r *ListingRepository) Version(ctx context.Context) (string, error) {
	defer r.observe("version", time.Now())
	var (
		latest sql.NullTime
		count  int64
	)
	err := r.executor.QueryRowContext(ctx, "SELECT MAX(updated_at), COUNT(*) FROM listings").Scan(&latest, &count)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read listing version")
	}
	var nanos int64
	if latest.Valid {
		nanos = latest.Time.UnixNano()
	}
	return fmt.Sprintf("%d-%d", nanos, count), nil
}

// Upsert inserts p or overwrites the row with the same id, bumping
// updated_at.
func (r *ListingRepository) Upsert(ctx context.Context, p *property.Property) error {
	defer r.observe("upsert", time.Now())
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		return errors.New(errors.ErrCodePropertyInvalid, "id is required")
	}
	status := p.Status
	if status == "" {
		status = property.StatusAvailable
	}
	lat, lng := nullCoord(p.Coordinates)
	query := `
		INSERT INTO listings (` + listingColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug, title = EXCLUDED.title, city = EXCLUDED.city, area = EXCLUDED.area,
			electricity = EXCLUDED.electricity, gas = EXCLUDED.gas, water = EXCLUDED.water,
			lat = EXCLUDED.lat, lng = EXCLUDED.lng, image = EXCLUDED.image, status = EXCLUDED.status,
			featured = EXCLUDED.featured, updated_at = NOW()
	`
	_, err := r.executor.ExecContext(ctx, query,
		p.ID, p.Slug, p.Title, p.City, p.Area,
		nullString(p.Electricity), nullString(p.Gas), nullString(p.Water),
		lat, lng, p.Image, string(status), p.Featured,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert listing")
	}
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	defer r.observe("delete", time.Now())
	res, err := r.executor.ExecContext(ctx, "DELETE FROM listings WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete listing")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New(errors.ErrCodePropertyNotFound, "property not found").WithDetail("id=" + id)
	}
	return nil
}

//Personal.AI order the ending
