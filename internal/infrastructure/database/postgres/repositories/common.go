package repositories

import (
	"context"
	"database/sql"

	"github.com/turtacn/PlotAtlas/internal/domain/property"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

// listingColumns is the select list scanListing expects, in order.
const listingColumns = `id, slug, title, city, area, electricity, gas, water, lat, lng, image, status, featured`

// queryExecutor is satisfied by both *sql.DB and *sql.Tx.
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanListing reads one listingColumns row.  sql.ErrNoRows is returned
// unwrapped so callers can map it to a not-found error.
func scanListing(s scanner) (*property.Property, error) {
	var (
		p                property.Property
		elec, gas, water sql.NullString
		lat, lng         sql.NullFloat64
		status           string
	)
	err := s.Scan(&p.ID, &p.Slug, &p.Title, &p.City, &p.Area, &elec, &gas, &water, &lat, &lng, &p.Image, &status, &p.Featured)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan listing")
	}
	p.Electricity = elec.String
	p.Gas = gas.String
	p.Water = water.String
	p.Status = property.ParseStatus(status)
	if lat.Valid && lng.Valid {
		p.Coordinates = &property.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullCoord splits optional coordinates into nullable columns.
func nullCoord(c *property.Coordinates) (lat, lng sql.NullFloat64) {
	if c == nil {
		return
	}
	return sql.NullFloat64{Float64: c.Lat, Valid: true}, sql.NullFloat64{Float64: c.Lng, Valid: true}
}

//Personal.AI order the ending
