// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

// Package history keeps an optional, write-only log of coordinate lookups in
// DuckDB. Nothing in it is read back to answer a lookup.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/parcela-es/parcela/catastro"
	"github.com/parcela-es/parcela/spatial"
	"github.com/uber/h3-go/v4"
)

// Lookup is one successful Consulta_CPMRC.
type Lookup struct {
	Reference string        `json:"reference"`
	SRS       string        `json:"srs"`
	Point     spatial.Point `json:"point"`
	Address   string        `json:"address,omitempty"`
	H3Res5    int64         `json:"-"`
	H3Res7    int64         `json:"-"`
	H3Res9    int64         `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewLookup builds the log entry of a resolved location.
func NewLookup(loc *catastro.Location) *Lookup {
	return &Lookup{
		Reference: loc.Reference.String(),
		SRS:       loc.SRS,
		Point:     loc.Point,
		Address:   loc.Address,
	}
}

// computeH3 fills the cells when the point is in degrees, and clears them
// otherwise: projected metres are not latitudes.
func (l *Lookup) computeH3() error {
	l.H3Res5, l.H3Res7, l.H3Res9 = 0, 0, 0

	if srs, err := catastro.FindSRS(l.SRS); err != nil || !srs.Geographic {
		return nil
	}

	lat, lng := l.Point.LatLng()
	latLng := h3.NewLatLng(lat, lng)

	for _, res := range []int{5, 7, 9} {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
		}

		switch res {
		case 5:
			l.H3Res5 = int64(cell)
		case 7:
			l.H3Res7 = int64(cell)
		case 9:
			l.H3Res9 = int64(cell)
		}
	}

	return nil
}

// Repository stores lookups.
type Repository interface {
	CreateSchema() error
	SaveLookup(lookup *Lookup) error
	// Record logs a lookup as it happens; it satisfies locator.Recorder.
	Record(lookup *Lookup) error
	ListLookups(limit, offset int) ([]*Lookup, error)
	CountLookups() (int, error)
	GetAllLookupsSorted() ([]*Lookup, error)
}

type sqlRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a repository on an open duckdb connection.
func NewRepository(db *sql.DB) Repository {
	return &sqlRepository{db: db, now: time.Now}
}

func (r *sqlRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS lookups (
			reference VARCHAR NOT NULL,
			srs VARCHAR NOT NULL,
			point VARCHAR NOT NULL,
			address VARCHAR,
			h3_res5 UBIGINT,
			h3_res7 UBIGINT,
			h3_res9 UBIGINT,
			created_at TIMESTAMP NOT NULL
		);
	`)

	return err
}

func nve(v string) any {
	if len(v) == 0 {
		return nil
	}

	return v
}

func nz(v int64) any {
	if v == 0 {
		return nil
	}

	return uint64(v)
}

// SaveLookup inserts a lookup, keeping its CreatedAt when already set.
func (r *sqlRepository) SaveLookup(lookup *Lookup) error {
	if lookup == nil {
		return errors.New("lookup can't be null")
	}

	if lookup.Reference == "" || lookup.SRS == "" {
		return errors.New("lookup needs a reference and an srs")
	}

	if err := lookup.computeH3(); err != nil {
		return err
	}

	if lookup.CreatedAt.IsZero() {
		lookup.CreatedAt = r.now().UTC().Truncate(time.Microsecond)
	}

	_, err := r.db.Exec(`
		INSERT INTO lookups(reference, srs, point, address, h3_res5, h3_res7, h3_res9, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		lookup.Reference,
		lookup.SRS,
		lookup.Point,
		nve(lookup.Address),
		nz(lookup.H3Res5),
		nz(lookup.H3Res7),
		nz(lookup.H3Res9),
		lookup.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting lookup of %s: %w", lookup.Reference, err)
	}

	return nil
}

func (r *sqlRepository) Record(lookup *Lookup) error {
	return r.SaveLookup(lookup)
}

const selectLookups = `
	SELECT reference, srs, point, address, h3_res5, h3_res7, h3_res9, created_at
	FROM lookups
`

// ListLookups returns the most recent lookups first. A limit of 0 means all.
func (r *sqlRepository) ListLookups(limit, offset int) ([]*Lookup, error) {
	query := selectLookups + " ORDER BY created_at DESC, reference"

	args := []any{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"

		args = append(args, limit, offset)
	}

	return r.query(query, args...)
}

func (r *sqlRepository) CountLookups() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM lookups").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting lookups: %w", err)
	}

	return count, nil
}

// GetAllLookupsSorted returns every lookup oldest first, the order of an
// export.
func (r *sqlRepository) GetAllLookupsSorted() ([]*Lookup, error) {
	return r.query(selectLookups + " ORDER BY created_at, reference, srs")
}

func (r *sqlRepository) query(query string, args ...any) (lookups []*Lookup, err error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying lookups: %w", err)
	}

	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing rows: %w", cerr))
		}
	}()

	for rows.Next() {
		var (
			l                Lookup
			address          sql.NullString
			res5, res7, res9 sql.NullInt64
		)

		if err := rows.Scan(&l.Reference, &l.SRS, &l.Point, &address, &res5, &res7, &res9, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning lookup: %w", err)
		}

		l.Address = address.String
		l.H3Res5 = res5.Int64
		l.H3Res7 = res7.Int64
		l.H3Res9 = res9.Int64

		lookups = append(lookups, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lookups: %w", err)
	}

	return lookups, nil
}
