// Copyright 2025 The Parcela Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"database/sql/driver"
	"fmt"
	"strconv"
)

// Point is a coordinate pair expressed in the spatial reference system of the
// lookup that produced it. For geographic systems X is the longitude and Y the
// latitude; for projected ones (UTM) they are easting and northing in meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// String returns the WKT representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%s %s)", formatFloat(p.X), formatFloat(p.Y))
}

// Pair renders the point the way it is shown to users: "(x, y)".
func (p Point) Pair() string {
	return fmt.Sprintf("(%s, %s)", formatFloat(p.X), formatFloat(p.Y))
}

// LatLng returns latitude and longitude, assuming a geographic system.
func (p Point) LatLng() (float64, float64) {
	return p.Y, p.X
}

// IsZero reports whether the point is the origin, which the cadastre never
// returns for a real parcel.
func (p Point) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Value implements the driver.Valuer interface for database serialization.
func (p Point) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (p *Point) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		p.X, p.Y = 0, 0

		return nil
	case string:
		return p.parseWKT(v)
	case []byte:
		return p.parseWKT(string(v))
	case map[string]any:
		x, okX := v["x"].(float64)
		y, okY := v["y"].(float64)

		if !okX || !okY {
			return fmt.Errorf("spatial: invalid map for point: expected 'x' and 'y' float64 fields, got %+v", v)
		}

		p.X, p.Y = x, y

		return nil
	default:
		return fmt.Errorf("spatial: unsupported type for Point scan: %T", value)
	}
}

// accepts both "POINT(x y)" and DuckDB's "POINT (x y)".
func (p *Point) parseWKT(s string) error {
	if _, err := fmt.Sscanf(s, "POINT(%g %g)", &p.X, &p.Y); err == nil {
		return nil
	}

	if _, err := fmt.Sscanf(s, "POINT (%g %g)", &p.X, &p.Y); err != nil {
		return fmt.Errorf("spatial: parsing %q: %w", s, err)
	}

	return nil
}
