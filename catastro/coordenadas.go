// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package catastro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/parcela-es/parcela/spatial"
)

// Location is the outcome of Consulta_CPMRC: the centroid of a parcel in the
// requested reference system.
type Location struct {
	Reference Reference     `json:"reference"`
	SRS       string        `json:"srs"`
	Point     spatial.Point `json:"point"`
	Address   string        `json:"address,omitempty"` // ldt, may be missing
}

// numeric accepts both JSON numbers and numeric strings; the service has
// used both for the same field.
type numeric struct {
	value float64
	set   bool
}

func (n *numeric) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}

	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parsing coordinate %s: %w", b, err)
	}

	n.value, n.set = f, true

	return nil
}

type faultJSON struct {
	Code        json.RawMessage `json:"cod"`
	Description string          `json:"des"`
}

// faults reads a lerr/lerrores block. The service has sent it as a bare
// list, as {"err": [...]} and as {"err": {...}}; an unknown shape yields no
// faults instead of failing the whole response.
func faults(raw json.RawMessage) []faultJSON {
	if len(raw) == 0 {
		return nil
	}

	var list []faultJSON
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var wrapped struct {
		Err json.RawMessage `json:"err"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Err) > 0 {
		return faults(wrapped.Err)
	}

	var single faultJSON
	if err := json.Unmarshal(raw, &single); err == nil && (single.Description != "" || len(single.Code) > 0) {
		return []faultJSON{single}
	}

	return nil
}

type coordinatesResponse struct {
	Result *struct {
		Coordinates *struct {
			Coord []struct {
				Geo *struct {
					X   *numeric `json:"xcen"`
					Y   *numeric `json:"ycen"`
					SRS string   `json:"srs"`
				} `json:"geo"`
				Address string `json:"ldt"`
			} `json:"coord"`
		} `json:"coordenadas"`
		Errors    json.RawMessage `json:"lerr"`
		ErrorList json.RawMessage `json:"lerrores"`
	} `json:"Consulta_CPMRCResult"`
}

func (r *coordinatesResponse) fault() *ServiceError {
	for _, raw := range []json.RawMessage{r.Result.Errors, r.Result.ErrorList} {
		list := faults(raw)
		if len(list) == 0 {
			continue
		}

		f := list[0]

		return &ServiceError{
			Type:    ErrorTypeService,
			Message: strings.TrimSpace(f.Description),
			Code:    strings.Trim(string(f.Code), `" `),
		}
	}

	return nil
}

// Coordinates resolves a cadastral reference to the coordinates of its
// centroid in the given system. The reference length and the SRS are
// checked before any request is made.
func (c *Client) Coordinates(ctx context.Context, reference string, srs string) (*Location, error) {
	ref, err := ParseReference(reference)
	if err != nil {
		return nil, err
	}

	system, err := FindSRS(srs)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("SRS", system.Code)
	query.Set("RefCat", ref.String())

	body, _, err := c.get(ctx, coordinatesPath, query)
	if err != nil {
		return nil, fmt.Errorf("querying coordinates of %s: %w", ref, err)
	}

	loc, err := ParseCoordinates(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("querying coordinates of %s: %w", ref, err)
	}

	loc.Reference = ref
	loc.SRS = system.Code

	return loc, nil
}

// ParseCoordinates decodes a Consulta_CPMRC JSON response. A response without
// result or coordinates yields ErrNoData (wrapping the service error, when
// there is one); a present but incomplete first coordinate yields
// ErrResponseSchema.
func ParseCoordinates(r io.Reader) (*Location, error) {
	var resp coordinatesResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponseSchema, err)
	}

	if resp.Result == nil {
		return nil, ErrNoData
	}

	if resp.Result.Coordinates == nil {
		if f := resp.fault(); f != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoData, f)
		}

		return nil, ErrNoData
	}

	coords := resp.Result.Coordinates.Coord
	if len(coords) == 0 {
		return nil, fmt.Errorf("%w: coord is empty", ErrResponseSchema)
	}

	first := coords[0]
	if first.Geo == nil || first.Geo.X == nil || first.Geo.Y == nil || !first.Geo.X.set || !first.Geo.Y.set {
		return nil, fmt.Errorf("%w: coord[0].geo is incomplete", ErrResponseSchema)
	}

	return &Location{
		SRS:     first.Geo.SRS,
		Point:   spatial.Point{X: first.Geo.X.value, Y: first.Geo.Y.value},
		Address: strings.TrimSpace(first.Address),
	}, nil
}
