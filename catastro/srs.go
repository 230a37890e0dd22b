// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package catastro

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SRS is a spatial reference system accepted by the Consulta_CPMRC
// coordinate service. See:
// https://ovc.catastro.meh.es/ovcservweb/ovcswlocalizacionrc/ovccoordenadas.asmx
type SRS struct {
	Code       string // "EPSG:4326", the value sent to the service
	EPSG       int    // numeric EPSG code
	Name       string // human-readable label
	Geographic bool   // true when coordinates are longitude/latitude
}

// Validate checks that the entry is consistent.
func (s *SRS) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("srs %d: name must not be empty", s.EPSG)
	}

	if s.Code != "EPSG:"+strconv.Itoa(s.EPSG) {
		return fmt.Errorf("srs %q: code does not match EPSG %d", s.Code, s.EPSG)
	}

	return nil
}

// Label is the text shown in selection lists: "EPSG:4326 - Geográficas en WGS 84".
func (s SRS) Label() string {
	return s.Code + " - " + s.Name
}

// The systems supported by the service, in display order. This list is fixed;
// it is not queried from anywhere.
var systems = func() []SRS {
	ret := []SRS{
		{EPSG: 4230, Name: "Geográficas en ED 50", Geographic: true},
		{EPSG: 4326, Name: "Geográficas en WGS 84", Geographic: true},
		{EPSG: 4258, Name: "Geográficas en ETRS89", Geographic: true},
		{EPSG: 32627, Name: "UTM huso 27N en WGS 84"},
		{EPSG: 32628, Name: "UTM huso 28N en WGS 84"},
		{EPSG: 32629, Name: "UTM huso 29N en WGS 84"},
		{EPSG: 32630, Name: "UTM huso 30N en WGS 84"},
		{EPSG: 32631, Name: "UTM huso 31N en WGS 84"},
		{EPSG: 25829, Name: "UTM huso 29N en ETRS89"},
		{EPSG: 25830, Name: "UTM huso 30N en ETRS89"},
		{EPSG: 25831, Name: "UTM huso 31N en ETRS89"},
		{EPSG: 23029, Name: "UTM huso 29N en ED50"},
		{EPSG: 23030, Name: "UTM huso 30N en ED50"},
		{EPSG: 23031, Name: "UTM huso 31N en ED50"},
	}

	for i := range ret {
		ret[i].Code = "EPSG:" + strconv.Itoa(ret[i].EPSG)
		if err := ret[i].Validate(); err != nil {
			panic(err)
		}
	}

	return ret
}()

// DefaultSRS is the first entry of the list, the one preselected in the
// dialog.
func DefaultSRS() SRS {
	return systems[0]
}

// SRSList returns a copy of the supported systems.
func SRSList() []SRS {
	ret := make([]SRS, len(systems))
	copy(ret, systems)

	return ret
}

// FindSRS locates a system by "EPSG:4326", "epsg:4326" or "4326".
func FindSRS(q string) (*SRS, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, errors.New("empty SRS query")
	}

	if len(q) > 5 && strings.EqualFold(q[:5], "EPSG:") {
		q = q[5:]
	}

	n, err := strconv.Atoi(q)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSRS, q)
	}

	for i := range systems {
		if systems[i].EPSG == n {
			found := systems[i]

			return &found, nil
		}
	}

	return nil, fmt.Errorf("%w: EPSG:%d", ErrUnsupportedSRS, n)
}

// EachSRS applies the callback to each supported system, stopping at the
// first error.
func EachSRS(callback func(SRS) error) error {
	for i := range systems {
		if err := callback(systems[i]); err != nil {
			return err
		}
	}

	return nil
}
