// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

// Package locator drives a parcel lookup the way the desktop dialog does:
// pick province, municipality, polygon and parcel to obtain the cadastral
// reference, then resolve the reference to coordinates and center the map on
// them. The session never renders anything itself; it reports through a
// Notifier and moves a Canvas.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/parcela-es/parcela/catastro"
	"github.com/parcela-es/parcela/history"
	"github.com/parcela-es/parcela/spatial"
)

// Placeholders shown as the first entry of the province and municipality
// selectors. Selecting one of them is the same as selecting nothing.
const (
	ProvincePlaceholder     = "Selecciona una provincia"
	MunicipalityPlaceholder = "Selecciona un municipio"
)

// SearchScale is the map scale denominator the canvas zooms to after a
// successful search.
const SearchScale = 500

// ErrReferenceNotFound is returned by LookupReference when the service
// answered without both halves of the reference.
var ErrReferenceNotFound = errors.New("no se encontró la referencia catastral")

// Service is the subset of the cadastre client the session needs.
type Service interface {
	Provinces(ctx context.Context) ([]catastro.Province, error)
	Municipalities(ctx context.Context, province string) ([]catastro.Municipality, error)
	ParcelByPolygon(ctx context.Context, q catastro.ParcelQuery) (*catastro.Parcel, error)
	Coordinates(ctx context.Context, reference string, srs string) (*catastro.Location, error)
}

// Canvas is the map view the session centers.
type Canvas interface {
	SetCenter(p spatial.Point)
	ZoomScale(scale float64)
	Refresh() error
	// DestinationSRS is the reference system of the map, e.g. "EPSG:25830".
	DestinationSRS() string
}

// Recorder receives every successful search.
type Recorder interface {
	Record(lookup *history.Lookup) error
}

// Session holds the state of one lookup dialog. It is not safe for
// concurrent use.
type Session struct {
	service  Service
	notifier Notifier
	canvas   Canvas
	recorder Recorder

	provinces      []catastro.Province
	municipalities []catastro.Municipality

	province     string
	municipality string
	polygon      string
	parcel       string
	reference    string
	srs          catastro.SRS
}

// NewSession creates a session with the default reference system selected.
func NewSession(service Service, notifier Notifier, canvas Canvas) *Session {
	if notifier == nil {
		notifier = NotifierFunc(func(Alert) {})
	}

	return &Session{
		service:  service,
		notifier: notifier,
		canvas:   canvas,
		srs:      catastro.DefaultSRS(),
	}
}

// SetRecorder makes every successful Search be logged to r.
func (s *Session) SetRecorder(r Recorder) {
	s.recorder = r
}

func (s *Session) warn(msg string) {
	s.notifier.Notify(Alert{Severity: SeverityWarning, Title: "Error", Message: msg})
}

func (s *Session) critical(msg string) {
	s.notifier.Notify(Alert{Severity: SeverityCritical, Title: "Error", Message: msg})
}

func (s *Session) info(title, msg string) {
	s.notifier.Notify(Alert{Severity: SeverityInfo, Title: title, Message: msg})
}

// Open loads the province list.
func (s *Session) Open(ctx context.Context) error {
	provinces, err := s.service.Provinces(ctx)
	if err != nil {
		s.warn("No se pudo obtener la lista de provincias.")

		return err
	}

	s.provinces = provinces
	s.province, s.municipality = "", ""
	s.municipalities = nil

	return nil
}

// Provinces as loaded by Open.
func (s *Session) Provinces() []catastro.Province {
	return s.provinces
}

// ProvinceNames lists the provinces the way the selector shows them.
func (s *Session) ProvinceNames() []string {
	names := make([]string, 0, len(s.provinces))
	for _, p := range s.provinces {
		names = append(names, p.Name)
	}

	return names
}

// SelectProvince selects a province and reloads its municipalities. The
// empty name and the placeholder clear the selection without a request.
func (s *Session) SelectProvince(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	s.municipality = ""
	s.municipalities = nil

	if name == "" || name == ProvincePlaceholder {
		s.province = ""

		return nil
	}

	s.province = name

	municipalities, err := s.service.Municipalities(ctx, name)
	if err != nil {
		if errors.Is(err, catastro.ErrNoMunicipalities) {
			s.warn("No se encontraron municipios para la provincia seleccionada.")
		} else {
			s.warn("No se pudo obtener la lista de municipios.")
		}

		return err
	}

	s.municipalities = municipalities

	return nil
}

// SetProvince sets the province field without loading its municipalities,
// for callers that already know the municipality name.
func (s *Session) SetProvince(name string) {
	name = strings.TrimSpace(name)
	if name == ProvincePlaceholder {
		name = ""
	}

	s.province = name
	s.municipality = ""
	s.municipalities = nil
}

// Municipalities of the selected province.
func (s *Session) Municipalities() []catastro.Municipality {
	return s.municipalities
}

// MunicipalityNames lists the municipalities the way the selector shows them.
func (s *Session) MunicipalityNames() []string {
	names := make([]string, 0, len(s.municipalities))
	for _, m := range s.municipalities {
		names = append(names, m.Name)
	}

	return names
}

// SelectMunicipality sets the municipality field.
func (s *Session) SelectMunicipality(name string) {
	name = strings.TrimSpace(name)
	if name == MunicipalityPlaceholder {
		name = ""
	}

	s.municipality = name
}

// SetPolygon sets the polygon field.
func (s *Session) SetPolygon(polygon string) {
	s.polygon = polygon
}

// SetParcel sets the parcel field.
func (s *Session) SetParcel(parcel string) {
	s.parcel = parcel
}

// SetReference sets the reference field. Like the dialog input, it holds at
// most 14 characters.
func (s *Session) SetReference(reference string) {
	s.reference = catastro.TruncateReference(reference)
}

// Reference is the current content of the reference field.
func (s *Session) Reference() string {
	return s.reference
}

// Query is the parcel query made of the current fields.
func (s *Session) Query() catastro.ParcelQuery {
	return catastro.ParcelQuery{
		Province:     s.province,
		Municipality: s.municipality,
		Polygon:      s.polygon,
		Parcel:       s.parcel,
	}
}

// SRSOptions lists the selectable reference systems.
func (s *Session) SRSOptions() []catastro.SRS {
	return catastro.SRSList()
}

// SRS is the selected reference system.
func (s *Session) SRS() catastro.SRS {
	return s.srs
}

// SelectSRS selects one of SRSOptions by code ("EPSG:25830" or "25830").
func (s *Session) SelectSRS(code string) error {
	srs, err := catastro.FindSRS(code)
	if err != nil {
		return err
	}

	s.srs = *srs

	return nil
}

// UseProjectSRS selects the reference system of the canvas, when it is one of
// SRSOptions.
func (s *Session) UseProjectSRS() error {
	code := s.canvas.DestinationSRS()

	srs, err := catastro.FindSRS(code)
	if err != nil {
		s.warn("El SRS del proyecto no es compatible con la lista disponible.")

		return err
	}

	s.srs = *srs

	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}

	return v
}

// ParcelSummary is the body of the parcel information alert.
func ParcelSummary(parcel *catastro.Parcel) string {
	return fmt.Sprintf(
		"Referencia Catastral: %s\nDetalles: %s\nUso: %s",
		orDefault(parcel.Reference.String(), "No encontrada"),
		orDefault(parcel.Description, "Sin detalles"),
		orDefault(parcel.Use, "No disponible"),
	)
}

// LocationSummary is the body of the cadastral information alert.
func LocationSummary(ref catastro.Reference, loc *catastro.Location) string {
	return fmt.Sprintf(
		"Referencia Catastral: %s\nDirección: %s\nCoordenadas: %s",
		ref,
		orDefault(loc.Address, "Dirección no disponible"),
		loc.Point.Pair(),
	)
}

// LookupReference resolves the selected province, municipality, polygon and
// parcel into a cadastral reference and fills the reference field with it.
// The parcel details are shown even when the reference is incomplete.
func (s *Session) LookupReference(ctx context.Context) (*catastro.Parcel, error) {
	q := s.Query()
	if err := q.Validate(); err != nil {
		s.warn("Debes completar todos los campos.")

		return nil, err
	}

	parcel, err := s.service.ParcelByPolygon(ctx, q)
	if err != nil {
		s.warn("Error al realizar la búsqueda.")

		return nil, err
	}

	s.info("Información de la Parcela", ParcelSummary(parcel))

	if !parcel.HasReference() {
		s.critical("No se encontró la referencia catastral.")

		return parcel, ErrReferenceNotFound
	}

	s.reference = parcel.Reference.String()

	return parcel, nil
}

// Search resolves the reference field into coordinates in the selected
// reference system and centers the canvas on them.
func (s *Session) Search(ctx context.Context) (*catastro.Location, error) {
	ref, err := catastro.ParseReference(s.reference)
	if err != nil {
		s.critical("La referencia catastral debe tener exactamente 14 caracteres.")

		return nil, err
	}

	loc, err := s.service.Coordinates(ctx, ref.String(), s.srs.Code)
	if err != nil {
		switch {
		case errors.Is(err, catastro.ErrResponseSchema):
			s.critical("La estructura de la respuesta del Catastro ha cambiado.")
		case errors.Is(err, catastro.ErrNoData):
			s.critical("No se encontraron datos para la referencia catastral.")
		default:
			s.critical(fmt.Sprintf("Error de conexión con el Catastro: %v", err))
		}

		return nil, err
	}

	s.canvas.SetCenter(loc.Point)
	s.canvas.ZoomScale(SearchScale)

	if err := s.canvas.Refresh(); err != nil {
		log.Printf("Error refreshing map at %s: %v", loc.Point, err)
		s.warn("No se pudo actualizar el mapa.")
	}

	s.info("Información Catastral", LocationSummary(ref, loc))

	if s.recorder != nil {
		if err := s.recorder.Record(history.NewLookup(loc)); err != nil {
			log.Printf("Error recording lookup of %s: %v", ref, err)
		}
	}

	return loc, nil
}
