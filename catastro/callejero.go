// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package catastro

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/parcela-es/parcela/utils/xmlutils"
)

// Province as listed by ObtenerProvincias.
type Province struct {
	Name    string `json:"name"     xml:"np"`    // A CORUÑA
	INECode string `json:"ine_code" xml:"cpine"` // 15
}

// Municipality as listed by ObtenerMunicipios.
type Municipality struct {
	Name         string `json:"name"                    xml:"nm"`       // MADRID
	ProvinceCode string `json:"province_code,omitempty" xml:"loine>cp"` // 28
	INECode      string `json:"ine_code,omitempty"      xml:"loine>cm"` // 79
}

// ParcelQuery identifies a rural parcel by its administrative location.
type ParcelQuery struct {
	Province     string `json:"province"`
	Municipality string `json:"municipality"`
	Polygon      string `json:"polygon"`
	Parcel       string `json:"parcel"`
}

// Validate checks that all four fields are present.
func (q *ParcelQuery) Validate() error {
	var missing []string

	for _, f := range []struct{ name, value string }{
		{"provincia", q.Province},
		{"municipio", q.Municipality},
		{"polígono", q.Polygon},
		{"parcela", q.Parcel},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}

	if missing != nil {
		return fmt.Errorf("%w: falta %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	return nil
}

// Parcel is the outcome of Consulta_DNPPP. Any field may be empty: the
// service answers with whatever it knows and the reference is only set when
// both halves came back.
type Parcel struct {
	Reference   Reference `json:"reference,omitempty"`
	PC1         string    `json:"pc1,omitempty"`
	PC2         string    `json:"pc2,omitempty"`
	Description string    `json:"description,omitempty"` // ldt
	Use         string    `json:"use,omitempty"`         // luso
}

// HasReference reports whether both halves of the reference are known.
func (p *Parcel) HasReference() bool {
	return p.Reference != ""
}

type municipalitiesRequest struct {
	XMLName  xml.Name `xml:"http://www.catastro.meh.es/ MunicipiosRest_In"`
	Province string   `xml:"Provincia"`
}

type parcelRequest struct {
	XMLName      xml.Name `xml:"http://www.catastro.meh.es/ ConsultaRest_DNPPP_In"`
	Province     string   `xml:"Provincia"`
	Municipality string   `xml:"Municipio"`
	Polygon      string   `xml:"Poligono"`
	Parcel       string   `xml:"Parcela"`
}

// an entry of the lerr error list.
type faultXML struct {
	Code        string `xml:"cod"`
	Description string `xml:"des"`
}

func (f *faultXML) asError() *ServiceError {
	return &ServiceError{
		Type:    ErrorTypeService,
		Message: strings.TrimSpace(f.Description),
		Code:    strings.TrimSpace(f.Code),
	}
}

func collectFault(faults *[]faultXML) xmlutils.Handler {
	return func(dec *xml.Decoder, start *xml.StartElement) error {
		var f faultXML
		if err := dec.DecodeElement(&f, start); err != nil {
			return err
		}

		*faults = append(*faults, f)

		return nil
	}
}

func checkXMLMedia(header http.Header) error {
	if media := header.Get("Content-Type"); !xmlutils.IsXMLMedia(media) {
		return fmt.Errorf("%w: media type is %s", ErrResponseSchema, media)
	}

	return nil
}

// Provinces lists the provinces managed by the cadastre.
func (c *Client) Provinces(ctx context.Context) ([]Province, error) {
	body, header, err := c.get(ctx, provincesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("listing provinces: %w", err)
	}

	if err := checkXMLMedia(header); err != nil {
		return nil, fmt.Errorf("listing provinces: %w", err)
	}

	return parseProvinces(bytes.NewReader(body))
}

func parseProvinces(r io.Reader) ([]Province, error) {
	var (
		provinces []Province
		faults    []faultXML
	)

	err := xmlutils.Walk(r, Namespace, map[string]xmlutils.Handler{
		"prov": func(dec *xml.Decoder, start *xml.StartElement) error {
			var p Province
			if err := dec.DecodeElement(&p, start); err != nil {
				return err
			}

			if p.Name = strings.TrimSpace(p.Name); p.Name != "" {
				provinces = append(provinces, p)
			}

			return nil
		},
		"err": collectFault(&faults),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponseSchema, err)
	}

	if len(provinces) == 0 && len(faults) > 0 {
		return nil, faults[0].asError()
	}

	return provinces, nil
}

// Municipalities lists the municipalities of a province, given its name as
// returned by Provinces.
func (c *Client) Municipalities(ctx context.Context, province string) ([]Municipality, error) {
	province = strings.TrimSpace(province)
	if province == "" {
		return nil, fmt.Errorf("%w: falta provincia", ErrMissingFields)
	}

	body, header, err := c.postXML(
		ctx,
		municipalitiesPath,
		&municipalitiesRequest{Province: province},
		map[string]string{
			"Content-Type": "text/xml",
			"Accept":       "text/xml",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("listing municipalities of %q: %w", province, err)
	}

	if err := checkXMLMedia(header); err != nil {
		return nil, fmt.Errorf("listing municipalities of %q: %w", province, err)
	}

	municipalities, err := parseMunicipalities(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("listing municipalities of %q: %w", province, err)
	}

	return municipalities, nil
}

func parseMunicipalities(r io.Reader) ([]Municipality, error) {
	var (
		municipalities []Municipality
		faults         []faultXML
		found          bool
	)

	err := xmlutils.Walk(r, Namespace, map[string]xmlutils.Handler{
		"municipiero": func(dec *xml.Decoder, start *xml.StartElement) error {
			var list struct {
				Municipalities []Municipality `xml:"muni"`
			}

			if err := dec.DecodeElement(&list, start); err != nil {
				return err
			}

			found = true

			for _, m := range list.Municipalities {
				if m.Name = strings.TrimSpace(m.Name); m.Name != "" {
					municipalities = append(municipalities, m)
				}
			}

			// only the first list counts
			return xmlutils.ErrStop
		},
		"err": collectFault(&faults),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponseSchema, err)
	}

	if !found {
		if len(faults) > 0 {
			return nil, fmt.Errorf("%w: %w", ErrNoMunicipalities, faults[0].asError())
		}

		return nil, ErrNoMunicipalities
	}

	return municipalities, nil
}

// ParcelByPolygon resolves a province, municipality, polygon and parcel to
// the parcel's cadastral reference and description. A response without
// reference is not an error: check Parcel.HasReference.
func (c *Client) ParcelByPolygon(ctx context.Context, q ParcelQuery) (*Parcel, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	body, _, err := c.postXML(
		ctx,
		parcelPath,
		&parcelRequest{
			Province:     strings.TrimSpace(q.Province),
			Municipality: strings.TrimSpace(q.Municipality),
			Polygon:      strings.TrimSpace(q.Polygon),
			Parcel:       strings.TrimSpace(q.Parcel),
		},
		map[string]string{"Content-Type": "application/xml"},
	)
	if err != nil {
		return nil, fmt.Errorf("querying parcel %s/%s: %w", q.Polygon, q.Parcel, err)
	}

	return ParseParcel(bytes.NewReader(body))
}

// ParseParcel extracts the first pc1, pc2, ldt and luso found anywhere in a
// Consulta_DNPPP response.
func ParseParcel(r io.Reader) (*Parcel, error) {
	fields, err := xmlutils.FirstTexts(r, Namespace, "pc1", "pc2", "ldt", "luso")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponseSchema, err)
	}

	p := &Parcel{
		PC1:         fields["pc1"],
		PC2:         fields["pc2"],
		Description: fields["ldt"],
		Use:         fields["luso"],
	}

	if ref, ok := JoinReference(p.PC1, p.PC2); ok {
		p.Reference = ref
	}

	return p, nil
}
