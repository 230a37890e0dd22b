// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/parcela-es/parcela/catastro"
	"github.com/parcela-es/parcela/history"
	"github.com/parcela-es/parcela/spatial"
	"github.com/parcela-es/parcela/staticmap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	err      error
	parcel   *catastro.Parcel
	location *catastro.Location
	calls    int
}

func (m *mockService) Provinces(_ context.Context) ([]catastro.Province, error) {
	m.calls++

	return []catastro.Province{{Name: "MADRID", INECode: "28"}}, m.err
}

func (m *mockService) Municipalities(_ context.Context, _ string) ([]catastro.Municipality, error) {
	m.calls++

	return []catastro.Municipality{{Name: "MADRID", ProvinceCode: "28", INECode: "79"}}, m.err
}

func (m *mockService) ParcelByPolygon(_ context.Context, _ catastro.ParcelQuery) (*catastro.Parcel, error) {
	m.calls++

	return m.parcel, m.err
}

func (m *mockService) Coordinates(_ context.Context, _ string, srs string) (*catastro.Location, error) {
	m.calls++

	if m.err != nil {
		return nil, m.err
	}

	loc := *m.location
	loc.SRS = srs

	return &loc, nil
}

type mockRecorder struct {
	lookups []*history.Lookup
}

func (m *mockRecorder) Record(l *history.Lookup) error {
	m.lookups = append(m.lookups, l)

	return nil
}

func setupServerTest(t *testing.T, svc *mockService) (*gin.Engine, *staticmap.Canvas, *mockRecorder) {
	gin.SetMode(gin.TestMode)

	canvas, err := staticmap.NewCanvas(staticmap.Options{})
	require.NoError(t, err)

	recorder := &mockRecorder{}

	srv, err := NewServer(Options{
		Service:  svc,
		Canvas:   canvas,
		Recorder: recorder,
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	return srv.Handler(), canvas, recorder
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, target, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(Options{})
	require.Error(t, err)
}

func TestListSRSAPI(t *testing.T) {
	router, _, _ := setupServerTest(t, &mockService{})

	w := get(t, router, "/api/srs")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Default string `json:"default"`
		Systems []struct {
			Code string `json:"code"`
		} `json:"systems"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "EPSG:4230", body.Default)
	assert.Len(t, body.Systems, 14)
}

func TestListProvincesAPI(t *testing.T) {
	router, _, _ := setupServerTest(t, &mockService{})

	w := get(t, router, "/api/provinces")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"MADRID","ine_code":"28"}]`, w.Body.String())
}

func TestListProvincesUpstreamFailure(t *testing.T) {
	router, _, _ := setupServerTest(t, &mockService{err: catastro.ClassifyHTTPError(http.StatusServiceUnavailable)})

	w := get(t, router, "/api/provinces")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "No se pudo obtener la lista de provincias.")
}

func TestListMunicipalitiesAPI(t *testing.T) {
	router, _, _ := setupServerTest(t, &mockService{})

	w := get(t, router, "/api/provinces/MADRID/municipalities")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"MADRID","province_code":"28","ine_code":"79"}]`, w.Body.String())
}

func TestLookupParcelAPI(t *testing.T) {
	svc := &mockService{parcel: &catastro.Parcel{
		Reference: "28900A00100006", PC1: "28900A0", PC2: "0100006", Use: "Agrario",
	}}
	router, _, _ := setupServerTest(t, svc)

	w := get(t, router, "/api/parcels?province=MADRID&municipality=MADRID&polygon=1&parcel=6")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reference":"28900A00100006"`)
	assert.Contains(t, w.Body.String(), "Información de la Parcela")
}

func TestLookupParcelMissingFields(t *testing.T) {
	svc := &mockService{}
	router, _, _ := setupServerTest(t, svc)

	w := get(t, router, "/api/parcels?province=MADRID&polygon=1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.calls)
}

func TestLookupParcelWithoutReference(t *testing.T) {
	router, _, _ := setupServerTest(t, &mockService{parcel: &catastro.Parcel{PC1: "28900A0"}})

	w := get(t, router, "/api/parcels?province=MADRID&municipality=MADRID&polygon=1&parcel=6")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No se encontró la referencia catastral.")
}

func TestLookupCoordinatesAPI(t *testing.T) {
	svc := &mockService{location: &catastro.Location{
		Reference: "9872023VH5797S",
		Point:     spatial.Point{X: -3.7038, Y: 40.4168},
		Address:   "CL MAYOR 1 MADRID (MADRID)",
	}}
	router, canvas, recorder := setupServerTest(t, svc)

	w := get(t, router, "/api/coordinates?refcat=9872023VH5797S&srs=EPSG:4326")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Location catastro.Location `json:"location"`
		Map      staticmap.State   `json:"map"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "EPSG:4326", body.Location.SRS)
	assert.Equal(t, 20, body.Map.Zoom)

	state := canvas.State()
	assert.Equal(t, spatial.Point{X: -3.7038, Y: 40.4168}, state.Center)
	assert.InDelta(t, 500, state.Scale, 0)

	require.Len(t, recorder.lookups, 1)
	assert.Equal(t, "9872023VH5797S", recorder.lookups[0].Reference)

	w = get(t, router, "/api/map")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"x":-3.7038`)

	// no API key, so no image
	w = get(t, router, "/api/map.png")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// pointService places each parcel at x = the number in the first half of
// its reference, without shared state.
type pointService struct {
	mockService
}

func (p *pointService) Coordinates(_ context.Context, reference string, srs string) (*catastro.Location, error) {
	n, err := strconv.Atoi(reference[:7])
	if err != nil {
		return nil, err
	}

	return &catastro.Location{SRS: srs, Point: spatial.Point{X: float64(n), Y: 40}}, nil
}

func TestLookupCoordinatesConcurrentMapState(t *testing.T) {
	gin.SetMode(gin.TestMode)

	canvas, err := staticmap.NewCanvas(staticmap.Options{})
	require.NoError(t, err)

	srv, err := NewServer(Options{Service: &pointService{}, Canvas: canvas, Registry: prometheus.NewRegistry()})
	require.NoError(t, err)

	router := srv.Handler()

	const n = 100

	type result struct {
		code     int
		location spatial.Point
		center   spatial.Point
	}

	results := make([]result, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)

		go func() {
			defer wg.Done()

			target := fmt.Sprintf("/api/coordinates?refcat=%07dVH5797S&srs=EPSG:4326", i)
			req := httptest.NewRequest(http.MethodGet, target, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			var body struct {
				Location catastro.Location `json:"location"`
				Map      staticmap.State   `json:"map"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &body)

			results[i] = result{code: w.Code, location: body.Location.Point, center: body.Map.Center}
		}()
	}

	wg.Wait()

	for i, r := range results {
		require.Equal(t, http.StatusOK, r.code, i)
		assert.Equal(t, spatial.Point{X: float64(i), Y: 40}, r.location, i)
		assert.Equal(t, r.location, r.center, i)
	}
}

func TestLookupCoordinatesErrors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		err      error
		expected int
	}{
		{name: "short reference", target: "/api/coordinates?refcat=123", expected: http.StatusBadRequest},
		{name: "long reference", target: "/api/coordinates?refcat=9872023VH5797S0001WX", expected: http.StatusBadRequest},
		{name: "bad srs", target: "/api/coordinates?refcat=9872023VH5797S&srs=EPSG:3857", expected: http.StatusBadRequest},
		{name: "no data", target: "/api/coordinates?refcat=9872023VH5797S", err: catastro.ErrNoData, expected: http.StatusNotFound},
		{name: "schema", target: "/api/coordinates?refcat=9872023VH5797S", err: catastro.ErrResponseSchema, expected: http.StatusBadGateway},
		{name: "throttled", target: "/api/coordinates?refcat=9872023VH5797S", err: catastro.ClassifyHTTPError(http.StatusTooManyRequests), expected: http.StatusBadGateway},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router, _, recorder := setupServerTest(t, &mockService{err: tc.err})

			w := get(t, router, tc.target)
			assert.Equal(t, tc.expected, w.Code)
			assert.Empty(t, recorder.lookups)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _, _ := setupServerTest(t, &mockService{})

	_ = get(t, router, "/api/srs")

	w := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `parcela_http_requests_total{method="GET",path="/api/srs",status="200"} 1`)
}
