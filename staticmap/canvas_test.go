// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package staticmap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/parcela-es/parcela/catastro"
	"github.com/parcela-es/parcela/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestZoomForScale(t *testing.T) {
	tests := []struct {
		scale    float64
		expected int
	}{
		{scale: 500, expected: 20},
		{scale: 1128.497220, expected: 19},
		{scale: 591657550.5, expected: 0},
		{scale: 1e12, expected: 0},
		{scale: 10, expected: 21},
		{scale: 0, expected: 21},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, ZoomForScale(tc.scale), "scale %g", tc.scale)
	}
}

func TestNewCanvasRejectsUnsupportedSRS(t *testing.T) {
	_, err := NewCanvas(Options{SRS: "EPSG:3857"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, catastro.ErrUnsupportedSRS))

	c, err := NewCanvas(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultSRS, c.DestinationSRS())
}

func TestRefresh(t *testing.T) {
	var query url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	output := filepath.Join(t.TempDir(), "mapa.png")

	c, err := NewCanvas(Options{APIKey: "secret", BaseURL: srv.URL, Output: output, Width: 400, Height: 300})
	require.NoError(t, err)

	c.SetCenter(spatial.Point{X: -3.7038, Y: 40.4168})
	c.ZoomScale(500)
	require.NoError(t, c.Refresh())

	assert.Equal(t, "40.4168,-3.7038", query.Get("center"))
	assert.Equal(t, "40.4168,-3.7038", query.Get("markers"))
	assert.Equal(t, "20", query.Get("zoom"))
	assert.Equal(t, "400x300", query.Get("size"))
	assert.Equal(t, "hybrid", query.Get("maptype"))
	assert.Equal(t, "secret", query.Get("key"))

	assert.Equal(t, pngHeader, c.Image())

	written, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, written)

	state := c.State()
	assert.Equal(t, 20, state.Zoom)
	assert.False(t, state.Refreshed.IsZero())
}

func TestRefreshProjectedSRS(t *testing.T) {
	c, err := NewCanvas(Options{APIKey: "secret", SRS: "EPSG:25830", BaseURL: "http://127.0.0.1:1/"})
	require.NoError(t, err)

	c.SetCenter(spatial.Point{X: 440123.45, Y: 4474567.89})
	err = c.Refresh()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotGeographic))
	assert.Nil(t, c.Image())
}

func TestRefreshErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "forbidden",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
		},
		{
			name: "not an image",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				_, _ = w.Write([]byte("The Google Maps Platform server rejected your request."))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c, err := NewCanvas(Options{APIKey: "secret", BaseURL: srv.URL})
			require.NoError(t, err)

			c.SetCenter(spatial.Point{X: -3.7038, Y: 40.4168})
			require.Error(t, c.RefreshContext(context.Background()))
			assert.Nil(t, c.Image())
		})
	}
}

func TestRefreshWithoutCenter(t *testing.T) {
	requests := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	c, err := NewCanvas(Options{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	err = c.Refresh()
	require.ErrorIs(t, err, ErrNoCenter)
	assert.Zero(t, requests)
	assert.Nil(t, c.Image())
}

func TestRefreshWithoutKeyOnlyTracksState(t *testing.T) {
	c, err := NewCanvas(Options{SRS: "EPSG:25830", BaseURL: "http://127.0.0.1:1/"})
	require.NoError(t, err)

	c.SetCenter(spatial.Point{X: 440123.45, Y: 4474567.89})
	c.ZoomScale(500)
	require.NoError(t, c.Refresh())

	state := c.State()
	assert.Equal(t, spatial.Point{X: 440123.45, Y: 4474567.89}, state.Center)
	assert.Equal(t, "EPSG:25830", state.SRS)
	assert.False(t, state.Refreshed.IsZero())
	assert.Nil(t, c.Image())
}

func TestResolveAPIKeyFromEnv(t *testing.T) {
	t.Setenv(APIKeyEnv, "from-env")

	key, err := ResolveAPIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}
