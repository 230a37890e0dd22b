// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

// Package staticmap renders the map view of a lookup as a Google Static Maps
// image.
package staticmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/parcela-es/parcela/catastro"
	"github.com/parcela-es/parcela/spatial"
)

// DefaultBaseURL of the Static Maps API.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/staticmap"

// DefaultSRS of the canvas. Static Maps takes WGS 84 degrees.
const DefaultSRS = "EPSG:4326"

// scale denominator of zoom level 0 at 96 dpi
const zoomZeroScale = 591657550.5

const maxZoom = 21

const maxImageSize = 8 << 20

// ErrNotGeographic is returned by Refresh when the canvas SRS is projected.
var ErrNotGeographic = errors.New("static maps need a geographic reference system")

// ErrNoCenter is returned by Refresh before the canvas has been centered.
var ErrNoCenter = errors.New("the map has no center yet")

// ZoomForScale converts a scale denominator into the closest web map zoom
// level.
func ZoomForScale(scale float64) int {
	if scale <= 0 {
		return maxZoom
	}

	zoom := int(math.Round(math.Log2(zoomZeroScale / scale)))

	return max(0, min(maxZoom, zoom))
}

// Options configuration for Canvas.
type Options struct {
	// APIKey for the Static Maps API. Without one the canvas keeps its state
	// but never downloads an image.
	APIKey string

	// SRS of the canvas, DefaultSRS when empty
	SRS string

	// Width and Height of the image in pixels, 640 when zero
	Width  int
	Height int

	// MapType as accepted by the API, "hybrid" when empty
	MapType string

	// BaseURL overrides DefaultBaseURL
	BaseURL string

	// Output is a file the image is written to on every refresh
	Output string

	HTTPClient *http.Client
}

// State is a snapshot of the canvas.
type State struct {
	SRS       string        `json:"srs"`
	Center    spatial.Point `json:"center"`
	Scale     float64       `json:"scale"`
	Zoom      int           `json:"zoom"`
	Refreshed time.Time     `json:"refreshed,omitzero"`
}

// Canvas is a map view whose refresh fetches a static image. It is safe for
// concurrent use.
type Canvas struct {
	options Options
	client  *http.Client

	mu        sync.Mutex
	center    spatial.Point
	scale     float64
	image     []byte
	refreshed time.Time
}

// NewCanvas creates a canvas. The SRS must be one of the supported systems.
func NewCanvas(options Options) (*Canvas, error) {
	if options.SRS == "" {
		options.SRS = DefaultSRS
	}

	srs, err := catastro.FindSRS(options.SRS)
	if err != nil {
		return nil, err
	}

	options.SRS = srs.Code

	if options.Width <= 0 {
		options.Width = 640
	}

	if options.Height <= 0 {
		options.Height = 640
	}

	if options.MapType == "" {
		options.MapType = "hybrid"
	}

	if options.BaseURL == "" {
		options.BaseURL = DefaultBaseURL
	}

	client := options.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Canvas{options: options, client: client}, nil
}

func (c *Canvas) SetCenter(p spatial.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.center = p
}

func (c *Canvas) ZoomScale(scale float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scale = scale
}

func (c *Canvas) DestinationSRS() string {
	return c.options.SRS
}

// State returns the current center and scale.
func (c *Canvas) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		SRS:       c.options.SRS,
		Center:    c.center,
		Scale:     c.scale,
		Zoom:      ZoomForScale(c.scale),
		Refreshed: c.refreshed,
	}
}

// Image is the last image fetched by Refresh, nil before the first one.
func (c *Canvas) Image() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.image
}

// URL of the image for the current state.
func (c *Canvas) URL() (string, error) {
	srs, err := catastro.FindSRS(c.options.SRS)
	if err != nil {
		return "", err
	}

	if !srs.Geographic {
		return "", fmt.Errorf("%w: %s", ErrNotGeographic, srs.Code)
	}

	state := c.State()
	if state.Center.IsZero() {
		return "", ErrNoCenter
	}

	lat, lng := state.Center.LatLng()
	center := strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)

	u, err := url.Parse(c.options.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL <%s>: %w", c.options.BaseURL, err)
	}

	q := u.Query()
	q.Set("center", center)
	q.Set("zoom", strconv.Itoa(state.Zoom))
	q.Set("size", fmt.Sprintf("%dx%d", c.options.Width, c.options.Height))
	q.Set("maptype", c.options.MapType)
	q.Set("markers", center)

	if c.options.APIKey != "" {
		q.Set("key", c.options.APIKey)
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Refresh downloads the image for the current state.
func (c *Canvas) Refresh() error {
	return c.RefreshContext(context.Background())
}

// RefreshContext is Refresh with a context. Without an API key there is
// nothing to download and only the refresh time is updated.
func (c *Canvas) RefreshContext(ctx context.Context) (err error) {
	if c.options.APIKey == "" {
		c.mu.Lock()
		c.refreshed = time.Now()
		c.mu.Unlock()

		return nil
	}

	target, err := c.URL()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching static map: %w", err)
	}

	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing resp.Body: %w", cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching static map: %w", catastro.ClassifyHTTPError(resp.StatusCode))
	}

	if media := resp.Header.Get("Content-Type"); !strings.HasPrefix(media, "image/") {
		return fmt.Errorf("fetching static map: unexpected media type %q", media)
	}

	image, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return fmt.Errorf("reading static map: %w", err)
	}

	if c.options.Output != "" {
		if err := os.WriteFile(c.options.Output, image, 0o600); err != nil {
			return fmt.Errorf("writing static map: %w", err)
		}
	}

	c.mu.Lock()
	c.image = image
	c.refreshed = time.Now()
	c.mu.Unlock()

	return nil
}
