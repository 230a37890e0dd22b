// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

// Package catastro is a client for the public REST services of the Spanish
// Dirección General del Catastro (Oficina Virtual del Catastro, OVC).
package catastro

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/parcela-es/parcela/utils/httputils"
)

// DefaultBaseURL is the root shared by the street-map (Callejero) and
// coordinates (Coordenadas) services.
const DefaultBaseURL = "http://ovc.catastro.meh.es/OVCServWeb/OVCWcfCallejero/"

// Namespace of every XML document exchanged with the service.
const Namespace = "http://www.catastro.meh.es/"

// Paths relative to the base URL.
const (
	provincesPath      = "COVCCallejero.svc/rest/ObtenerProvincias"
	municipalitiesPath = "COVCCallejero.svc/rest/ObtenerMunicipios"
	parcelPath         = "COVCCallejero.svc/rest/Consulta_DNPPP"
	coordinatesPath    = "COVCCoordenadas.svc/json/Consulta_CPMRC"
)

// responses larger than this are not something the service sends.
const maxBodySize = 16 << 20

// ClientOptions configuration for Client.
type ClientOptions struct {
	// BaseURL overrides DefaultBaseURL
	BaseURL string

	// UserAgent is the User-Agent header to use in HTTP requests
	UserAgent string

	// Timeout for a whole request, including reading the body
	Timeout time.Duration

	// Enables light tracing of HTTP requests and responses
	EnableHTTPTrace bool

	// Enables full HTTP body tracing
	EnableHTTPBodyTrace bool

	// Destination of the HTTP trace, stderr when nil
	TraceWriter io.Writer

	// Outbound request metrics, disabled when nil
	Metrics *httputils.Metrics
}

// Client talks to the cadastre web services. It is safe for concurrent use,
// although every operation is a single blocking request.
type Client struct {
	baseURL *url.URL
	client  *http.Client
}

// NewClient creates a new client with the provided options.
func NewClient(options *ClientOptions) (*Client, error) {
	if options == nil {
		options = &ClientOptions{}
	}

	base := options.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL <%s>: %w", base, err)
	}

	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base URL <%s> must be absolute", base)
	}

	var httpLogWriter io.Writer
	if options.EnableHTTPTrace || options.EnableHTTPBodyTrace {
		httpLogWriter = options.TraceWriter
		if httpLogWriter == nil {
			httpLogWriter = os.Stderr
		}
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	loggingTransport := &httputils.LoggingRoundTripper{
		Writer:    httpLogWriter,
		DumpBody:  options.EnableHTTPBodyTrace,
		Transport: transport,
	}

	metricsTransport := &httputils.MetricsRoundTripper{
		Metrics:   options.Metrics,
		Transport: loggingTransport,
	}

	userAgent := "parcela/unknown"
	if options.UserAgent != "" {
		userAgent = options.UserAgent
	}

	headerTransport := &httputils.AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "*/*",
		},
		Transport: metricsTransport,
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: headerTransport,
		},
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	return u.String()
}

// get issues a GET and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}

	return c.do(req)
}

// postXML marshals payload as the XML request body.
func (c *Client) postXML(
	ctx context.Context,
	path string,
	payload any,
	headers map[string]string,
) ([]byte, http.Header, error) {
	body, err := xml.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding request: %w", err)
	}

	body = append([]byte(xml.Header), body...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (body []byte, header http.Header, err error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}

	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing resp.Body: %w", cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

		return nil, nil, ClassifyHTTPError(resp.StatusCode)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}

	return body, resp.Header, nil
}
