// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils provides http.RoundTripper decorators used by the
// catastro and static map clients.
package httputils

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

/////////////////////////////////////////
/// RoundTrippers

// LoggingRoundTripper dumps every request and response to Writer. A nil
// Writer disables the dump.
type LoggingRoundTripper struct {
	Transport http.RoundTripper
	Writer    io.Writer
	DumpBody  bool
}

// api keys travel as query parameters (Google Static Maps).
var secretParamRegex = regexp.MustCompile(`([?&]key=)[^&\s]+`)

// prefixes and shortens the dumped lines.
func abbreviate(lines []string, prefix rune) []string {
	const maxLines, maxChars = 2048, 512

	if len(lines) > maxLines {
		lines = append(lines[:maxLines], "…")
	}

	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(line), "authorization:") {
			line = "Authorization: <redacted>"
		}

		line = secretParamRegex.ReplaceAllString(line, "${1}<redacted>")
		line = fmt.Sprintf("%c %s", prefix, line)

		if len(line) > maxChars {
			line = line[0:maxChars] + "…"
		}

		lines[i] = line
	}

	return lines
}

func (t *LoggingRoundTripper) dumpRequest(req *http.Request) error {
	dump, err := httputil.DumpRequestOut(req, t.DumpBody)
	if err != nil {
		return fmt.Errorf("tracing HTTP request: %w", err)
	}

	lines := abbreviate(strings.Split(string(dump), "\n"), '>')
	lines = append(lines, "")
	_, err = fmt.Fprint(t.Writer, strings.Join(lines, "\n"))

	return err
}

func (t *LoggingRoundTripper) dumpResponse(resp *http.Response, duration time.Duration) error {
	dump, err := httputil.DumpResponse(resp, t.DumpBody)
	if err != nil {
		return fmt.Errorf("tracing HTTP response: %w", err)
	}

	if _, err = fmt.Fprintf(t.Writer, "< RESPONSE: [%v]\n", duration); err != nil {
		return fmt.Errorf("tracing HTTP response: %w", err)
	}

	lines := abbreviate(strings.Split(string(dump), "\n"), '<')
	lines = append(lines, "")
	_, err = fmt.Fprint(t.Writer, strings.Join(lines, "\n"))

	return err
}

// RoundTrip implements the http.RoundTripper interface.
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Writer == nil {
		return t.Transport.RoundTrip(req)
	}

	if err := t.dumpRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := t.dumpResponse(resp, time.Since(start)); err != nil {
		return nil, err
	}

	return resp, nil
}

// AppendRequestHeadersRoundTripper sets fixed headers on every request,
// unless the request already carries that header.
type AppendRequestHeadersRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *AppendRequestHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	return t.Transport.RoundTrip(req)
}

////////////////////////////////////////////////////
/// Metrics

// Metrics holds the collectors fed by MetricsRoundTripper.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the outbound request collectors under
// the given namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total outbound HTTP requests by operation and status",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Outbound HTTP request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering upstream metrics: %w", err)
		}
	}

	return m, nil
}

// MetricsRoundTripper counts and times requests. The operation label is the
// last segment of the URL path (e.g. ObtenerProvincias).
type MetricsRoundTripper struct {
	Transport http.RoundTripper
	Metrics   *Metrics
}

func operationOf(req *http.Request) string {
	p := strings.TrimRight(req.URL.Path, "/")
	if i := strings.LastIndexByte(p, '/'); i != -1 {
		p = p[i+1:]
	}

	if p == "" {
		return "unknown"
	}

	return p
}

// RoundTrip implements the http.RoundTripper interface.
func (t *MetricsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Metrics == nil {
		return t.Transport.RoundTrip(req)
	}

	op := operationOf(req)
	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	t.Metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}

	t.Metrics.requests.WithLabelValues(op, status).Inc()

	return resp, err
}
