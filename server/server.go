// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the locator as a local JSON API.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parcela-es/parcela/catastro"
	"github.com/parcela-es/parcela/locator"
	"github.com/parcela-es/parcela/staticmap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultAddr the server listens on.
const DefaultAddr = "localhost:8080"

// Canvas is the map view shared by every request.
type Canvas interface {
	locator.Canvas
	State() staticmap.State
	Image() []byte
}

// Server answers lookups with a fresh locator session per request. Only the
// canvas outlives a request.
type Server struct {
	service locator.Service

	// mapMu makes a search and the canvas state it reports one step
	mapMu  sync.Mutex
	canvas Canvas

	recorder locator.Recorder
	gatherer prometheus.Gatherer

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Options configuration for Server.
type Options struct {
	Service locator.Service
	Canvas  Canvas

	// Recorder logs every coordinate lookup, optional
	Recorder locator.Recorder

	// Registry for the /metrics endpoint and the request collectors,
	// prometheus.DefaultRegisterer when nil
	Registry interface {
		prometheus.Registerer
		prometheus.Gatherer
	}
}

// NewServer creates a server. Service and Canvas are required.
func NewServer(options Options) (*Server, error) {
	if options.Service == nil || options.Canvas == nil {
		return nil, errors.New("server needs a service and a canvas")
	}

	var (
		reg      prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer prometheus.Gatherer   = prometheus.DefaultGatherer
	)

	if options.Registry != nil {
		reg, gatherer = options.Registry, options.Registry
	}

	factory := promauto.With(reg)

	return &Server{
		service:  options.Service,
		canvas:   options.Canvas,
		recorder: options.Recorder,
		gatherer: gatherer,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcela",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed",
		}, []string{"method", "path", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parcela",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
	}, nil
}

// Handler builds the router.
func (s *Server) Handler() *gin.Engine {
	r := gin.Default()
	r.Use(s.observe)

	api := r.Group("/api")
	api.GET("/srs", s.listSRS)
	api.GET("/provinces", s.listProvinces)
	api.GET("/provinces/:province/municipalities", s.listMunicipalities)
	api.GET("/parcels", s.lookupParcel)
	api.GET("/coordinates", s.lookupCoordinates)
	api.GET("/map", s.mapState)
	api.GET("/map.png", s.mapImage)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	return r
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	return s.Handler().Run(addr)
}

func (s *Server) observe(ctx *gin.Context) {
	start := time.Now()

	ctx.Next()

	path := ctx.FullPath()
	if path == "" {
		path = "unmatched"
	}

	s.requests.WithLabelValues(ctx.Request.Method, path, strconv.Itoa(ctx.Writer.Status())).Inc()
	s.duration.WithLabelValues(ctx.Request.Method, path).Observe(time.Since(start).Seconds())
}

func (s *Server) newSession() (*locator.Session, *locator.Collector) {
	alerts := &locator.Collector{}
	session := locator.NewSession(s.service, alerts, s.canvas)

	if s.recorder != nil {
		session.SetRecorder(s.recorder)
	}

	return session, alerts
}

// statusFor maps lookup errors to HTTP statuses: the caller's fault, nothing
// there, or the cadastre failing.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catastro.ErrInvalidReference),
		errors.Is(err, catastro.ErrMissingFields),
		errors.Is(err, catastro.ErrUnsupportedSRS):
		return http.StatusBadRequest
	case errors.Is(err, catastro.ErrNoData),
		errors.Is(err, catastro.ErrNoMunicipalities),
		errors.Is(err, locator.ErrReferenceNotFound),
		catastro.IsNotFoundError(err):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func fail(ctx *gin.Context, err error, alerts *locator.Collector) {
	body := gin.H{"error": err.Error()}
	if alerts != nil {
		body["alerts"] = alerts.Alerts()
	}

	ctx.JSON(statusFor(err), body)
}

type srsInfo struct {
	Code       string `json:"code"`
	EPSG       int    `json:"epsg"`
	Name       string `json:"name"`
	Label      string `json:"label"`
	Geographic bool   `json:"geographic"`
}

func (s *Server) listSRS(ctx *gin.Context) {
	var ret []srsInfo

	_ = catastro.EachSRS(func(srs catastro.SRS) error {
		ret = append(ret, srsInfo{
			Code:       srs.Code,
			EPSG:       srs.EPSG,
			Name:       srs.Name,
			Label:      srs.Label(),
			Geographic: srs.Geographic,
		})

		return nil
	})

	ctx.JSON(http.StatusOK, gin.H{"default": catastro.DefaultSRS().Code, "systems": ret})
}

func (s *Server) listProvinces(ctx *gin.Context) {
	session, alerts := s.newSession()

	if err := session.Open(ctx.Request.Context()); err != nil {
		fail(ctx, err, alerts)

		return
	}

	ctx.JSON(http.StatusOK, session.Provinces())
}

func (s *Server) listMunicipalities(ctx *gin.Context) {
	session, alerts := s.newSession()

	province := ctx.Param("province")
	if province == "" || province == locator.ProvincePlaceholder {
		fail(ctx, fmt.Errorf("%w: falta provincia", catastro.ErrMissingFields), nil)

		return
	}

	if err := session.SelectProvince(ctx.Request.Context(), province); err != nil {
		fail(ctx, err, alerts)

		return
	}

	ctx.JSON(http.StatusOK, session.Municipalities())
}

func (s *Server) lookupParcel(ctx *gin.Context) {
	session, alerts := s.newSession()

	// the selectors are filled without listing, as a form post would
	q := catastro.ParcelQuery{
		Province:     ctx.Query("province"),
		Municipality: ctx.Query("municipality"),
		Polygon:      ctx.Query("polygon"),
		Parcel:       ctx.Query("parcel"),
	}
	if err := q.Validate(); err != nil {
		fail(ctx, err, nil)

		return
	}

	session.SetProvince(q.Province)
	session.SelectMunicipality(q.Municipality)
	session.SetPolygon(q.Polygon)
	session.SetParcel(q.Parcel)

	parcel, err := session.LookupReference(ctx.Request.Context())
	if err != nil {
		if parcel != nil {
			ctx.JSON(statusFor(err), gin.H{"error": err.Error(), "parcel": parcel, "alerts": alerts.Alerts()})

			return
		}

		fail(ctx, err, alerts)

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"parcel": parcel, "alerts": alerts.Alerts()})
}

func (s *Server) lookupCoordinates(ctx *gin.Context) {
	// checked here because the session truncates long input like the dialog
	ref, err := catastro.ParseReference(ctx.Query("refcat"))
	if err != nil {
		fail(ctx, err, nil)

		return
	}

	session, alerts := s.newSession()

	if srs := ctx.Query("srs"); srs != "" {
		if err := session.SelectSRS(srs); err != nil {
			fail(ctx, err, nil)

			return
		}
	}

	session.SetReference(ref.String())

	s.mapMu.Lock()
	loc, err := session.Search(ctx.Request.Context())
	state := s.canvas.State()
	s.mapMu.Unlock()

	if err != nil {
		fail(ctx, err, alerts)

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"location": loc, "map": state, "alerts": alerts.Alerts()})
}

func (s *Server) mapState(ctx *gin.Context) {
	s.mapMu.Lock()
	state := s.canvas.State()
	s.mapMu.Unlock()

	ctx.JSON(http.StatusOK, state)
}

func (s *Server) mapImage(ctx *gin.Context) {
	s.mapMu.Lock()
	image := s.canvas.Image()
	s.mapMu.Unlock()

	if image == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no map image yet"})

		return
	}

	ctx.Data(http.StatusOK, "image/png", image)
}
