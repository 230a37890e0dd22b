// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"

	"github.com/parcela-es/parcela/catastro"
	"github.com/parcela-es/parcela/server"
	"github.com/parcela-es/parcela/staticmap"
	"github.com/parcela-es/parcela/utils/httputils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveOpts = struct {
	Addr      string
	SRS       string
	StaticMap bool
}{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expone el localizador como API HTTP local",
	Long: `Levanta un servidor HTTP con las consultas del localizador en formato JSON:

  GET /api/srs
  GET /api/provinces
  GET /api/provinces/:province/municipalities
  GET /api/parcels?province=&municipality=&polygon=&parcel=
  GET /api/coordinates?refcat=&srs=
  GET /api/map
  GET /api/map.png
  GET /metrics`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		metrics, err := httputils.NewMetrics(registry, "parcela")
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}

		c, err := catastro.NewClient(config.ClientOptions(metrics))
		if err != nil {
			return err
		}

		mapOptions := staticmap.Options{SRS: serveOpts.SRS}
		if serveOpts.StaticMap {
			if mapOptions.APIKey, err = staticmap.ResolveAPIKey(cmd.Context()); err != nil {
				return fmt.Errorf("resolving static maps key: %w", err)
			}
		}

		canvas, err := staticmap.NewCanvas(mapOptions)
		if err != nil {
			return err
		}

		options := server.Options{Service: c, Canvas: canvas, Registry: registry}

		repo, closeHistory, err := openHistory()
		if err != nil {
			return err
		}

		defer func() {
			if err := closeHistory(); err != nil {
				log.Printf("Error closing history: %v", err)
			}
		}()

		if repo != nil {
			options.Recorder = repo
		}

		srv, err := server.NewServer(options)
		if err != nil {
			return err
		}

		log.Printf("Listening on http://%s", serveOpts.Addr)

		return srv.Run(serveOpts.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveOpts.Addr, "addr", server.DefaultAddr, "Dirección de escucha")
	serveCmd.Flags().StringVar(&serveOpts.SRS, "srs", staticmap.DefaultSRS, "Sistema de referencia del mapa")
	serveCmd.Flags().BoolVar(
		&serveOpts.StaticMap,
		"static-map",
		false,
		"Descarga la imagen del mapa de Google Static Maps en cada búsqueda",
	)
}
