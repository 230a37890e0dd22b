// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/parcela-es/parcela/catastro"
	"github.com/parcela-es/parcela/locator"
	"github.com/parcela-es/parcela/spatial"
	"github.com/parcela-es/parcela/staticmap"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// terminalNotifier prints alerts: information on stdout, problems on stderr.
type terminalNotifier struct {
	out io.Writer
	err io.Writer
}

func (n *terminalNotifier) Notify(a locator.Alert) {
	w := n.out
	if a.Severity != locator.SeverityInfo {
		w = n.err
	}

	fmt.Fprintf(w, "\n[%s] %s\n%s\n", a.Severity, a.Title, a.Message)
}

// terminalCanvas is a map that only describes where it is looking.
type terminalCanvas struct {
	w      io.Writer
	srs    string
	center spatial.Point
	scale  float64
}

func (c *terminalCanvas) SetCenter(p spatial.Point) {
	c.center = p
}

func (c *terminalCanvas) ZoomScale(scale float64) {
	c.scale = scale
}

func (c *terminalCanvas) Refresh() error {
	_, err := fmt.Fprintf(c.w, "Mapa centrado en %s (%s), escala 1:%g\n", c.center, c.srs, c.scale)

	return err
}

func (c *terminalCanvas) DestinationSRS() string {
	return c.srs
}

type localizarOptions struct {
	Reference    string
	Province     string
	Municipality string
	Polygon      string
	Parcel       string
	SRS          string
	Snapshot     string
}

var localizarOpts = &localizarOptions{}

// progress advances a bar on terminals and logs otherwise.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(steps int) *progress {
	p := &progress{}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		p.bar = progressbar.NewOptions(steps,
			progressbar.OptionSetDescription("Consultando el Catastro"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	return p
}

func (p *progress) step(what string) {
	if p.bar == nil {
		log.Print(what)

		return
	}

	p.bar.Describe(what)

	if err := p.bar.Add(1); err != nil {
		log.Printf("Error updating progress bar: %v", err)
	}
}

func (p *progress) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func newLocalizarCanvas(ctx context.Context, opts *localizarOptions) (locator.Canvas, error) {
	srs := opts.SRS
	if srs == "" {
		srs = catastro.DefaultSRS().Code
	}

	if opts.Snapshot == "" {
		found, err := catastro.FindSRS(srs)
		if err != nil {
			return nil, err
		}

		return &terminalCanvas{w: os.Stdout, srs: found.Code}, nil
	}

	key, err := staticmap.ResolveAPIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving static maps key: %w", err)
	}

	return staticmap.NewCanvas(staticmap.Options{
		APIKey: key,
		SRS:    srs,
		Output: opts.Snapshot,
	})
}

// runLocalizar walks the dialog: parcel fields to reference, when no
// reference is given, then reference to coordinates.
func runLocalizar(ctx context.Context, session *locator.Session, opts *localizarOptions) error {
	steps := 1
	if opts.Reference == "" {
		steps = 4
	}

	p := newProgress(steps)
	defer p.finish()

	if err := session.UseProjectSRS(); err != nil {
		return err
	}

	if opts.Reference == "" {
		if err := session.Open(ctx); err != nil {
			return err
		}

		p.step("Provincias")

		province, err := catastro.MatchName(session.ProvinceNames(), opts.Province)
		if err != nil {
			return fmt.Errorf("provincia %q: %w", opts.Province, err)
		}

		if err := session.SelectProvince(ctx, province); err != nil {
			return err
		}

		p.step("Municipios")

		municipality, err := catastro.MatchName(session.MunicipalityNames(), opts.Municipality)
		if err != nil {
			return fmt.Errorf("municipio %q: %w", opts.Municipality, err)
		}

		session.SelectMunicipality(municipality)
		session.SetPolygon(opts.Polygon)
		session.SetParcel(opts.Parcel)

		if _, err := session.LookupReference(ctx); err != nil {
			return err
		}

		p.step("Referencia catastral")
	} else {
		session.SetReference(opts.Reference)
	}

	_, err := session.Search(ctx)
	p.step("Coordenadas")

	return err
}

var localizarCmd = &cobra.Command{
	Use:   "localizar",
	Short: "Localiza una parcela y centra el mapa en ella",
	Long: `Recorre el mismo flujo que el diálogo del localizador: a partir de provincia,
municipio, polígono y parcela obtiene la referencia catastral, y a partir de la
referencia las coordenadas, centrando el mapa en ellas.

Ejemplos:
  parcela localizar --referencia 9872023VH5797S --srs EPSG:4326
  parcela localizar --provincia madrid --municipio madrid --poligono 1 --parcela 6
  parcela localizar --referencia 9872023VH5797S --srs EPSG:4326 --snapshot mapa.png`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if localizarOpts.Reference == "" &&
			(localizarOpts.Province == "" || localizarOpts.Municipality == "" ||
				localizarOpts.Polygon == "" || localizarOpts.Parcel == "") {
			return errors.New("se requiere --referencia o --provincia, --municipio, --poligono y --parcela")
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		canvas, err := newLocalizarCanvas(cmd.Context(), localizarOpts)
		if err != nil {
			return err
		}

		repo, closeHistory, err := openHistory()
		if err != nil {
			return err
		}

		defer func() {
			if err := closeHistory(); err != nil {
				log.Printf("Error closing history: %v", err)
			}
		}()

		session := locator.NewSession(c, &terminalNotifier{out: os.Stdout, err: os.Stderr}, canvas)
		if repo != nil {
			session.SetRecorder(repo)
		}

		return runLocalizar(cmd.Context(), session, localizarOpts)
	},
}

func init() {
	rootCmd.AddCommand(localizarCmd)

	flags := localizarCmd.Flags()
	flags.StringVar(&localizarOpts.Reference, "referencia", "", "Referencia catastral de 14 caracteres")
	flags.StringVar(&localizarOpts.Province, "provincia", "", "Provincia (admite coincidencia parcial)")
	flags.StringVar(&localizarOpts.Municipality, "municipio", "", "Municipio (admite coincidencia parcial)")
	flags.StringVar(&localizarOpts.Polygon, "poligono", "", "Polígono")
	flags.StringVar(&localizarOpts.Parcel, "parcela", "", "Parcela")
	flags.StringVar(&localizarOpts.SRS, "srs", "", "Sistema de referencia espacial (por defecto EPSG:4230)")
	flags.StringVar(&localizarOpts.Snapshot, "snapshot", "", "Guarda una imagen PNG del mapa (requiere un SRS geográfico)")
}
