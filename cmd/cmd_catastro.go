// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/parcela-es/parcela/catastro"
	"github.com/parcela-es/parcela/locator"
	"github.com/spf13/cobra"
)

var provinciasCmd = &cobra.Command{
	Use:   "provincias",
	Short: "Lista las provincias gestionadas por el Catastro",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		provinces, err := c.Provinces(cmd.Context())
		if err != nil {
			return err
		}

		a, b := strings.Repeat("─", 4), strings.Repeat("─", 30)
		fmt.Printf("╭─%4s─┬─%-30s─╮\n", a, b)
		fmt.Printf("│ %4s │ %-30s │\n", "INE", "Provincia")
		fmt.Printf("├─%4s─┼─%-30s─┤\n", a, b)

		for _, p := range provinces {
			fmt.Printf("│ %4s │ %-30s │\n", p.INECode, p.Name)
		}

		fmt.Printf("╰─%4s─┴─%-30s─╯\n", a, b)

		return nil
	},
}

// resolveProvince matches user input against the province list, so that
// "coruna" finds "A CORUÑA".
func resolveProvince(cmd *cobra.Command, c *catastro.Client, q string) (string, error) {
	provinces, err := c.Provinces(cmd.Context())
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(provinces))
	for _, p := range provinces {
		names = append(names, p.Name)
	}

	name, err := catastro.MatchName(names, q)
	if err != nil {
		return "", fmt.Errorf("provincia %q: %w", q, err)
	}

	return name, nil
}

// resolveMunicipality matches user input against the municipalities of an
// already resolved province.
func resolveMunicipality(cmd *cobra.Command, c *catastro.Client, province, q string) (string, error) {
	municipalities, err := c.Municipalities(cmd.Context(), province)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(municipalities))
	for _, m := range municipalities {
		names = append(names, m.Name)
	}

	name, err := catastro.MatchName(names, q)
	if err != nil {
		return "", fmt.Errorf("municipio %q: %w", q, err)
	}

	return name, nil
}

var municipiosCmd = &cobra.Command{
	Use:   "municipios <provincia>",
	Short: "Lista los municipios de una provincia",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		province, err := resolveProvince(cmd, c, args[0])
		if err != nil {
			return err
		}

		municipalities, err := c.Municipalities(cmd.Context(), province)
		if err != nil {
			return err
		}

		a, b := strings.Repeat("─", 4), strings.Repeat("─", 40)
		fmt.Printf("Municipios de %s:\n", province)
		fmt.Printf("╭─%4s─┬─%-40s─╮\n", a, b)
		fmt.Printf("│ %4s │ %-40s │\n", "INE", "Municipio")
		fmt.Printf("├─%4s─┼─%-40s─┤\n", a, b)

		for _, m := range municipalities {
			fmt.Printf("│ %4s │ %-40s │\n", m.INECode, m.Name)
		}

		fmt.Printf("╰─%4s─┴─%-40s─╯\n", a, b)

		return nil
	},
}

var referenciaCmd = &cobra.Command{
	Use:   "referencia <provincia> <municipio> <poligono> <parcela>",
	Short: "Obtiene la referencia catastral de una parcela rústica",
	Long: `Provincia y municipio admiten coincidencia parcial y sin acentos, como en
"municipios" y "localizar".`,
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		province, err := resolveProvince(cmd, c, args[0])
		if err != nil {
			return err
		}

		municipality, err := resolveMunicipality(cmd, c, province, args[1])
		if err != nil {
			return err
		}

		parcel, err := c.ParcelByPolygon(cmd.Context(), catastro.ParcelQuery{
			Province:     province,
			Municipality: municipality,
			Polygon:      args[2],
			Parcel:       args[3],
		})
		if err != nil {
			return err
		}

		fmt.Println(locator.ParcelSummary(parcel))

		if !parcel.HasReference() {
			return locator.ErrReferenceNotFound
		}

		return nil
	},
}

var coordenadasSRS string

var coordenadasCmd = &cobra.Command{
	Use:   "coordenadas <referencia>",
	Short: "Obtiene las coordenadas del centroide de una referencia catastral",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		loc, err := c.Coordinates(cmd.Context(), args[0], coordenadasSRS)
		if err != nil {
			return err
		}

		fmt.Println(locator.LocationSummary(loc.Reference, loc))
		fmt.Printf("SRS: %s\n", loc.SRS)

		return nil
	},
}

var srsCmd = &cobra.Command{
	Use:   "srs",
	Short: "Lista los sistemas de referencia espacial soportados",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, b := strings.Repeat("─", 10), strings.Repeat("─", 30)
		fmt.Printf("╭─%-10s─┬─%-30s─╮\n", a, b)
		fmt.Printf("│ %-10s │ %-30s │\n", "Código", "Nombre")
		fmt.Printf("├─%-10s─┼─%-30s─┤\n", a, b)
		err := catastro.EachSRS(func(srs catastro.SRS) error {
			fmt.Printf("│ %-10s │ %-30s │\n", srs.Code, srs.Name)

			return nil
		})
		fmt.Printf("╰─%-10s─┴─%-30s─╯\n", a, b)

		return err
	},
}

func init() {
	rootCmd.AddCommand(provinciasCmd)
	rootCmd.AddCommand(municipiosCmd)
	rootCmd.AddCommand(referenciaCmd)
	rootCmd.AddCommand(coordenadasCmd)
	rootCmd.AddCommand(srsCmd)

	coordenadasCmd.Flags().StringVar(
		&coordenadasSRS,
		"srs",
		catastro.DefaultSRS().Code,
		"Sistema de referencia espacial de las coordenadas",
	)
}
