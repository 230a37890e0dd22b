// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/parcela-es/parcela/history"
	"github.com/spf13/cobra"
)

var historialCmd = &cobra.Command{
	Use:   "historial",
	Short: "Consulta el registro de búsquedas de coordenadas",
	Long: `El registro es opcional: solo se escribe cuando se indica --historial-db (o
PARCELA_HISTORIAL_DB). Nunca se usa para responder una búsqueda.`,
}

var historialListOpts = struct {
	Limit  int
	Offset int
}{}

var historialListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lista las últimas búsquedas registradas",
	RunE: func(_ *cobra.Command, _ []string) (err error) {
		repo, closeHistory, err := requireHistory()
		if err != nil {
			return err
		}

		defer func() { err = errors.Join(err, closeHistory()) }()

		total, err := repo.CountLookups()
		if err != nil {
			return err
		}

		lookups, err := repo.ListLookups(historialListOpts.Limit, historialListOpts.Offset)
		if err != nil {
			return err
		}

		a, b, c, d := strings.Repeat("─", 19), strings.Repeat("─", 14), strings.Repeat("─", 10), strings.Repeat("─", 40)
		fmt.Printf("%d búsquedas registradas:\n", total)
		fmt.Printf("╭─%-19s─┬─%-14s─┬─%-10s─┬─%-40s─╮\n", a, b, c, d)
		fmt.Printf("│ %-19s │ %-14s │ %-10s │ %-40s │\n", "Fecha", "Referencia", "SRS", "Coordenadas")
		fmt.Printf("├─%-19s─┼─%-14s─┼─%-10s─┼─%-40s─┤\n", a, b, c, d)

		for _, l := range lookups {
			fmt.Printf("│ %-19s │ %-14s │ %-10s │ %-40s │\n",
				l.CreatedAt.Format("2006-01-02 15:04:05"), l.Reference, l.SRS, l.Point.Pair())
		}

		fmt.Printf("╰─%-19s─┴─%-14s─┴─%-10s─┴─%-40s─╯\n", a, b, c, d)

		return nil
	},
}

var historialExportCmd = &cobra.Command{
	Use:   "export <archivo.json>",
	Short: "Exporta el registro a un archivo JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) (err error) {
		repo, closeHistory, err := requireHistory()
		if err != nil {
			return err
		}

		defer func() { err = errors.Join(err, closeHistory()) }()

		n, err := history.ExportToJSON(repo, args[0])
		if err != nil {
			return err
		}

		log.Printf("Exported %d lookups to %s", n, args[0])

		return nil
	},
}

var historialImportCmd = &cobra.Command{
	Use:   "import <archivo.json>",
	Short: "Agrega al registro las búsquedas de un archivo exportado",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) (err error) {
		repo, closeHistory, err := requireHistory()
		if err != nil {
			return err
		}

		defer func() { err = errors.Join(err, closeHistory()) }()

		n, err := history.ImportFromJSON(repo, args[0])
		if err != nil {
			return err
		}

		log.Printf("Imported %d lookups from %s", n, args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(historialCmd)
	historialCmd.AddCommand(historialListCmd)
	historialCmd.AddCommand(historialExportCmd)
	historialCmd.AddCommand(historialImportCmd)

	historialListCmd.Flags().IntVar(&historialListOpts.Limit, "limit", 20, "Cantidad máxima de búsquedas (0 para todas)")
	historialListCmd.Flags().IntVar(&historialListOpts.Offset, "offset", 0, "Búsquedas a saltear")
}
