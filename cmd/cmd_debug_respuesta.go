// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/parcela-es/parcela/catastro"
	"github.com/spf13/cobra"
)

var debugRespuestaCoordenadas bool

// parseResponse decodes a saved Consulta_DNPPP (XML) or, with coordinates
// set, Consulta_CPMRC (JSON) response.
func parseResponse(r io.Reader, coordinates bool) (any, error) {
	if coordinates {
		return catastro.ParseCoordinates(r)
	}

	return catastro.ParseParcel(r)
}

var debugRespuestaCmd = &cobra.Command{
	Use:   "respuesta [file]",
	Short: "Lee una respuesta guardada del Catastro y la muestra en formato JSON.",
	Long: `Lee una respuesta de Consulta_DNPPP (XML) desde un archivo o desde la entrada
estándar, y extrae la referencia catastral, la descripción y el uso,
imprimiéndolos en formato JSON. Con --coordenadas lee en cambio una respuesta
JSON de Consulta_CPMRC.

Ejemplos:
  cat ./catastro/testdata/dnppp.xml | go run main.go debug respuesta
  go run main.go debug respuesta --coordenadas ./catastro/testdata/cpmrc.json`,
	Run: func(_ *cobra.Command, args []string) {
		var r io.Reader

		if len(args) > 0 {
			f, err := os.Open(args[0])
			if err != nil {
				log.Fatalf("error opening file: %v", err)
			}
			defer f.Close()

			r = f
		} else {
			r = os.Stdin
			if isTerminal(os.Stdin) {
				fmt.Fprintln(os.Stderr, "Reading from stdin. Paste the response and press Ctrl+D to finish.")
			}
		}

		parsed, err := parseResponse(r, debugRespuestaCoordenadas)
		if err != nil {
			log.Fatalf("error parsing response: %v", err)
		}

		output, err := json.MarshalIndent(parsed, "", "  ")
		if err != nil {
			log.Fatalf("error marshalling json: %v", err)
		}

		fmt.Println(string(output))
	},
}

func init() {
	debugRespuestaCmd.Flags().BoolVar(
		&debugRespuestaCoordenadas,
		"coordenadas",
		false,
		"La respuesta es un JSON de Consulta_CPMRC",
	)
}
