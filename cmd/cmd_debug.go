// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/parcela-es/parcela/catastro"
	"github.com/spf13/cobra"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd())
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

// analyzeReferences writes, for every input line, the reference followed by
// its two halves or by the reason it is not valid.
func analyzeReferences(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		ref, err := catastro.ParseReference(line)
		if err != nil {
			fmt.Fprintf(w, "%s\t%q\n", line, err)

			continue
		}

		fmt.Fprintf(w, "%s\t\tpc1=%s pc2=%s\n", ref, ref.PC1(), ref.PC2())
	}

	return scanner.Err()
}

var debugReferenciaCmd = &cobra.Command{
	Use:   "referencia",
	Short: "Valida referencias catastrales sin consultar el Catastro",
	Long: `Lee una referencia catastral por línea, e imprime en stdout la referencia
seguida de sus dos mitades (pc1 y pc2) o del motivo por el que no es válida.

$ echo 9872023VH5797S | parcela debug referencia
9872023VH5797S		pc1=9872023 pc2=VH5797S
	`,
	Run: func(_ *cobra.Command, _ []string) {
		input := os.Stdin
		if isTerminal(input) {
			fmt.Fprintln(os.Stderr, "Ingrese referencias a analizar, una por línea…")
		}

		if err := analyzeReferences(input, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugReferenciaCmd)
	debugCmd.AddCommand(debugRespuestaCmd)
}
