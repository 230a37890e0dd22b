// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "parcela",
	Short: "localizador de parcelas del Catastro español",
	Long: `
parcela consulta los servicios web de la Sede Electrónica del Catastro para
obtener la referencia catastral de una parcela a partir de su provincia,
municipio, polígono y parcela, y las coordenadas de una referencia catastral en
el sistema de referencia elegido.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		config = cfg

		return nil
	},
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// addConfigFlags registers the flags that loadConfig reads.
func addConfigFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Archivo de configuración YAML (por defecto ./parcela.yaml si existe)")
	flags.String("base-url", "", "URL base de los servicios del Catastro")
	flags.String("user-agent", "", "User-Agent de las peticiones HTTP")
	flags.Duration("timeout", 60*time.Second, "Tiempo máximo de cada petición al Catastro")
	flags.Bool("trace-http", false, "Display HTTP requests-responses")
	flags.Bool("trace-http-body", false, "Display HTTP requests-responses bodies")
	flags.String("historial-db", "", "Base DuckDB donde registrar las consultas de coordenadas (desactivado si vacío)")
}

func init() {
	addConfigFlags(rootCmd.PersistentFlags())
}
