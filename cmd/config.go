// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/parcela-es/parcela/catastro"
	"github.com/parcela-es/parcela/history"
	"github.com/parcela-es/parcela/utils/httputils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the merge of flags, PARCELA_* environment variables and the
// optional config file, in that order of precedence.
type Config struct {
	BaseURL       string        `mapstructure:"base-url"`
	UserAgent     string        `mapstructure:"user-agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	TraceHTTP     bool          `mapstructure:"trace-http"`
	TraceHTTPBody bool          `mapstructure:"trace-http-body"`
	HistoryDB     string        `mapstructure:"historial-db"`
}

var config = &Config{}

func loadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	// PARCELA_HISTORIAL_DB → historial-db
	v.SetEnvPrefix("PARCELA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("parcela")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values that cannot be caught by the flag parser.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}

	return nil
}

// ClientOptions for the cadastre client. metrics may be nil.
func (c *Config) ClientOptions(metrics *httputils.Metrics) *catastro.ClientOptions {
	userAgent := c.UserAgent
	if userAgent == "" {
		userAgent = fmt.Sprintf("parcela/%s", Version)
	}

	return &catastro.ClientOptions{
		BaseURL:             c.BaseURL,
		UserAgent:           userAgent,
		Timeout:             c.Timeout,
		EnableHTTPTrace:     c.TraceHTTP,
		EnableHTTPBodyTrace: c.TraceHTTPBody,
		Metrics:             metrics,
	}
}

func newClient() (*catastro.Client, error) {
	return catastro.NewClient(config.ClientOptions(nil))
}

// openHistory opens the lookup log. It returns a nil repository when no
// database is configured.
func openHistory() (history.Repository, func() error, error) {
	if config.HistoryDB == "" {
		return nil, func() error { return nil }, nil
	}

	db, err := sql.Open("duckdb", config.HistoryDB)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := history.NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("creating table: %w", err), db.Close())
	}

	return repo, db.Close, nil
}

func requireHistory() (history.Repository, func() error, error) {
	if config.HistoryDB == "" {
		return nil, nil, errors.New("se requiere --historial-db (o PARCELA_HISTORIAL_DB)")
	}

	return openHistory()
}
