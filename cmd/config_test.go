// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfigCommand(t *testing.T) *cobra.Command {
	t.Helper()

	// keep a stray ./parcela.yaml out of the way
	t.Chdir(t.TempDir())

	cmd := &cobra.Command{Use: "test"}
	addConfigFlags(cmd.Flags())

	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd := newConfigCommand(t)

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.BaseURL)
	assert.Empty(t, cfg.HistoryDB)
	assert.False(t, cfg.TraceHTTP)
}

func TestLoadConfigEnvironment(t *testing.T) {
	cmd := newConfigCommand(t)
	t.Setenv("PARCELA_TIMEOUT", "5s")
	t.Setenv("PARCELA_HISTORIAL_DB", "historial.duckdb")
	t.Setenv("PARCELA_TRACE_HTTP", "true")

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "historial.duckdb", cfg.HistoryDB)
	assert.True(t, cfg.TraceHTTP)
}

func TestLoadConfigFlagBeatsEnvironment(t *testing.T) {
	cmd := newConfigCommand(t)
	t.Setenv("PARCELA_TIMEOUT", "5s")
	require.NoError(t, cmd.Flags().Set("timeout", "2s"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestLoadConfigFile(t *testing.T) {
	cmd := newConfigCommand(t)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	content := "base-url: http://localhost:9999\ntimeout: 10s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, cmd.Flags().Set("config", path))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestLoadConfigDefaultFile(t *testing.T) {
	cmd := newConfigCommand(t)
	require.NoError(t, os.WriteFile("parcela.yaml", []byte("user-agent: prueba/1.0\n"), 0o600))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "prueba/1.0", cfg.UserAgent)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cmd := newConfigCommand(t)
	require.NoError(t, cmd.Flags().Set("config", filepath.Join(t.TempDir(), "nope.yaml")))

	_, err := loadConfig(cmd)
	require.Error(t, err)
}

func TestLoadConfigInvalidTimeout(t *testing.T) {
	cmd := newConfigCommand(t)
	require.NoError(t, cmd.Flags().Set("timeout", "0s"))

	_, err := loadConfig(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestClientOptionsUserAgent(t *testing.T) {
	cfg := &Config{Timeout: time.Second}
	assert.True(t, strings.HasPrefix(cfg.ClientOptions(nil).UserAgent, "parcela/"))

	cfg.UserAgent = "otro/2.0"
	opts := cfg.ClientOptions(nil)
	assert.Equal(t, "otro/2.0", opts.UserAgent)
	assert.Equal(t, time.Second, opts.Timeout)
	assert.Nil(t, opts.Metrics)
}
