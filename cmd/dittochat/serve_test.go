package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseServeFlags(t *testing.T, args ...string) (*cobra.Command, serveOptions) {
	t.Helper()

	var opts serveOptions
	cmd := &cobra.Command{Use: "serve"}
	bindServeFlags(cmd.Flags(), &opts)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, opts
}

func TestLoadServeConfigDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	cmd, opts := parseServeFlags(t, "--config", missing)

	cfg, err := loadServeConfig(cmd, opts)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.MaxClients)
	assert.Equal(t, "file", cfg.Journal.Type)
	assert.NotContains(t, cfg.Journal.File, "path")
}

func TestLoadServeConfigFlagsOverride(t *testing.T) {
	dir := t.TempDir()
	cmd, opts := parseServeFlags(t,
		"--config", filepath.Join(dir, "missing.yaml"),
		"-a", "127.0.0.1",
		"-p", "6000",
		"--max-clients", "9",
		"--log-level", "debug",
		"-l", "room.log",
		"--log-dir", dir,
	)

	cfg, err := loadServeConfig(cmd, opts)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, 9, cfg.Server.MaxClients)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "file", cfg.Journal.Type)
	assert.Equal(t, filepath.Join(dir, "room.log"), cfg.Journal.File["path"])
	assert.Equal(t, dir, cfg.Journal.File["dir"])
}

func TestLoadServeConfigAbsoluteLogFile(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "elsewhere.log")
	cmd, opts := parseServeFlags(t,
		"--config", filepath.Join(dir, "missing.yaml"),
		"--log", abs,
	)

	cfg, err := loadServeConfig(cmd, opts)
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.Journal.File["path"])
}

func TestLoadServeConfigLogDirReplacesConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := "journal:\n  type: file\n  file:\n    path: " + filepath.Join(dir, "old.log") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0644))

	logDir := t.TempDir()
	cmd, opts := parseServeFlags(t, "--config", cfgPath, "--log-dir", logDir)

	cfg, err := loadServeConfig(cmd, opts)
	require.NoError(t, err)
	assert.Equal(t, logDir, cfg.Journal.File["dir"])
	assert.NotContains(t, cfg.Journal.File, "path")
}

func TestLoadServeConfigRejectsInvalidFlags(t *testing.T) {
	cmd, opts := parseServeFlags(t,
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--max-clients", "-3",
	)

	_, err := loadServeConfig(cmd, opts)
	assert.ErrorContains(t, err, "MaxClients")
}

func TestConfigSchema(t *testing.T) {
	data, err := configSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "DittoChat Configuration", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, section := range []string{"logging", "server", "journal", "adapters", "metrics"} {
		assert.Contains(t, props, section)
	}
}
