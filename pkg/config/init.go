package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const configHeader = `# DittoChat Configuration File
#
# Every value below is a default. Environment variables override the file:
# DITTOCHAT_<SECTION>_<KEY>, e.g. DITTOCHAT_SERVER_MAX_CLIENTS=10.
`

// sectionComments are written above each top-level section of a generated file.
var sectionComments = map[string]string{
	"logging":  "Operational logging: level DEBUG|INFO|WARN|ERROR, format text|json, output stdout|stderr|<path>",
	"server":   "Chat server: TCP listener, client capacity and housekeeping timers",
	"journal":  "Chat log read back with /logs. type selects one of the sections below: memory|file|badger|s3",
	"adapters": "Optional transports sharing the server capacity",
	"metrics":  "Prometheus endpoint serving /metrics and /healthz",
}

// InitConfig writes a configuration file with all defaults to the default
// location and returns its path.
//
// Parameters:
//   - force: Overwrite an existing file
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a configuration file with all defaults to path,
// creating parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML keyed by the mapstructure tags,
// with a comment above every section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var raw map[string]any
	if err := mapstructure.Decode(cfg, &raw); err != nil {
		return "", fmt.Errorf("failed to convert config: %w", err)
	}

	var doc yaml.Node
	if err := doc.Encode(humanize(raw)); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.String(), nil
}

// humanize rewrites durations as strings so the generated file reads "5m0s"
// instead of nanoseconds.
func humanize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = humanize(item)
		}
		return out
	case time.Duration:
		return val.String()
	default:
		return v
	}
}
