// Package metrics provides Prometheus metrics collection for DittoChat.
//
// Metrics are optional. When the registry is not initialized, components run
// with a no-op ChatMetrics and the HTTP endpoint reports that collection is
// disabled.
//
// Usage:
//
//	// Initialize global registry (typically in the serve command)
//	metrics.InitRegistry()
//
//	// Create the Prometheus implementation
//	m := prometheus.NewChatMetrics()
//
//	// Or pass nil for no-op behavior
//	srv := server.New(cfg, journal, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is written once by InitRegistry and read by every constructor
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// It must run before any metrics instance is created. Subsequent calls are
// ignored. The Go runtime and process collectors are registered alongside the
// chat metrics.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry returns the global Prometheus registry.
//
// Returns nil if InitRegistry() has not been called, indicating metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}
