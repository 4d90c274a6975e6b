package metrics

import "github.com/kilianp07/volunteer/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr exposes /metrics when not empty.
	PrometheusAddr string `json:"prometheus_addr"`
}
