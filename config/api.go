package config

import "fmt"

// APIConfig defines the read-only HTTP API.
type APIConfig struct {
	// Addr is the listen address. "off" disables the API.
	Addr string `json:"addr"`
	// Token, when set, is required as a Bearer token on every request.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Enabled reports whether the API server should be started.
func (c APIConfig) Enabled() bool { return c.Addr != "off" }

// Validate checks mandatory fields.
func (c APIConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	return nil
}
