package config

import "fmt"

// HTTPConfig configures the advice API.
type HTTPConfig struct {
	// Addr is the listen address. "off" disables the server.
	Addr string `json:"addr"`
	// HistoryToken protects GET /api/advice/history when set.
	HistoryToken string `json:"history_token"`
}

// SetDefaults applies defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Enabled reports whether the server should run.
func (c HTTPConfig) Enabled() bool { return c.Addr != "off" }

// Validate checks mandatory fields.
func (c HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	return nil
}
