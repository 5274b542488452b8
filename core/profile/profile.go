// Package profile stores the vehicle of each client so returning clients
// only send their state of charge.
package profile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// ErrNotFound is returned when a client has no stored profile.
var ErrNotFound = errors.New("client profile not found")

// Profile is the vehicle a client charges. DepartureClock is the usual
// departure as a wall clock time and may be empty.
type Profile struct {
	ClientID       string    `json:"client_id"`
	BatteryKWh     float64   `json:"battery_kwh"`
	ChargingKW     float64   `json:"charging_kw"`
	DepartureClock string    `json:"departure_clock,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks the profile can complete a charge job.
func (p Profile) Validate() error {
	if p.ClientID == "" {
		return fmt.Errorf("%w: client id is required", model.ErrInvalidJob)
	}
	if !(p.BatteryKWh > 0) || math.IsInf(p.BatteryKWh, 0) {
		return fmt.Errorf("%w: battery capacity must be positive", model.ErrInvalidJob)
	}
	if !(p.ChargingKW > 0) || math.IsInf(p.ChargingKW, 0) {
		return fmt.Errorf("%w: charging rate must be positive", model.ErrInvalidJob)
	}
	if p.DepartureClock != "" {
		if _, err := model.NextDeparture(p.DepartureClock, time.Now()); err != nil {
			return fmt.Errorf("%w: %v", model.ErrInvalidJob, err)
		}
	}
	return nil
}

// Store keeps one profile per client.
type Store interface {
	// Put creates or replaces the profile of p.ClientID.
	Put(ctx context.Context, p Profile) error
	// Get returns ErrNotFound for unknown clients.
	Get(ctx context.Context, clientID string) (Profile, error)
	Close() error
}

// Config selects the profile backend.
type Config struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

// SetDefaults applies defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "clients.db"
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "memory":
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("profile store path is required")
		}
	default:
		return fmt.Errorf("unknown profile backend %q", c.Backend)
	}
	return nil
}

// New opens the configured store.
func New(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == "sqlite" {
		return NewSQLiteStore(cfg.Path)
	}
	return NewMemoryStore(), nil
}
