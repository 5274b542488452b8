package advicelog

import "fmt"

// Config selects and configures the history backend.
type Config struct {
	// Backend is "jsonl", "sqlite" or "memory".
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults applies defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "advice.db"
		default:
			c.Path = "advice.jsonl"
		}
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 50
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown advice log backend %q", c.Backend)
	}
	if c.Backend != "memory" && c.Path == "" {
		return fmt.Errorf("advice log path is required")
	}
	return nil
}

// New opens the configured store.
func New(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	}
}
