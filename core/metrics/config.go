package metrics

import "github.com/kilianp07/smartcharge/core/factory"

// Config lists the sinks to instantiate.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
}
