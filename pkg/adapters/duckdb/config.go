package duckdb

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific session configuration.
// Parsed from core.AdapterConfig.Params using mapstructure.
type Params struct {
	// ExtensionDirectory overrides where extensions are installed and loaded from.
	ExtensionDirectory string `mapstructure:"extension_directory"`

	// Offline disables extension downloads; extensions must already be installed.
	Offline bool `mapstructure:"offline"`

	// MemoryLimit caps the session's memory (e.g. "1GB").
	MemoryLimit string `mapstructure:"memory_limit"`

	// Threads caps the session's worker threads; zero leaves the engine default.
	Threads int `mapstructure:"threads"`
}

// ParseParams decodes adapter params. Unknown keys are rejected.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build params decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}
