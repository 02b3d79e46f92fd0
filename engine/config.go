package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries the tunable engine policies. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// MaxEvalDepth bounds the reference chain depth during evaluation.
	// Zero means unbounded; exceeding the bound yields #NUM!.
	MaxEvalDepth int `yaml:"max_eval_depth"`

	// CopyVerbatim makes fills duplicate formulas without adjusting
	// their references.
	CopyVerbatim bool `yaml:"copy_verbatim"`

	// MaxRows and MaxColumns bound the grid. They cannot exceed the
	// engine's hard limits.
	MaxRows    uint32 `yaml:"max_rows"`
	MaxColumns uint32 `yaml:"max_columns"`
}

// DefaultConfig returns the standard policy set.
func DefaultConfig() Config {
	return Config{
		MaxEvalDepth: 0,
		CopyVerbatim: false,
		MaxRows:      MaxRows,
		MaxColumns:   MaxColumns,
	}
}

// LoadConfig reads a YAML config file over the defaults. Absent keys
// keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MaxEvalDepth < 0 {
		return fmt.Errorf("max_eval_depth must be non-negative, got %d", c.MaxEvalDepth)
	}
	if c.MaxRows == 0 || c.MaxRows > MaxRows {
		return fmt.Errorf("max_rows must be in [1, %d], got %d", MaxRows, c.MaxRows)
	}
	if c.MaxColumns == 0 || c.MaxColumns > MaxColumns {
		return fmt.Errorf("max_columns must be in [1, %d], got %d", MaxColumns, c.MaxColumns)
	}
	return nil
}
