package evidence

import "fmt"

// Defaults used when no configuration is supplied.
const (
	DefaultBaseErrorRate   = 0.001
	DefaultPValueThreshold = 0.01
)

// Config holds the two constants the engine consumes.
type Config struct {
	// BaseErrorRate is the per-base sequencing error rate, in (0,1).
	BaseErrorRate float64 `mapstructure:"base_error_rate" yaml:"base_error_rate"`
	// PValueThreshold separates presence from absence of evidence.
	PValueThreshold float64 `mapstructure:"pvalue_threshold" yaml:"pvalue_threshold"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		BaseErrorRate:   DefaultBaseErrorRate,
		PValueThreshold: DefaultPValueThreshold,
	}
}

// ConfigError reports an out-of-range configuration value.
type ConfigError struct {
	Field string
	Value float64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid evidence config: %s=%g out of range", e.Field, e.Value)
}

// Validate checks that both values are usable probabilities.
func (c Config) Validate() error {
	if !(c.BaseErrorRate > 0 && c.BaseErrorRate < 1) {
		return &ConfigError{Field: "base_error_rate", Value: c.BaseErrorRate}
	}
	if !(c.PValueThreshold >= 0 && c.PValueThreshold <= 1) {
		return &ConfigError{Field: "pvalue_threshold", Value: c.PValueThreshold}
	}
	return nil
}
