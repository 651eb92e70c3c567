package model

// ConcurrencyConfig bounds a batch run. Each worker owns one archive
// handle at a time.
type ConcurrencyConfig struct {
	Workers int         `json:"workers" yaml:"workers" mapstructure:"workers"`
	Timeout string      `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"` // e.g. "30m"
	Retry   RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`
}
