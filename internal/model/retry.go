package model

// RetryConfig defines how long opening a locked archive is retried
type RetryConfig struct {
	MaxAttempts     int    `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialInterval string `json:"initial_interval" yaml:"initial_interval" mapstructure:"initial_interval"` // e.g. "500ms"
	MaxInterval     string `json:"max_interval" yaml:"max_interval" mapstructure:"max_interval"`
}
