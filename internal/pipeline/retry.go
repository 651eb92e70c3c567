package pipeline

import (
	"fmt"
	"time"

	"go-fea-pipeline/internal/archive"
	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
	"go-fea-pipeline/pkg/utils"
)

// DefaultRetryConfig mirrors archive.DefaultRetryPolicy in config form
var DefaultRetryConfig = model.RetryConfig{
	MaxAttempts:     archive.DefaultRetryPolicy.MaxAttempts,
	InitialInterval: archive.DefaultRetryPolicy.InitialInterval.String(),
	MaxInterval:     archive.DefaultRetryPolicy.MaxInterval.String(),
}

// RetryPolicyFrom converts the retry section of a run config. Missing or
// unparsable values fall back to archive.DefaultRetryPolicy.
func RetryPolicyFrom(cfg model.RetryConfig) archive.RetryPolicy {
	def := archive.DefaultRetryPolicy
	policy := archive.RetryPolicy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: utils.ParseDuration(cfg.InitialInterval, def.InitialInterval),
		MaxInterval:     utils.ParseDuration(cfg.MaxInterval, def.MaxInterval),
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.MaxInterval < policy.InitialInterval {
		policy.MaxInterval = policy.InitialInterval
	}
	return policy
}

// ValidateRetry rejects retry values that are present but malformed
func ValidateRetry(cfg model.RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return fmt.Errorf("%w: retry.max_attempts must not be negative", errs.ErrInvalidConfig)
	}
	for name, v := range map[string]string{
		"retry.initial_interval": cfg.InitialInterval,
		"retry.max_interval":     cfg.MaxInterval,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("%w: %s: invalid duration %q", errs.ErrInvalidConfig, name, v)
		}
	}
	return nil
}
