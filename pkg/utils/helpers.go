package utils

import (
	"strings"
	"time"
)

// ParseDuration parses strings like "5m", falling back to def when empty or invalid
func ParseDuration(d string, def time.Duration) time.Duration {
	if strings.TrimSpace(d) == "" {
		return def
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return def
	}
	return duration
}
