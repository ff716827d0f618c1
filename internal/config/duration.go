package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses raw as a Go duration; empty is 0. key names the
// setting in the error.
func ParseDurationField(key, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", key)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def substituted for 0.
func ParseDurationOrDefault(key, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(key, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
