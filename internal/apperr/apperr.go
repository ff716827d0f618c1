// Package apperr defines the error taxonomy shared by every steamwatch component.
//
// All three kinds are terminal for a check cycle. Callers wrap them with %w and
// inspect them with errors.As.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports missing or invalid settings. It is raised before any
// network call is made.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid settings: "+strings.Join(e.Invalid, "; "))
	}
	if len(parts) == 0 {
		return "invalid configuration"
	}
	return strings.Join(parts, "; ")
}

// Empty reports whether no problem was recorded.
func (e *ConfigError) Empty() bool {
	return e == nil || (len(e.Missing) == 0 && len(e.Invalid) == 0)
}

// TransportError reports a failed outbound call or a non-success status.
// Status is 0 when the request never got a response.
type TransportError struct {
	Op     string
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.URL != "" {
		b.WriteString(" ")
		b.WriteString(e.URL)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
		if e.Body != "" {
			b.WriteString(": ")
			b.WriteString(e.Body)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a response that is not well-formed or lacks expected fields.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse " + e.What
	}
	return "parse " + e.What + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Missingf builds a ParseError for an absent field.
func Missingf(what, format string, args ...any) error {
	return &ParseError{What: what, Err: fmt.Errorf(format, args...)}
}

func IsConfig(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

func IsParse(err error) bool {
	var e *ParseError
	return errors.As(err, &e)
}
