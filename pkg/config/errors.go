package config

import "fmt"

// ConfigError reports a malformed pipeline configuration. It is raised
// before any network I/O wherever the problem is detectable statically.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error at %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("config error at %s: %s", e.Field, e.Reason)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
