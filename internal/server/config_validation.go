// config_validation.go - Startup configuration validation.
//
// Collects every problem in one pass so the service fails fast with a
// single readable message instead of one error per restart.
package server

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator accumulates validation errors.
type ConfigValidator struct {
	errors []ConfigValidationError
}

// NewConfigValidator creates a new configuration validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ConfigValidationError, 0),
	}
}

// AddError adds a validation error.
func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidateAddr checks a listen address of the form "host:port" or ":port".
func (v *ConfigValidator) ValidateAddr(key, value string) {
	if value == "" {
		v.AddError(key, "must not be empty")
		return
	}

	_, portStr, err := net.SplitHostPort(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid listen address: %v", err))
		return
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}

	// Port 0 asks the kernel for a free port; tests rely on it.
	if port < 0 || port > 65535 {
		v.AddError(key, "port must be between 0 and 65535")
	}
}

// ValidateURL checks that value parses and uses one of the given schemes.
func (v *ConfigValidator) ValidateURL(key, value string, schemes ...string) {
	if value == "" {
		return
	}

	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}

	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("URL scheme must be one of: %s", strings.Join(schemes, ", ")))
}

// ValidateEnum validates that a value is one of allowed options.
func (v *ConfigValidator) ValidateEnum(key, value string, allowed []string) {
	for _, opt := range allowed {
		if strings.EqualFold(value, opt) {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// ValidatePositiveDuration rejects zero and negative durations.
func (v *ConfigValidator) ValidatePositiveDuration(key string, d time.Duration) {
	if d <= 0 {
		v.AddError(key, fmt.Sprintf("must be a positive duration (got: %s)", d))
	}
}

// WarnOnOptionalMissingConfig logs which optional features are off.
func WarnOnOptionalMissingConfig(cfg Config) {
	warnings := make([]string, 0)

	if !cfg.Audit.Enabled {
		warnings = append(warnings, "audit.enabled is false - mutations are not recorded")
	}
	if !cfg.S3.Enabled() {
		warnings = append(warnings, "s3 not configured - snapshot export disabled")
	}
	if cfg.RateLimit.Requests <= 0 {
		warnings = append(warnings, "ratelimit.requests not set - rate limiting disabled")
	}
	if !strings.EqualFold(cfg.Log.Format, "json") {
		warnings = append(warnings, "log.format is text - consider 'json' for production")
	}

	if len(warnings) > 0 {
		Info("configuration warnings", map[string]any{
			"count":    len(warnings),
			"warnings": warnings,
		})
	}
}
