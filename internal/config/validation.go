package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

var validSSLModes = map[string]bool{
	"disable":     true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

var validFlavors = map[string]bool{
	FlavorAuto:      true,
	FlavorGreenplum: true,
	FlavorPostgres:  true,
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateConnection()...)
	errors = append(errors, c.validateSnapshot()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateConnection() ValidationErrors {
	var errors ValidationErrors
	conn := &c.Connection

	if conn.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "connection.host",
			Message: "host is required",
		})
	}

	if conn.Port <= 0 || conn.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "connection.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if conn.User == "" {
		errors = append(errors, ValidationError{
			Field:   "connection.user",
			Message: "user is required",
		})
	}

	if !validSSLModes[conn.SSLMode] {
		errors = append(errors, ValidationError{
			Field:   "connection.sslmode",
			Message: fmt.Sprintf("invalid sslmode %q (must be disable, require, verify-ca or verify-full)", conn.SSLMode),
		})
	}

	if conn.ConnectTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "connection.connect_timeout",
			Message: "connect_timeout must not be negative",
		})
	}

	return errors
}

func (c *Config) validateSnapshot() ValidationErrors {
	var errors ValidationErrors

	if !validFlavors[c.Snapshot.Flavor] {
		errors = append(errors, ValidationError{
			Field:   "snapshot.flavor",
			Message: fmt.Sprintf("invalid flavor %q (must be auto, greenplum or postgres)", c.Snapshot.Flavor),
		})
	}

	if c.Snapshot.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "snapshot.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	return c.Logging.validate()
}

// Validate checks the logging settings alone, for tools that never connect.
func (l *LoggingConfig) Validate() error {
	if errs := l.validate(); len(errs) > 0 {
		return errs
	}
	return nil
}

func (l *LoggingConfig) validate() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if l.Level != "" && !validLevels[l.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn or error)", l.Level),
		})
	}

	if l.Format != "" && l.Format != "json" && l.Format != "text" {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json or text)", l.Format),
		})
	}

	return errors
}
