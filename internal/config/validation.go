// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

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

// Validate checks the configuration for valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	switch c.ParameterPrefix {
	case ":", "@", "$":
	default:
		errors = append(errors, ValidationError{
			Field:   "parameter_prefix",
			Message: "parameter_prefix must be ':', '@' or '$'",
		})
	}

	if c.DefaultDatabase != "" {
		if _, err := c.DatabasePath(c.DefaultDatabase); err != nil {
			errors = append(errors, ValidationError{
				Field:   "default_database",
				Message: fmt.Sprintf("database %q is not defined", c.DefaultDatabase),
			})
		}
	}
	for name, path := range c.Databases {
		if path == "" {
			errors = append(errors, ValidationError{
				Field:   "databases." + name,
				Message: "path is required",
			})
		}
	}

	if c.Prover.MaxSteps <= 0 {
		errors = append(errors, ValidationError{
			Field:   "prover.max_steps",
			Message: "max_steps must be positive",
		})
	}
	if c.Prover.MaxBranches <= 0 {
		errors = append(errors, ValidationError{
			Field:   "prover.max_branches",
			Message: "max_branches must be positive",
		})
	}

	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
