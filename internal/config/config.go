// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package config provides configuration structures and loading for sqltype.
package config

import (
	"fmt"
	"strings"
)

// Config represents the complete application configuration.
type Config struct {
	// Databases maps logical database names, as used at call sites, to
	// database file paths or file: URLs.
	Databases       map[string]string `yaml:"databases" mapstructure:"databases"`
	DefaultDatabase string            `yaml:"default_database" mapstructure:"default_database"`
	// ParameterPrefix is the prefix named parameters must use: ":", "@"
	// or "$".
	ParameterPrefix string        `yaml:"parameter_prefix" mapstructure:"parameter_prefix"`
	Rules           RulesConfig   `yaml:"rules" mapstructure:"rules"`
	Prover          ProverConfig  `yaml:"prover" mapstructure:"prover"`
	Logging         LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// RulesConfig enables or disables the lint rules.
type RulesConfig struct {
	TypedInput      bool `yaml:"typed_input" mapstructure:"typed_input"`
	TypedResult     bool `yaml:"typed_result" mapstructure:"typed_result"`
	ValidQuery      bool `yaml:"valid_query" mapstructure:"valid_query"`
	ParameterPrefix bool `yaml:"parameter_prefix" mapstructure:"parameter_prefix"`
}

// ProverConfig bounds the nullability prover.
type ProverConfig struct {
	MaxSteps    int `yaml:"max_steps" mapstructure:"max_steps"`
	MaxBranches int `yaml:"max_branches" mapstructure:"max_branches"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json, text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Databases:       map[string]string{},
		ParameterPrefix: ":",
		Rules: RulesConfig{
			TypedInput:      true,
			TypedResult:     true,
			ValidQuery:      true,
			ParameterPrefix: true,
		},
		Prover: ProverConfig{
			MaxSteps:    100000,
			MaxBranches: 1024,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
	}
}

// DatabasePath returns the path of the named database. An empty name
// selects the default database. Names are matched case insensitively since
// configuration keys are.
func (c *Config) DatabasePath(name string) (string, error) {
	if name == "" {
		name = c.DefaultDatabase
	}
	if name == "" {
		return "", fmt.Errorf("no database named and no default database configured")
	}
	if path, ok := c.Databases[name]; ok {
		return path, nil
	}
	for k, path := range c.Databases {
		if strings.EqualFold(k, name) {
			return path, nil
		}
	}
	return "", fmt.Errorf("database %q not found in configuration", name)
}

// Prefix returns the required named parameter prefix.
func (c *Config) Prefix() byte {
	if c.ParameterPrefix == "" {
		return ':'
	}
	return c.ParameterPrefix[0]
}

// ApplyOverrides applies CLI flag overrides to the configuration. Only
// non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat, prefix string) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if prefix != "" {
		c.ParameterPrefix = prefix
	}
}
