// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cmd

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/canonical/sqltype"
	"github.com/canonical/sqltype/internal/config"
	"github.com/canonical/sqltype/internal/logger"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// cliFile stands for the source file of queries given on the command line.
const cliFile = "<command line>"

// CLI flags that override config file values
var (
	cfgFile   string
	dbName    string
	dbPath    string
	logLevel  string
	logFormat string
	prefix    string
	noColor   bool
)

var rootCmd = &cobra.Command{
	Use:   "sqltype",
	Short: "Type inference for SQLite queries",
	Long: `Infers the bind parameters and result columns of SQLite queries from
the schema of a database, and checks the type arguments declared for them.

Databases are named in a configuration file or given with --path:

  sqltype infer --path app.db "SELECT * FROM users WHERE id = :id"
  sqltype check --config sqltype.yaml --db main --types "<[]>" "SELECT 1"`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.Disable()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&dbName, "db", "",
		"Logical database name (defaults to default_database)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "path", "",
		"Path or file: URL of the database, overriding the configured one")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")
	rootCmd.PersistentFlags().StringVar(&prefix, "prefix", "",
		"Override the required named parameter prefix (:, @, $)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable colored output")
}

// loadConfig loads the configuration file, if any, and applies the CLI
// overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg.ApplyOverrides(logLevel, logFormat, prefix)
	if dbPath != "" {
		name := dbName
		if name == "" {
			name = "default"
		}
		cfg.Databases[name] = dbPath
		cfg.DefaultDatabase = name
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newAnalyzer builds an Analyzer from the configuration. The returned
// function closes it and flushes the logger.
func newAnalyzer() (*sqltype.Analyzer, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := sqltype.NewFromConfig(cfg, log.WithFile(cliFile).SugaredLogger)
	return a, func() {
		if err := a.Close(); err != nil {
			log.Warnw("cannot close databases", "error", err)
		}
		_ = log.Sync()
	}, nil
}
