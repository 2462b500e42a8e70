// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cmd

import (
	"runtime"

	"github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display detailed version information including build details.`,
	Run:   runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	sqliteVersion, _, _ := sqlite3.Version()
	cmd.Printf("sqltype version %s\n", Version)
	cmd.Printf("  Commit: %s\n", Commit)
	cmd.Printf("  SQLite version: %s\n", sqliteVersion)
	cmd.Printf("  Go version: %s\n", runtime.Version())
	cmd.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
