// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/canonical/sqltype"
)

// queryWidth is the width at which queries are truncated in reports.
const queryWidth = 60

// ErrProblems is returned by check when the query has diagnostics.
var ErrProblems = errors.New("problems found")

var checkTypes string

var checkCmd = &cobra.Command{
	Use:   "check QUERY",
	Short: "Check the type arguments declared for a query",
	Long: `Runs the enabled rules on a query and the type arguments declared for
it with --types, for example --types '<[number], {"id": number}>'.

Each problem is printed on its own line. When fixes are available the
corrected type arguments are printed last.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkTypes, "types", "t", "",
		"Declared type arguments, including the angle brackets")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, done, err := newAnalyzer()
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	site := &sqltype.TextCallSite{
		File:     cliFile,
		DB:       dbName,
		Query:    args[0],
		TypeArgs: checkTypes,
	}
	ds, err := a.Check(ctx, site)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(ds) == 0 {
		fmt.Fprintf(out, "%s %s\n", color.Green.Sprint("ok"), truncate(args[0]))
		return nil
	}
	fmt.Fprintln(out, truncate(args[0]))
	for _, d := range ds {
		fmt.Fprintf(out, "  %s: %s\n", kindLabel(d), d.Message)
	}

	n, err := a.Fix(ctx, site)
	if err != nil {
		return err
	}
	if n > 0 {
		fmt.Fprintf(out, "%s %s\n", color.Bold.Sprint("fixed:"), site.TypeArgs)
	}
	return fmt.Errorf("%w: %d", ErrProblems, len(ds))
}

func kindLabel(d sqltype.Diagnostic) string {
	kind := string(d.Kind)
	switch {
	case strings.HasPrefix(kind, "missing-"):
		return color.Yellow.Sprint(kind)
	case d.Fix == nil:
		return color.Magenta.Sprint(kind)
	default:
		return color.Red.Sprint(kind)
	}
}

// truncate shortens a query to a single line of at most queryWidth cells.
func truncate(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	return runewidth.Truncate(query, queryWidth, "...")
}
