// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/canonical/sqltype/internal/reconcile"
	"github.com/canonical/sqltype/internal/typeinfo"
)

var inferCmd = &cobra.Command{
	Use:   "infer QUERY",
	Short: "Show the parameters and result columns of a query",
	Long: `Compiles the query against the database and prints the bind parameters
it expects and the type of each result column, together with the type
arguments that declare them.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfer,
}

func init() {
	rootCmd.AddCommand(inferCmd)
}

func runInfer(cmd *cobra.Command, args []string) error {
	a, done, err := newAnalyzer()
	if err != nil {
		return err
	}
	defer done()

	shape, err := a.Infer(cmd.Context(), cliFile, dbName, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	params := shape.Parameters
	fmt.Fprintf(out, "%s %d", color.Bold.Sprint("Parameters:"), params.Count)
	if len(params.Names) > 0 {
		fmt.Fprintf(out, " (named: %s)", strings.Join(params.Names, ", "))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s <%s, %s>\n", color.Bold.Sprint("Type arguments:"),
		reconcile.InputText(params, nil), reconcile.ResultText(shape.Columns, nil))
	if len(shape.Columns) > 0 {
		fmt.Fprintln(out)
		writeColumns(out, shape.Columns)
	}
	return nil
}

// writeColumns prints columns as an aligned two column table.
func writeColumns(w io.Writer, cols []typeinfo.Column) {
	width := runewidth.StringWidth("COLUMN")
	for _, col := range cols {
		width = max(width, runewidth.StringWidth(col.Name))
	}
	fmt.Fprintf(w, "%s  %s\n", color.Bold.Sprint(runewidth.FillRight("COLUMN", width)), color.Bold.Sprint("TYPE"))
	for _, col := range cols {
		fmt.Fprintf(w, "%s  %s\n", runewidth.FillRight(col.Name, width), kindColor(col.Kind).Sprint(col.Kind))
	}
}

// kindColor highlights columns whose type could not be narrowed.
func kindColor(k typeinfo.Kind) color.Color {
	switch {
	case k == typeinfo.Unknown:
		return color.Red
	case k.Single():
		return color.Green
	default:
		return color.Yellow
	}
}
