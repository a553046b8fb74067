package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheettools/internal/sheet"
)

func newPreviewCmd(g *globalOptions) *cobra.Command {
	var (
		all     bool
		toolKey string
	)

	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Print the first rows of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := sheet.Lookup(toolKey)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return err
			}

			ws := sheet.NewWorkspace(tool.Options(g.maxSize))
			ds, err := ws.Load(cmd.Context(), sheet.NewUpload(args[0], info.Size(), f))
			if err != nil {
				g.logger.Debug("preview failed", "file", args[0], "error", err)
				return fmt.Errorf("%s", sheet.FormatUserError(err))
			}
			return printPreview(cmd.OutOrStdout(), ds, all)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Print every row")
	cmd.Flags().StringVar(&toolKey, "tool", sheet.ToolViewer, "Tool whose ID rules apply")
	return cmd
}

func printPreview(out io.Writer, ds *sheet.Dataset, all bool) error {
	rows := sheet.Preview(ds, all)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(ds.Headers, "\t"))
	for _, rec := range rows {
		cells := make([]string, len(ds.Headers))
		for i, name := range ds.Headers {
			cells[i] = rec.Value(name).String()
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := ds.Summary()
	fmt.Fprintf(out, "\n%s (%s KB, sheet %q): %d rows, %d columns\n", ds.FileName, s.SizeKB, ds.SheetName, s.Rows, s.Columns)
	if !all && sheet.HasMore(ds) {
		fmt.Fprintf(out, "Showing %d of %d rows; use --all to print every row.\n", len(rows), len(ds.Rows))
	}
	return nil
}
