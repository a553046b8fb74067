package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/sheettools/internal/sheet"
)

type convertOptions struct {
	format string
	tool   string
	outDir string
	jobs   int
	quiet  bool
}

func newConvertCmd(g *globalOptions) *cobra.Command {
	opts := &convertOptions{format: string(sheet.FormatCSV), jobs: 4}

	cmd := &cobra.Command{
		Use:   "convert FILE...",
		Short: "Convert workbooks to CSV or JSON",
		Long: `convert reads the first sheet of each file and writes it next to the
input (or into --out-dir), named after the input file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), g, opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "Output format: csv or json")
	cmd.Flags().StringVar(&opts.tool, "tool", "", "Tool whose naming and ID rules apply (default: the converter for --format)")
	cmd.Flags().StringVarP(&opts.outDir, "out-dir", "o", "", "Directory for converted files (default: next to each input)")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", opts.jobs, "Files converted in parallel")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Hide the progress bar")
	return cmd
}

// converterFor is the default tool for a format.
func converterFor(f sheet.ExportFormat) string {
	if f == sheet.FormatJSON {
		return sheet.ToolJSON
	}
	return sheet.ToolCSV
}

type conversion struct {
	input  string
	output string
	err    error
}

func runConvert(ctx context.Context, g *globalOptions, opts *convertOptions, files []string, stdout, stderr io.Writer) error {
	format, err := sheet.ParseExportFormat(opts.format)
	if err != nil {
		return err
	}
	if opts.tool == "" {
		opts.tool = converterFor(format)
	}
	tool, err := sheet.Lookup(opts.tool)
	if err != nil {
		return err
	}
	if !tool.SupportsFormat(format) {
		return fmt.Errorf("%w: %s does not export %s", sheet.ErrUnsupportedExport, tool.Key, format)
	}
	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetVisibility(!opts.quiet),
		progressbar.OptionSetDescription("Converting..."),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	results := make([]conversion, len(files))
	eg := new(errgroup.Group)
	eg.SetLimit(max(opts.jobs, 1))
	for i, path := range files {
		eg.Go(func() error {
			out, err := convertFile(ctx, g, tool, format, path, opts.outDir)
			results[i] = conversion{input: path, output: out, err: err}
			bar.Add(1)
			return nil
		})
	}
	eg.Wait()
	bar.Finish()
	if !opts.quiet {
		fmt.Fprintln(stderr)
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			g.logger.Error("conversion failed", "file", r.input, "error", r.err)
			fmt.Fprintf(stderr, "%s: %s\n", r.input, sheet.FormatUserError(r.err))
			continue
		}
		fmt.Fprintf(stdout, "%s -> %s\n", r.input, r.output)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

// convertFile converts one workbook and returns the written path.
func convertFile(ctx context.Context, g *globalOptions, tool sheet.Tool, format sheet.ExportFormat, path, outDir string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	up := sheet.NewUpload(path, info.Size(), f)
	log := g.logger.With("upload_id", up.ID, "file", path)

	ds, err := sheet.Ingest(ctx, up, tool.Options(g.maxSize))
	if err != nil {
		return "", err
	}
	data, err := tool.Export(ds, format)
	if err != nil {
		return "", err
	}

	dir := outDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	out := filepath.Join(dir, tool.FileName(up.Name, format))
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}

	log.Info("converted", "output", out, "rows", len(ds.Rows), "columns", len(ds.Headers))
	return out, nil
}
