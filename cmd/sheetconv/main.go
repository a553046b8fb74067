// Command sheetconv converts Excel workbooks to CSV or JSON and previews
// them from the terminal, using the same pipeline as the web tools.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheettools/internal/config"
	"github.com/JonMunkholm/sheettools/internal/logging"
	"github.com/JonMunkholm/sheettools/internal/sheet"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	logLevel  string
	logFormat string
	maxSize   int64

	logger *slog.Logger
}

func main() {
	// .env is optional for the CLI; it only seeds flag defaults.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{
		logLevel:  "warn",
		logFormat: "text",
		maxSize:   20 << 20,
	}
	if cfg, err := config.Load(); err == nil {
		opts.maxSize = cfg.Upload.MaxFileSize
		opts.logFormat = cfg.Logging.Format
	}

	root := &cobra.Command{
		Use:           "sheetconv",
		Short:         "Convert and preview Excel workbooks",
		Long:          "sheetconv reads the first sheet of .xls and .xlsx files and converts it to CSV or JSON.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = logging.New(stderr, opts.logLevel, opts.logFormat)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", opts.logFormat, "Log format: text or json")
	root.PersistentFlags().Int64Var(&opts.maxSize, "max-size", opts.maxSize, "Largest accepted file in bytes (0 = unlimited)")

	root.AddCommand(newConvertCmd(opts), newPreviewCmd(opts), newToolsCmd())
	return root
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the available conversion tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, t := range sheet.All() {
				formats := make([]string, 0, 2)
				for _, f := range t.Formats() {
					formats = append(formats, string(f))
				}
				if _, err := fmt.Fprintf(out, "%s\t%s\t%s\n", t.Key, strings.Join(formats, ","), t.Title); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
