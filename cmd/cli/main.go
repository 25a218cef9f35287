// Package main provides the FrameSeal command-line tool.
// Uses Cobra for command parsing; each subcommand is built by its own
// function below.
//
// Run with: go run ./cmd/cli frame photos/*.jpg --format jpg-95
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/frameseal/internal/codec"
	"github.com/fleveque/frameseal/internal/config"
	"github.com/fleveque/frameseal/internal/fonts"
	"github.com/fleveque/frameseal/internal/frame"
	"github.com/fleveque/frameseal/internal/icon"
	"github.com/fleveque/frameseal/internal/metadata"
	"github.com/fleveque/frameseal/internal/service"
	"github.com/fleveque/frameseal/internal/storage"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCmd creates the root command. Cobra builds a tree of commands:
// frameseal-cli frame a.jpg b.jpg
// frameseal-cli runs --limit 5
func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "frameseal-cli",
		Short: "Frame photos with a border, rounded corners and an EXIF caption",
		// Errors are printed once by Cobra; the usage text is only noise
		// for failures like a missing file.
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("FRAMESEAL_CONFIG_PATH"),
		"config file (default ./frameseal.yaml or ./config/frameseal.yaml)")

	root.AddCommand(
		frameCmd(&configPath),
		formatsCmd(),
		fieldsCmd(),
		fontsCmd(),
		runsCmd(&configPath),
	)
	return root
}

func frameCmd(configPath *string) *cobra.Command {
	var (
		format   string
		workers  int
		noLedger bool
	)

	cmd := &cobra.Command{
		Use:   "frame FILE...",
		Short: "Frame images and write each result beside its source",
		Args:  cobra.MinimumNArgs(1),
		// RunE returns an error (vs Run which doesn't). Cobra prints the error automatically.
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmd.Flags().Changed("format") {
				cfg.Output.Format = format
			}
			if cmd.Flags().Changed("workers") {
				cfg.Batch.Workers = workers
			}

			// Ctrl+C cancels the batch: images in flight stop at their next
			// checkpoint and are recorded as canceled.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runFrame(ctx, cmd.OutOrStdout(), cfg, args, !noLedger)
		},
	}

	cmd.Flags().StringVar(&format, "format", codec.DefaultFormat, "output format, one of the names listed by the formats command")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (default from config, else one per CPU)")
	cmd.Flags().BoolVar(&noLedger, "no-ledger", false, "don't record the run in the SQLite ledger")
	return cmd
}

func runFrame(ctx context.Context, out io.Writer, cfg *config.Config, paths []string, useLedger bool) error {
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// Settings are resolved (font parsed, icon fetched) once, before any
	// image is opened; a bad setting fails the whole command here.
	frameCfg, err := cfg.Frame.Build(ctx, icon.NewLoader(logger), logger)
	if err != nil {
		return err
	}

	var runs storage.RunRepository
	if useLedger {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
		db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		runs = storage.NewRunRepository(db)
	}

	frames := service.NewFrameService(frame.NewCompositor(logger), cfg.Output.AutoOrient, logger)
	batch := service.NewBatchService(frames, runs, logger)

	report, err := batch.Run(ctx, paths, frameCfg, service.BatchOptions{
		Format:  cfg.Output.Format,
		Workers: cfg.Batch.Workers,
	})
	if err != nil {
		return err
	}

	for _, p := range paths {
		if dst, ok := report.Outputs[p]; ok {
			fmt.Fprintf(out, "%s -> %s\n", p, dst)
		}
	}
	for _, f := range report.Failures {
		fmt.Fprintf(out, "FAILED %s: %v\n", f.Path, f.Err)
	}

	summary := fmt.Sprintf("framed %d of %d images", report.Succeeded, len(paths))
	if report.RunID != 0 {
		summary += fmt.Sprintf(" (run %d)", report.RunID)
	}
	fmt.Fprintln(out, summary)

	switch {
	case report.Canceled > 0:
		return fmt.Errorf("interrupted: %d images not framed", report.Canceled)
	case len(report.Failures) > 0:
		return fmt.Errorf("%d of %d images failed", len(report.Failures), len(paths))
	}
	return nil
}

func formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List output formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEXT\tALPHA\tEXIF\t")
			for _, name := range codec.Names() {
				f, err := codec.Lookup(name)
				if err != nil {
					return err
				}
				def := ""
				if name == codec.DefaultFormat {
					def = "(default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n", f.Name, f.Ext, f.Alpha, f.KeepsExif(), def)
			}
			return w.Flush()
		},
	}
}

func fieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List metadata fields a caption can show",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range metadata.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func fontsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fonts",
		Short: "List built-in fonts",
		Long:  "List built-in fonts. The font setting also accepts a path to a .ttf or .otf file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range fonts.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func runsCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [RUN_ID]",
		Short: "Show recent batch runs, or the per-image results of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			runs := storage.NewRunRepository(db)

			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid run id %q", args[0])
				}
				return printResults(cmd.Context(), cmd.OutOrStdout(), runs, id)
			}
			return printRuns(cmd.Context(), cmd.OutOrStdout(), runs, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func printRuns(ctx context.Context, out io.Writer, runs storage.RunRepository, limit int) error {
	list, err := runs.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tFORMAT\tTOTAL\tOK\tFAILED\tCANCELED\tSTARTED\t")
	for _, r := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t\n",
			r.ID, r.Status, r.Format, r.Total, r.Succeeded, r.Failed, r.Canceled,
			r.StartedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func printResults(ctx context.Context, out io.Writer, runs storage.RunRepository, id int64) error {
	run, err := runs.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("run %d: %w", id, err)
	}
	results, err := runs.ListResults(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run %d: %s, %s, %d images\n", run.ID, run.Status, run.Format, run.Total)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tSOURCE\tOUTPUT\tMS\t")
	for _, r := range results {
		detail := ""
		switch {
		case r.OutputPath != nil:
			detail = *r.OutputPath
		case r.ErrorMessage != nil:
			detail = *r.ErrorMessage
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t\n", r.Status, r.SourcePath, detail, r.DurationMs)
	}
	return w.Flush()
}

// newLogger returns a human-readable console logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.DisableStacktrace = true
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zc.Level = lvl
	}
	return zc.Build()
}
