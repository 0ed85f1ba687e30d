package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pachinko/internal/cell"
	"github.com/roach88/pachinko/internal/engine"
	"github.com/roach88/pachinko/internal/expr"
	"github.com/roach88/pachinko/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Dirs    []string
	Ext     string
	Ops     []string
	Journal string
}

// WatchMatch is printed for every file that reaches RESULT.
type WatchMatch struct {
	File string `json:"file"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print files with a given extension as they appear",
		Long: `Watch one or more directories and run a file-extension rule over
their events. Every matching file name is written to RESULT, and a
second rule prints it.

Stops on interrupt or when a drain fails.

Examples:
  pachinko watch --dir /var/log --ext .log
  pachinko watch --dir ./in --dir ./spool --ext .csv --ops create
  pachinko watch --dir /var/log --ext .log --journal watch.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Dirs, "dir", nil, "directory to watch (repeatable, required)")
	_ = cmd.MarkFlagRequired("dir")
	cmd.Flags().StringVar(&opts.Ext, "ext", "", "file extension to match, e.g. .log (required)")
	_ = cmd.MarkFlagRequired("ext")
	cmd.Flags().StringSliceVar(&opts.Ops, "ops", []string{"create", "write"}, "file operations to react to")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (overrides config)")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, cmd *cobra.Command) error {
	cfg, logger, err := opts.settings(cmd)
	if err != nil {
		return err
	}
	out := newFormatter(cmd, opts.RootOptions)

	var mask watch.Op
	for _, name := range opts.Ops {
		op, ok := watch.ParseOp(name)
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown file operation %q", name))
		}
		mask |= op
	}

	path := opts.Journal
	if path == "" {
		path = cfg.Journal
	}
	journal, err := openJournal(ctx, path, logger)
	if err != nil {
		return err
	}

	engineOpts := append(cfg.EngineOptions(), engine.WithLogger(logger))
	sys := engine.NewSystem(append(engineOpts, journal.engineOptions()...)...)
	watchOpts := []watch.Option{watch.WithOps(mask), watch.WithLogger(logger)}
	if journal.enabled() {
		watchOpts = append(watchOpts, watch.KeepChanged())
	}
	w := watch.New(sys, watchOpts...)
	defer w.Close()

	if err := buildWatchRules(sys, w, opts, out); err != nil {
		journal.close()
		return err
	}

	stopJournal, err := journal.attach(ctx, sys)
	if err != nil {
		return err
	}

	out.VerboseLog("watching %v for %s", opts.Dirs, opts.Ext)
	runErr := w.Run(ctx)
	if err := stopJournal(); err != nil {
		logger.Error("journal close failed", "error", err)
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "watch stopped", runErr)
	}
	return nil
}

// buildWatchRules adds one source and extension rule per directory, then
// the print rule, and assembles the system.
func buildWatchRules(sys *engine.System, w *watch.Watcher, opts *WatchOptions, out *OutputFormatter) error {
	for i, dir := range opts.Dirs {
		channel := fmt.Sprintf("dir%d", i+1)
		if err := w.AddSource(channel, dir); err != nil {
			return WrapExitError(ExitCommandError, "failed to watch directory", err)
		}
		rule, err := watch.NewExtensionRule(channel, opts.Ext)
		if err != nil {
			return err
		}
		if _, err := sys.Add(rule); err != nil {
			return err
		}
	}

	printer, err := newPrintRule(out)
	if err != nil {
		return err
	}
	if _, err := sys.Add(printer); err != nil {
		return err
	}
	return sys.Assemble()
}

// newPrintRule returns the rule that prints every value written to RESULT.
func newPrintRule(out *OutputFormatter) (*expr.Rule, error) {
	show := func(ctx *cell.Context) error {
		v, err := ctx.Read(watch.ResultVar)
		if err != nil {
			return err
		}
		name := fmt.Sprint(v)
		return out.Line(name, WatchMatch{File: name})
	}
	return expr.NewRule("print-result",
		expr.Lit(true),
		expr.Func(show, []string{watch.ResultVar}, nil),
	)
}
