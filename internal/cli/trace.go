package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pachinko/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	DB    string
	Drain string
	Rule  string
}

// DrainView is a journaled drain with its changes left as raw JSON.
type DrainView struct {
	ID          string             `json:"id"`
	Ord         int64              `json:"ord"`
	Queued      int                `json:"queued"`
	Evaluated   int                `json:"evaluated"`
	Error       string             `json:"error,omitempty"`
	Changes     json.RawMessage    `json:"changes"`
	Evaluations []store.Evaluation `json:"evaluations,omitempty"`
}

func newDrainView(d store.Drain) DrainView {
	changes := json.RawMessage(d.Changes)
	if !json.Valid(changes) {
		changes = json.RawMessage("{}")
	}
	return DrainView{
		ID:          d.ID,
		Ord:         d.Ord,
		Queued:      d.Queued,
		Evaluated:   d.Evaluated,
		Error:       d.Error,
		Changes:     changes,
		Evaluations: d.Evaluations,
	}
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query a drain journal",
		Long: `Show what a journaled run did.

Without filters every drain is listed in order. --drain shows one drain
with its evaluations and the variables it changed. --rule shows every
evaluation of one rule.

Examples:
  pachinko trace --db watch.db
  pachinko trace --db watch.db --drain 01J8Z6...
  pachinko trace --db watch.db --rule vwap:MACK --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Drain, "drain", "", "show a single drain")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "show every evaluation of a rule")
	cmd.MarkFlagsMutuallyExclusive("drain", "rule")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	if _, _, err := opts.settings(cmd); err != nil {
		return err
	}
	out := newFormatter(cmd, opts.RootOptions)
	ctx := cmd.Context()

	if _, err := os.Stat(opts.DB); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", opts.DB))
	}
	st, err := store.Open(opts.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	switch {
	case opts.Drain != "":
		d, err := st.ReadDrain(ctx, opts.Drain)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("drain not found: %s", opts.Drain))
		}
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read drain", err)
		}
		view := newDrainView(d)
		if out.JSON() {
			return out.Success(view)
		}
		printDrain(out, view)
		for _, ev := range view.Evaluations {
			printEvaluation(out, ev)
		}
		fmt.Fprintf(out.Writer, "  changes: %s\n", view.Changes)
		return nil

	case opts.Rule != "":
		evals, err := st.ReadRuleEvaluations(ctx, opts.Rule)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read evaluations", err)
		}
		if out.JSON() {
			return out.Success(evals)
		}
		if len(evals) == 0 {
			fmt.Fprintf(out.Writer, "No evaluations of %s.\n", opts.Rule)
			return nil
		}
		for _, ev := range evals {
			printEvaluation(out, ev)
		}
		return nil

	default:
		drains, err := st.ReadDrains(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read drains", err)
		}
		views := make([]DrainView, 0, len(drains))
		for _, d := range drains {
			views = append(views, newDrainView(d))
		}
		if out.JSON() {
			return out.Success(views)
		}
		if len(views) == 0 {
			fmt.Fprintln(out.Writer, "No drains recorded.")
			return nil
		}
		for _, v := range views {
			printDrain(out, v)
		}
		fmt.Fprintf(out.Writer, "\n%d drain(s)\n", len(views))
		return nil
	}
}

func printDrain(out *OutputFormatter, d DrainView) {
	mark := "✓"
	if d.Error != "" {
		mark = "✗"
	}
	fmt.Fprintf(out.Writer, "%s %d %s queued=%d evaluated=%d\n", mark, d.Ord, d.ID, d.Queued, d.Evaluated)
	if d.Error != "" {
		fmt.Fprintf(out.Writer, "  error: %s\n", d.Error)
	}
}

func printEvaluation(out *OutputFormatter, ev store.Evaluation) {
	state := "skipped"
	if ev.Acted {
		state = "acted"
	}
	fmt.Fprintf(out.Writer, "  [%d] %s %s condition=%t %s", ev.Seq, ev.DrainID, ev.Rule, ev.Condition, state)
	if ev.Error != "" {
		fmt.Fprintf(out.Writer, " error=%q", ev.Error)
	}
	fmt.Fprintln(out.Writer)
}
