package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pachinko/internal/engine"
	"github.com/roach88/pachinko/internal/vwap"
)

// VWAPOptions holds flags for the vwap command.
type VWAPOptions struct {
	*RootOptions
	Symbols []string
	Window  int64
	Journal string
}

// VWAPLine is printed after every accepted trade.
type VWAPLine struct {
	Symbol string  `json:"symbol"`
	Tick   int64   `json:"tick"`
	Volume int64   `json:"volume"`
	Total  float64 `json:"total"`
	VWAP   float64 `json:"vwap"`
}

// NewVWAPCommand creates the vwap command.
func NewVWAPCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VWAPOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "vwap",
		Short: "Compute a sliding-window VWAP from trades on stdin",
		Long: `Read trades from stdin, one JSON object per line:

  {"tick": 3, "symbol": "MACK", "shares": 100, "price": 12.5}

Each trade for a watched symbol is written to that symbol's channel and
the system is drained. The symbol's volume, notional total and VWAP are
printed after every trade. Trades for other symbols are skipped.

Examples:
  pachinko vwap --symbol MACK --window 5 < trades.jsonl
  pachinko vwap --symbol MACK --symbol ACME --format json < trades.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVWAP(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Symbols, "symbol", nil, "symbol to track (repeatable, required)")
	_ = cmd.MarkFlagRequired("symbol")
	cmd.Flags().Int64Var(&opts.Window, "window", 10, "window size in ticks")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (overrides config)")

	return cmd
}

func runVWAP(ctx context.Context, opts *VWAPOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := opts.settings(cmd)
	if err != nil {
		return err
	}
	out := newFormatter(cmd, opts.RootOptions)

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
	channels, err := buildVWAPRules(sys, opts)
	if err != nil {
		journal.close()
		return err
	}

	stopJournal, err := journal.attach(ctx, sys)
	if err != nil {
		return err
	}

	feed := tradeFeed{
		sys:          sys,
		channels:     channels,
		clearChanged: !journal.enabled(),
		out:          out,
		logger:       logger,
	}
	runErr := feed.stream(cmd.InOrStdin())
	if err := stopJournal(); err != nil {
		logger.Error("journal close failed", "error", err)
	}
	return runErr
}

// buildVWAPRules adds one VWAP rule per symbol and returns the channel of
// each symbol, keyed by its upper-case form.
func buildVWAPRules(sys *engine.System, opts *VWAPOptions) (map[string]string, error) {
	channels := make(map[string]string, len(opts.Symbols))
	for _, sym := range opts.Symbols {
		rule, err := vwap.NewRule(sym, opts.Window)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid vwap rule", err)
		}
		if _, err := sys.Add(rule); err != nil {
			return nil, err
		}
		channels[strings.ToUpper(sym)] = rule.Channel()
	}
	if err := sys.Assemble(); err != nil {
		return nil, err
	}
	return channels, nil
}

// tradeFeed writes trades into a VWAP system one drain at a time.
type tradeFeed struct {
	sys      *engine.System
	channels map[string]string

	// clearChanged empties the namespace changed set after every drain.
	// Off when a journal owns the set.
	clearChanged bool

	out    *OutputFormatter
	logger *slog.Logger
}

// stream feeds every trade line from r through the system.
func (f *tradeFeed) stream(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var trade vwap.Trade
		if err := json.Unmarshal([]byte(line), &trade); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("line %d: invalid trade", lineNo), err)
		}
		channel, ok := f.channels[strings.ToUpper(trade.Symbol)]
		if !ok {
			f.logger.Debug("trade skipped", "line", lineNo, "symbol", trade.Symbol)
			continue
		}

		if err := f.sys.Namespace().Write(channel, trade); err != nil {
			return err
		}
		err := f.sys.ExecuteActivations()
		if f.clearChanged {
			f.sys.Namespace().ClearChanged()
		}
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("line %d: drain failed", lineNo), err)
		}

		row, err := readVWAP(f.sys, channel, trade.Tick)
		if err != nil {
			return err
		}
		text := fmt.Sprintf("%s tick=%d volume=%d total=%.4f vwap=%.4f", row.Symbol, row.Tick, row.Volume, row.Total, row.VWAP)
		if err := f.out.Line(text, row); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to read trades", err)
	}
	return nil
}

func readVWAP(sys *engine.System, channel string, tick int64) (VWAPLine, error) {
	ns := sys.Namespace()
	row := VWAPLine{Symbol: channel, Tick: tick}

	volume, err := ns.Read(vwap.VolumeVar(channel))
	if err != nil {
		return row, err
	}
	total, err := ns.Read(vwap.TotalVar(channel))
	if err != nil {
		return row, err
	}
	price, err := ns.Read(vwap.VWAPVar(channel))
	if err != nil {
		return row, err
	}

	var ok bool
	if row.Volume, ok = volume.(int64); !ok {
		return row, fmt.Errorf("%s: expected int64, got %T", vwap.VolumeVar(channel), volume)
	}
	if row.Total, ok = total.(float64); !ok {
		return row, fmt.Errorf("%s: expected float64, got %T", vwap.TotalVar(channel), total)
	}
	if row.VWAP, ok = price.(float64); !ok {
		return row, fmt.Errorf("%s: expected float64, got %T", vwap.VWAPVar(channel), price)
	}
	return row, nil
}
