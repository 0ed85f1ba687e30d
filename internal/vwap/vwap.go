// Package vwap computes a per-symbol volume-weighted average price over a
// sliding window of trades.
//
// Each symbol is its own channel: the host writes Trade values to the
// variable named after the symbol and drains. The rule keeps its window and
// running sums in optional variables so other rules can react to them:
//
//	<SYM>          Trade, required
//	<SYM>_window   *window.Window[Trade]
//	<SYM>_volume   int64, starts at 0
//	<SYM>_total    float64, starts at 0
//	<SYM>_vwap     float64, starts at 0
package vwap

import (
	"fmt"
	"strings"

	"github.com/roach88/pachinko/internal/cell"
	"github.com/roach88/pachinko/internal/engine"
	"github.com/roach88/pachinko/internal/window"
)

// Trade is one executed trade.
type Trade struct {
	Tick   int64   `json:"tick"`
	Symbol string  `json:"symbol"`
	Shares int64   `json:"shares"`
	Price  float64 `json:"price"`
}

// Variable names derived from a channel.
func WindowVar(channel string) string { return channel + "_window" }
func VolumeVar(channel string) string { return channel + "_volume" }
func TotalVar(channel string) string  { return channel + "_total" }
func VWAPVar(channel string) string   { return channel + "_vwap" }

// Rule maintains the VWAP of one symbol.
type Rule struct {
	channel string
	size    int64

	event, window, volume, total, vwap int
}

// NewRule returns a rule for symbol over a window of windowSize ticks.
// A trade at tick t expires every trade at or before t-windowSize.
func NewRule(symbol string, windowSize int64) (*Rule, error) {
	if symbol == "" {
		return nil, &cell.NullArgumentError{Arg: "symbol"}
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("vwap %s: window size must be positive, got %d", symbol, windowSize)
	}
	return &Rule{channel: symbol, size: windowSize}, nil
}

// Name returns "vwap:<symbol>".
func (r *Rule) Name() string {
	return "vwap:" + r.channel
}

// Channel returns the variable trades are written to.
func (r *Rule) Channel() string {
	return r.channel
}

func (r *Rule) Declare(d *engine.Declarer) error {
	r.event = d.Require(r.channel)
	r.window = d.Optional(WindowVar(r.channel), engine.WithInitial(window.New[Trade]()))
	r.volume = d.Optional(VolumeVar(r.channel), engine.WithInitial(int64(0)))
	r.total = d.Optional(TotalVar(r.channel), engine.WithInitial(0.0))
	r.vwap = d.Optional(VWAPVar(r.channel), engine.WithInitial(0.0))
	return d.Err()
}

// EvaluateCondition holds when the trade's symbol matches the channel,
// ignoring case.
func (r *Rule) EvaluateCondition(ctx *cell.Context) (bool, error) {
	t, err := r.trade(ctx)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(r.channel, t.Symbol), nil
}

// PerformAction slides the window to the new trade and publishes the
// updated volume, total and VWAP.
func (r *Rule) PerformAction(ctx *cell.Context) error {
	t, err := r.trade(ctx)
	if err != nil {
		return err
	}

	v, err := ctx.ReadAt(r.window)
	if err != nil {
		return err
	}
	w, ok := v.(*window.Window[Trade])
	if !ok {
		return fmt.Errorf("vwap %s: window holds %T", r.channel, v)
	}
	volume, total, err := r.sums(ctx)
	if err != nil {
		return err
	}

	for _, old := range w.Expire(t.Tick - r.size) {
		volume -= old.Event.Shares
		total -= float64(old.Event.Shares) * old.Event.Price
	}
	if err := w.Append(t.Tick, t); err != nil {
		return fmt.Errorf("vwap %s: %w", r.channel, err)
	}
	volume += t.Shares
	total += float64(t.Shares) * t.Price

	var avg float64
	if volume != 0 {
		avg = total / float64(volume)
	}

	for _, out := range []struct {
		i int
		v cell.Value
	}{
		{r.window, w},
		{r.volume, volume},
		{r.total, total},
		{r.vwap, avg},
	} {
		if err := ctx.WriteAt(out.i, out.v); err != nil {
			return err
		}
	}
	return nil
}

// Writes lists the rule's output variables.
func (r *Rule) Writes() []string {
	return []string{WindowVar(r.channel), VolumeVar(r.channel), TotalVar(r.channel), VWAPVar(r.channel)}
}

func (r *Rule) trade(ctx *cell.Context) (Trade, error) {
	v, err := ctx.ReadAt(r.event)
	if err != nil {
		return Trade{}, err
	}
	switch t := v.(type) {
	case Trade:
		return t, nil
	case *Trade:
		if t != nil {
			return *t, nil
		}
	}
	return Trade{}, fmt.Errorf("vwap %s: channel holds %T, want vwap.Trade", r.channel, v)
}

func (r *Rule) sums(ctx *cell.Context) (int64, float64, error) {
	v, err := ctx.ReadAt(r.volume)
	if err != nil {
		return 0, 0, err
	}
	volume, ok := v.(int64)
	if !ok {
		return 0, 0, fmt.Errorf("vwap %s: volume holds %T", r.channel, v)
	}
	v, err = ctx.ReadAt(r.total)
	if err != nil {
		return 0, 0, err
	}
	total, ok := v.(float64)
	if !ok {
		return 0, 0, fmt.Errorf("vwap %s: total holds %T", r.channel, v)
	}
	return volume, total, nil
}
