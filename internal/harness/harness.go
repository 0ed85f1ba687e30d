package harness

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/pachinko/internal/engine"
	"github.com/roach88/pachinko/internal/testutil"
	"github.com/roach88/pachinko/internal/trace"
)

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every step and assertion succeeded.
	Pass bool `json:"pass"`

	// Trace holds every observer callback in order.
	Trace []trace.Event `json:"-"`

	// Fired lists the rules whose action ran, in order.
	Fired []string `json:"fired"`

	// Errors holds step and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Final maps every namespace variable to its value after the last step.
	Final map[string]any `json:"-"`

	// QueueLen is the number of activations left pending.
	QueueLen int `json:"queue_len"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Fired:  []string{},
		Errors: []string{},
		Final:  make(map[string]any),
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// TraceLines renders the trace as canonical JSON lines.
func (r *Result) TraceLines() ([]byte, error) {
	return trace.EncodeLines(r.Trace)
}

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	logger *slog.Logger
	config []engine.Option
}

// WithLogger sets the logger handed to the rule system. Defaults to a
// logger that discards everything.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithEngineOptions appends engine options, applied after the scenario's
// own settings.
func WithEngineOptions(opts ...engine.Option) RunOption {
	return func(c *runConfig) {
		c.config = append(c.config, opts...)
	}
}

// Build assembles the scenario's rule system.
//
// Drain IDs are drain-1, drain-2, ... and opts are applied after the
// scenario's own settings.
func Build(scenario *Scenario, opts ...engine.Option) (*engine.System, error) {
	all := []engine.Option{engine.WithDrainIDs(testutil.DrainIDs(len(scenario.Steps)))}
	if scenario.MaxSteps > 0 {
		all = append(all, engine.WithMaxSteps(scenario.MaxSteps))
	}
	if scenario.ResetOnFire {
		all = append(all, engine.WithResetOnFire())
	}
	all = append(all, opts...)

	sys := engine.NewSystem(all...)
	for _, d := range scenario.Define {
		if _, err := sys.Define(d.Name, normalize(d.Value)); err != nil {
			return nil, fmt.Errorf("define %s: %w", d.Name, err)
		}
	}
	for i, spec := range scenario.Rules {
		rule, err := BuildRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		if _, err := sys.Add(rule); err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
	}
	if err := sys.Assemble(); err != nil {
		return nil, err
	}
	return sys, nil
}

// Run executes a scenario against a fresh rule system.
//
// An error is returned only when the system cannot be built. Step and
// assertion failures are reported through Result.
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	rec := trace.NewRecorder()
	engineOpts := append([]engine.Option{
		engine.WithLogger(cfg.logger),
		engine.WithObserver(rec),
	}, cfg.config...)

	sys, err := Build(scenario, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	executeSteps(sys, scenario.Steps, result, cfg.logger)

	result.Trace = rec.Events()
	if fired := rec.Fired(); fired != nil {
		result.Fired = fired
	}
	result.QueueLen = sys.QueueLen()
	for _, name := range sys.FreeVarNames() {
		v, err := sys.Namespace().Read(name)
		if err != nil {
			return nil, err
		}
		result.Final[name] = v
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSteps feeds the steps in order and stops at the first failure.
func executeSteps(sys *engine.System, steps []Step, result *Result, logger *slog.Logger) {
	for i, step := range steps {
		name, value, err := StepValue(step)
		if err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			return
		}
		if err := sys.Namespace().Write(name, value); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: write %s: %v", i, name, err))
			return
		}
		if step.Hold {
			continue
		}

		err = sys.ExecuteActivations()
		switch {
		case step.ExpectError != "" && err == nil:
			result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, drain succeeded", i, step.ExpectError))
			return
		case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
			result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got %q", i, step.ExpectError, err))
			return
		case step.ExpectError == "" && err != nil:
			result.AddError(fmt.Sprintf("steps[%d]: drain failed: %v", i, err))
			return
		}

		logger.Debug("scenario step completed", "step", i, "variable", name, "queue_len", sys.QueueLen())
	}
}
