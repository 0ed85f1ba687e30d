package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/pachinko/internal/analysis"
	"github.com/roach88/pachinko/internal/engine"
	"github.com/roach88/pachinko/internal/harness"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // trigger cycles fail validation
}

// ValidationResult describes one scenario file.
type ValidationResult struct {
	Name      string                  `json:"name"`
	File      string                  `json:"file"`
	Valid     bool                    `json:"valid"`
	Rules     []string                `json:"rules,omitempty"`
	Variables []string                `json:"variables,omitempty"`
	Warnings  []analysis.CycleWarning `json:"warnings,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// ValidateResult is the command's output.
type ValidateResult struct {
	Files    []ValidationResult `json:"files"`
	Valid    int                `json:"valid"`
	Invalid  int                `json:"invalid"`
	Warnings int                `json:"warnings"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml|dir>",
		Short: "Check scenarios and their rule systems",
		Long: `Parse scenarios, assemble their rule systems without running them,
and report rules that can keep re-triggering each other.

Trigger cycles are warnings: the engine does not guarantee that a
drain ends, and a cycle is where it may not. Use --strict to treat
them as failures.

Examples:
  pachinko validate ./scenarios
  pachinko validate ./scenarios/vwap_alert.yaml --strict`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat trigger cycles as errors")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	_, logger, err := opts.settings(cmd)
	if err != nil {
		return err
	}
	out := newFormatter(cmd, opts.RootOptions)

	files, err := findScenarioFiles(path, "")
	if err != nil {
		return err
	}

	result := ValidateResult{Files: make([]ValidationResult, 0, len(files))}
	for _, file := range files {
		vr := validateScenarioFile(file, engine.WithLogger(logger))
		if opts.Strict && len(vr.Warnings) > 0 {
			vr.Valid = false
			vr.Error = fmt.Sprintf("%d trigger cycle(s)", len(vr.Warnings))
		}

		result.Files = append(result.Files, vr)
		result.Warnings += len(vr.Warnings)
		if vr.Valid {
			result.Valid++
		} else {
			result.Invalid++
		}

		if !out.JSON() {
			printValidationResult(out, vr)
		}
	}

	if result.Invalid > 0 {
		msg := fmt.Sprintf("%d scenario(s) invalid", result.Invalid)
		if err := out.Failure("E_INVALID", msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	if out.JSON() {
		return out.Success(result)
	}
	fmt.Fprintf(out.Writer, "\n%d valid, %d warning(s)\n", result.Valid, result.Warnings)
	return nil
}

func validateScenarioFile(file string, opts ...engine.Option) ValidationResult {
	vr := ValidationResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		vr.Error = err.Error()
		return vr
	}
	vr.Name = scenario.Name

	sys, err := harness.Build(scenario, opts...)
	if err != nil {
		vr.Error = err.Error()
		return vr
	}

	for _, rec := range sys.Records() {
		vr.Rules = append(vr.Rules, rec.Name())
	}
	vr.Variables = sys.FreeVarNames()
	vr.Warnings = analysis.AnalyzeCycles(sys)
	vr.Valid = true
	return vr
}

func printValidationResult(out *OutputFormatter, vr ValidationResult) {
	if !vr.Valid {
		fmt.Fprintf(out.Writer, "✗ %s\n  %s\n", vr.Name, vr.Error)
	} else {
		fmt.Fprintf(out.Writer, "✓ %s (%d rules, %d variables)\n", vr.Name, len(vr.Rules), len(vr.Variables))
	}
	for _, w := range vr.Warnings {
		fmt.Fprintf(out.Writer, "  ⚠ %s\n", w.Message)
	}
	out.VerboseLog("  variables: %v", vr.Variables)
}
