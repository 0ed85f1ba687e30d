package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pachinko/internal/watch"
)

// Scenario is one rule system plus the writes to feed it and the
// assertions to check afterwards.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// ResetOnFire runs the system in resetting mode.
	ResetOnFire bool `yaml:"reset_on_fire,omitempty"`

	// MaxSteps bounds evaluations per drain. Zero means unlimited.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Define lists intrinsic variables registered before any rule.
	Define []Intrinsic `yaml:"define,omitempty"`

	Rules      []RuleSpec  `yaml:"rules"`
	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Intrinsic is a system-owned variable.
type Intrinsic struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value,omitempty"`
}

// RuleSpec describes one rule. Which fields apply depends on Type.
type RuleSpec struct {
	Name string `yaml:"name,omitempty"`
	Type string `yaml:"type"`

	// counter and equals
	Required []string       `yaml:"required,omitempty"`
	Keys     []string       `yaml:"keys,omitempty"`
	Optional []string       `yaml:"optional,omitempty"`
	Filters  map[string]any `yaml:"filters,omitempty"`

	// counter
	Output string `yaml:"output,omitempty"`

	// equals
	Var    string `yaml:"var,omitempty"`
	Value  any    `yaml:"value,omitempty"`
	Target string `yaml:"target,omitempty"`
	Set    any    `yaml:"set,omitempty"`

	// file_ext
	Channel string `yaml:"channel,omitempty"`
	Ext     string `yaml:"ext,omitempty"`

	// vwap
	Symbol string `yaml:"symbol,omitempty"`
	Window int64  `yaml:"window,omitempty"`
}

// Step writes one value and drains.
type Step struct {
	// Write names the variable that receives Value.
	Write string `yaml:"write,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Trade writes a vwap.Trade to its channel.
	Trade *TradeStep `yaml:"trade,omitempty"`

	// File writes a watch.Event to its channel.
	File *FileStep `yaml:"file,omitempty"`

	// Hold skips the drain after the write.
	Hold bool `yaml:"hold,omitempty"`

	// ExpectError makes the step pass only when the drain fails with an
	// error containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// TradeStep is a trade written to Channel, or to Symbol when Channel is
// empty.
type TradeStep struct {
	Channel string  `yaml:"channel,omitempty"`
	Tick    int64   `yaml:"tick"`
	Symbol  string  `yaml:"symbol"`
	Shares  int64   `yaml:"shares"`
	Price   float64 `yaml:"price"`
}

// FileStep is a file event written to Channel.
type FileStep struct {
	Channel string `yaml:"channel"`
	Path    string `yaml:"path"`
	Op      string `yaml:"op,omitempty"`
}

// Assertion checks the outcome of a scenario.
type Assertion struct {
	// Type is one of fire_count, fire_order, final_value, queue_len.
	Type string `yaml:"type"`

	// Rule is the engine rule name (fire_count).
	Rule string `yaml:"rule,omitempty"`

	// Rules is the expected firing sequence (fire_order).
	Rules []string `yaml:"rules,omitempty"`

	// Var and Value are the expected namespace value (final_value).
	Var   string `yaml:"var,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Count is used by fire_count and queue_len.
	Count int `yaml:"count,omitempty"`
}

// Rule types.
const (
	RuleCounter = "counter"
	RuleEquals  = "equals"
	RuleFileExt = "file_ext"
	RuleVWAP    = "vwap"
)

// Assertion types.
const (
	AssertFireCount  = "fire_count"
	AssertFireOrder  = "fire_order"
	AssertFinalValue = "final_value"
	AssertQueueLen   = "queue_len"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// ScenarioFiles returns path itself when it is a file, or the .yaml and
// .yml files directly inside it, sorted, when it is a directory.
func ScenarioFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}
	if len(s.Rules) == 0 {
		return fmt.Errorf("rules list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, d := range s.Define {
		if d.Name == "" {
			return fmt.Errorf("define[%d]: name is required", i)
		}
	}
	for i := range s.Rules {
		if err := validateRule(i, &s.Rules[i]); err != nil {
			return err
		}
	}
	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(index int, r *RuleSpec) error {
	switch r.Type {
	case RuleCounter:
		if r.Name == "" {
			return fmt.Errorf("rules[%d]: name is required for counter", index)
		}
	case RuleEquals:
		if r.Name == "" {
			return fmt.Errorf("rules[%d]: name is required for equals", index)
		}
		if r.Var == "" || r.Target == "" {
			return fmt.Errorf("rules[%d]: var and target are required for equals", index)
		}
	case RuleFileExt:
		if r.Channel == "" || r.Ext == "" {
			return fmt.Errorf("rules[%d]: channel and ext are required for file_ext", index)
		}
	case RuleVWAP:
		if r.Symbol == "" {
			return fmt.Errorf("rules[%d]: symbol is required for vwap", index)
		}
		if r.Window <= 0 {
			return fmt.Errorf("rules[%d]: window must be positive for vwap", index)
		}
	case "":
		return fmt.Errorf("rules[%d]: type is required", index)
	default:
		return fmt.Errorf("rules[%d]: unknown rule type %q", index, r.Type)
	}
	return nil
}

func validateStep(index int, s *Step) error {
	n := 0
	if s.Write != "" {
		n++
	}
	if s.Trade != nil {
		n++
	}
	if s.File != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("steps[%d]: exactly one of write, trade or file is required", index)
	}
	if s.Hold && s.ExpectError != "" {
		return fmt.Errorf("steps[%d]: expect_error needs a drain, remove hold", index)
	}
	if s.File != nil {
		if s.File.Channel == "" {
			return fmt.Errorf("steps[%d]: file channel is required", index)
		}
		if s.File.Op != "" {
			if _, ok := watch.ParseOp(s.File.Op); !ok {
				return fmt.Errorf("steps[%d]: unknown file op %q", index, s.File.Op)
			}
		}
	}
	if s.Trade != nil && s.Trade.Channel == "" && s.Trade.Symbol == "" {
		return fmt.Errorf("steps[%d]: trade needs a channel or symbol", index)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertFireCount:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for fire_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for fire_count", index)
		}
	case AssertFireOrder:
		if a.Rules == nil {
			return fmt.Errorf("assertions[%d]: rules list is required for fire_order", index)
		}
	case AssertFinalValue:
		if a.Var == "" {
			return fmt.Errorf("assertions[%d]: var is required for final_value", index)
		}
	case AssertQueueLen:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for queue_len", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
