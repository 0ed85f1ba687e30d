package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v10"

	"github.com/roach88/pachinko/internal/engine"
)

// Config holds the settings shared by every pachinko command.
type Config struct {
	// Logging
	LogLevel  string `json:"log_level" env:"PACHINKO_LOG_LEVEL"`
	LogFormat string `json:"log_format" env:"PACHINKO_LOG_FORMAT"`

	// Journal is the SQLite database evaluations are recorded to. Empty
	// disables the journal.
	Journal string `json:"journal" env:"PACHINKO_JOURNAL"`

	// Engine
	MaxSteps    int  `json:"max_steps" env:"PACHINKO_MAX_STEPS"`
	ResetOnFire bool `json:"reset_on_fire" env:"PACHINKO_RESET_ON_FIRE"`
}

// schema constrains config files. Definitions are closed, so unknown fields
// are rejected.
const schema = `
#Config: {
	log_level?:     "debug" | "info" | "warn" | "error"
	log_format?:    "text" | "json"
	journal?:       string
	max_steps?:     int & >=0
	reset_on_fire?: bool
}
`

// fileConfig distinguishes fields a config file leaves out from zero values.
type fileConfig struct {
	LogLevel    *string `json:"log_level"`
	LogFormat   *string `json:"log_format"`
	Journal     *string `json:"journal"`
	MaxSteps    *int    `json:"max_steps"`
	ResetOnFire *bool   `json:"reset_on_fire"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load applies the config file at path (skipped when path is empty) and the
// environment over the defaults, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.applyCUE(data, path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyCUE(data []byte, filename string) error {
	ctx := cuecontext.New()

	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	file := ctx.CompileBytes(data, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return fmt.Errorf("parse config %s: %w", filename, err)
	}

	value := def.Unify(file)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config %s: %w", filename, err)
	}

	var fc fileConfig
	if err := value.Decode(&fc); err != nil {
		return fmt.Errorf("decode config %s: %w", filename, err)
	}

	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.LogFormat != nil {
		c.LogFormat = *fc.LogFormat
	}
	if fc.Journal != nil {
		c.Journal = *fc.Journal
	}
	if fc.MaxSteps != nil {
		c.MaxSteps = *fc.MaxSteps
	}
	if fc.ResetOnFire != nil {
		c.ResetOnFire = *fc.ResetOnFire
	}
	return nil
}

// Validate checks the settings. Environment overrides bypass the CUE
// schema, so every constraint is repeated here.
func (c *Config) Validate() error {
	if _, ok := logLevels[c.LogLevel]; !ok {
		return fmt.Errorf("PACHINKO_LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("PACHINKO_LOG_FORMAT must be one of: text, json")
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("PACHINKO_MAX_STEPS must be non-negative")
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	return logLevels[c.LogLevel]
}

// Logger builds a logger writing to w in the configured format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// EngineOptions translates the engine settings into engine options.
func (c *Config) EngineOptions() []engine.Option {
	var opts []engine.Option
	if c.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(c.MaxSteps))
	}
	if c.ResetOnFire {
		opts = append(opts, engine.WithResetOnFire())
	}
	return opts
}

// String returns a one-line summary for debug logs.
func (c *Config) String() string {
	return fmt.Sprintf("Config{LogLevel=%s, LogFormat=%s, Journal=%q, MaxSteps=%d, ResetOnFire=%v}",
		c.LogLevel, c.LogFormat, c.Journal, c.MaxSteps, c.ResetOnFire)
}
