// Package config loads athena's server configuration.
//
// Configuration files are CUE, unified with an embedded closed schema.
// Every field has a default, so an empty file (or none) is valid.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/athena/internal/eval"
	"github.com/roach88/athena/internal/store"
)

//go:embed schema.cue
var schemaSource []byte

// Error codes carried by LoadError.
const (
	ErrCodeRead   = "C001" // file could not be read
	ErrCodeSyntax = "C002" // not valid CUE
	ErrCodeSchema = "C003" // violates the schema
	ErrCodeValue  = "C004" // passes the schema but is unusable
)

// LoadError reports an invalid configuration, with the CUE position when
// one is known.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Config is the decoded configuration.
type Config struct {
	Listen         string  `json:"listen"`
	MetricsAddr    string  `json:"metrics_addr"`
	MaxSessions    int     `json:"max_sessions"`
	StatusInterval string  `json:"status_interval"`
	LogLevel       string  `json:"log_level"`
	Arena          Arena   `json:"arena"`
	Limits         Limits  `json:"limits"`
	Journal        Journal `json:"journal"`

	interval time.Duration
}

type Arena struct {
	InitialCapacity int `json:"initial_capacity"`
	GrowthStep      int `json:"growth_step"`
	MaxObjects      int `json:"max_objects"`
}

type Limits struct {
	MaxPowersetCard int `json:"max_powerset_card"`
	MaxProductSize  int `json:"max_product_size"`
}

type Journal struct {
	Path string `json:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Parse(nil, "defaults.cue")
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema defaults are invalid: %v", err))
	}
	return cfg
}

// Load reads and validates the CUE file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: err.Error()}
	}
	return Parse(data, path)
}

// Parse validates CUE source against the schema and decodes it.
func Parse(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fromCUE(ErrCodeSchema, err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	src := ctx.CompileBytes(data, cue.Filename(filename))
	if err := src.Err(); err != nil {
		return nil, fromCUE(ErrCodeSyntax, err)
	}

	value := def.Unify(src)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fromCUE(ErrCodeSchema, err)
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, fromCUE(ErrCodeSchema, err)
	}
	interval, err := time.ParseDuration(cfg.StatusInterval)
	if err != nil || interval <= 0 {
		return nil, &LoadError{
			Code:    ErrCodeValue,
			Message: fmt.Sprintf("status_interval: %q is not a positive duration", cfg.StatusInterval),
			Pos:     value.LookupPath(cue.ParsePath("status_interval")).Pos(),
		}
	}
	cfg.interval = interval
	return &cfg, nil
}

// fromCUE converts the first CUE error to a LoadError.
func fromCUE(code string, err error) *LoadError {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

// Interval returns the status reporting period.
func (c *Config) Interval() time.Duration { return c.interval }

// SetInterval overrides the status reporting period.
func (c *Config) SetInterval(d time.Duration) {
	c.interval = d
	c.StatusInterval = d.String()
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StoreOptions translates the arena section to store options.
func (c *Config) StoreOptions() []store.Option {
	return []store.Option{
		store.WithInitialCapacity(c.Arena.InitialCapacity),
		store.WithGrowthStep(c.Arena.GrowthStep),
		store.WithMaxObjects(c.Arena.MaxObjects),
	}
}

// EvalLimits translates the limits section.
func (c *Config) EvalLimits() eval.Limits {
	return eval.Limits{
		MaxPowersetCard: c.Limits.MaxPowersetCard,
		MaxProductSize:  c.Limits.MaxProductSize,
	}
}
