package cli

import (
	"log/slog"

	"github.com/roach88/athena/internal/command"
	"github.com/roach88/athena/internal/config"
	"github.com/roach88/athena/internal/eval"
	"github.com/roach88/athena/internal/store"
)

// loadConfig reads the CUE file at path, or returns the defaults when
// path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// newDispatcher builds an empty store and a dispatcher over it, sized and
// limited by cfg.
func newDispatcher(cfg *config.Config, logger *slog.Logger, opts ...command.Option) *command.Dispatcher {
	db := store.New(append(cfg.StoreOptions(), store.WithLogger(logger))...)
	ev := eval.New(db, eval.WithLimits(cfg.EvalLimits()), eval.WithLogger(logger))
	return command.New(db, ev, append([]command.Option{command.WithLogger(logger)}, opts...)...)
}
