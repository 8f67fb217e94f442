package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/polarsmith/internal/config"
	"github.com/roach88/polarsmith/internal/eventlog"
	"github.com/roach88/polarsmith/internal/recovery"
	"github.com/roach88/polarsmith/internal/session"
	"github.com/roach88/polarsmith/internal/storage"
	"github.com/roach88/polarsmith/internal/validate"
)

// env bundles the configured services a command runs against.
type env struct {
	cfg     config.Config
	store   storage.Store
	manager *session.Manager
	log     *eventlog.Log
	logger  *slog.Logger
}

// openEnv loads the config and opens the storage backend plus the
// services every command needs. Callers must Close it.
func openEnv(opts *RootOptions) (*env, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var store storage.Store
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store, err = storage.OpenSQLite(cfg.Storage.SQLitePath)
	default:
		store, err = storage.NewDir(cfg.Storage.Dir)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}

	log := eventlog.New(store,
		eventlog.WithBatchSize(cfg.Events.BatchSize),
		eventlog.WithMaxBatchAge(cfg.Events.MaxBatchAge.Std()),
		eventlog.WithLogger(logger),
	)

	return &env{
		cfg:     cfg,
		store:   store,
		manager: session.NewManager(store, logger),
		log:     log,
		logger:  logger,
	}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing storage", "error", err)
	}
}

// recovery builds the recovery service on top of the open environment.
func (e *env) recovery() *recovery.Service {
	return recovery.NewService(e.manager, e.log, e.store, e.logger)
}

// validator picks the configured policy validator. A cli_path selects
// the external command; otherwise policies are checked as CUE.
func (e *env) validator() validate.Validator {
	if e.cfg.Validation.CLIPath != "" {
		return validate.NewCLIValidator(e.cfg.Validation.CLIPath, e.cfg.Validation.CLITimeout.Std())
	}
	return validate.NewCUEValidator()
}

// validation builds the caching validation service.
func (e *env) validation() *validate.Service {
	return validate.NewService(e.validator(),
		validate.WithCacheTTL(e.cfg.Validation.CacheTTL.Std()),
		validate.WithPoolSize(e.cfg.Validation.PoolSize),
		validate.WithHistoryLimit(e.cfg.Validation.HistoryLimit),
		validate.WithServiceLogger(e.logger),
	)
}

// requireSession resolves a session ID argument, mapping a missing
// session to a command error.
func requireSession(ctx context.Context, e *env, sessionID string) error {
	ok, err := e.manager.Exists(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to check session", err)
	}
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("session %s not found", sessionID))
	}
	return nil
}
