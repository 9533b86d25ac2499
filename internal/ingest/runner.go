package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"camerasync/internal/archive"
	"camerasync/internal/catalog"
	"camerasync/internal/config"
	"camerasync/internal/deps"
	"camerasync/internal/logging"
	"camerasync/internal/pipeline"
	"camerasync/internal/tools"
)

var (
	// ErrLocked is returned when another run holds the lock.
	ErrLocked = errors.New("another camerasync run is in progress")
	// ErrMissingTools is returned when the binary check finds a required
	// tool missing before processing.
	ErrMissingTools = errors.New("required external tools are missing")
)

// Phase selects the steps of a run.
type Phase uint8

const (
	PhaseArchive Phase = 1 << iota
	PhaseIndex
	PhaseProcess

	PhaseAll = PhaseArchive | PhaseIndex | PhaseProcess
)

// Has reports whether p includes all phases in q.
func (p Phase) Has(q Phase) bool { return p&q == q }

// Summary reports what a run did.
type Summary struct {
	RunID    string
	Archived archive.Stats
	Indexed  archive.Stats
	Process  pipeline.Result
	Duration time.Duration
}

// Runner executes runs against one configuration.
type Runner struct {
	cfg    *config.Config
	tools  *tools.Toolchain
	open   pipeline.Opener
	logger *slog.Logger

	checkBinaries bool
}

// Option customizes a Runner.
type Option func(*Runner)

// WithOpener replaces the catalog opener used by the worker pool.
func WithOpener(open pipeline.Opener) Option {
	return func(r *Runner) {
		if open != nil {
			r.open = open
		}
	}
}

// WithBinaryCheck verifies the configured tools are on PATH before the
// process phase, so a missing tool halts the run instead of failing every
// group.
func WithBinaryCheck() Option {
	return func(r *Runner) {
		r.checkBinaries = true
	}
}

// NewRunner constructs a Runner using tc for every external tool.
func NewRunner(cfg *config.Config, tc *tools.Toolchain, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:    cfg,
		tools:  tc,
		open:   pipeline.CatalogOpener(cfg.Paths.Database),
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run acquires the run lock and executes the selected phases in order.
// Archive and index failures abort the run before any processing starts.
func (r *Runner) Run(ctx context.Context, phases Phase) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	ctx = logging.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(r.logger, "ingest"))

	if err := r.cfg.EnsureDirectories(); err != nil {
		return summary, err
	}
	lock := flock.New(r.cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return summary, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return summary, ErrLocked
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	start := time.Now()
	logger.Info("run started", logging.String("lock", r.cfg.LockPath()))

	if phases.Has(PhaseArchive) || phases.Has(PhaseIndex) {
		if err := r.archive(ctx, phases, &summary); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
	}

	if phases.Has(PhaseProcess) {
		if err := r.preflight(logger); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
		pool := pipeline.NewPool(r.cfg, r.open, r.tools, r.logger)
		summary.Process, err = pool.Run(ctx)
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("process: %w", err)
		}
	}

	summary.Duration = time.Since(start)
	logger.Info("run finished",
		logging.Int("copied", summary.Archived.Copied),
		logging.Int("indexed", summary.Indexed.Registered),
		logging.Int("processed", summary.Process.Processed),
		logging.Int("failed", summary.Archived.Failed+summary.Process.Failed),
		logging.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (r *Runner) preflight(logger *slog.Logger) error {
	if !r.checkBinaries {
		return nil
	}
	missing := deps.Missing(deps.CheckBinaries(deps.Requirements(r.cfg)))
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, m := range missing {
		names = append(names, m.Command)
		logger.Error("external tool unavailable",
			logging.String("tool", m.Name),
			logging.String("detail", m.Detail),
		)
	}
	return fmt.Errorf("%w: %s", ErrMissingTools, strings.Join(names, ", "))
}

func (r *Runner) archive(ctx context.Context, phases Phase, summary *Summary) error {
	store, err := catalog.Open(r.cfg.Paths.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if phases.Has(PhaseArchive) {
		archiver := archive.NewArchiver(r.cfg, store, r.tools, r.logger)
		if summary.Archived, err = archiver.Archive(ctx); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
	}
	if phases.Has(PhaseIndex) {
		indexer := archive.NewIndexer(r.cfg, store, r.tools, r.logger)
		if summary.Indexed, err = indexer.Index(ctx); err != nil {
			return fmt.Errorf("index: %w", err)
		}
	}
	return nil
}
