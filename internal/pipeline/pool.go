package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"camerasync/internal/catalog"
	"camerasync/internal/config"
	"camerasync/internal/logging"
)

// Store is a catalog handle owned by one worker.
type Store interface {
	Catalog
	UnprocessedGroups(ctx context.Context) ([]string, error)
	Close() error
}

// Opener returns a fresh catalog handle.
type Opener func() (Store, error)

// CatalogOpener opens the SQLite catalog at path for each call.
func CatalogOpener(path string) Opener {
	return func() (Store, error) {
		store, err := catalog.Open(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// Result summarizes one pool run.
type Result struct {
	Groups    int
	Workers   int
	Processed int
	Failed    int
}

// Pool fans unprocessed groups out to parallel orchestrators.
type Pool struct {
	cfg    *config.Config
	open   Opener
	conv   Converter
	logger *slog.Logger
}

// NewPool constructs a Pool.
func NewPool(cfg *config.Config, open Opener, conv Converter, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{cfg: cfg, open: open, conv: conv, logger: logger}
}

// Partition splits groups into min(workers, len(groups)) contiguous chunks
// whose sizes differ by at most one, larger chunks first.
func Partition(groups []string, workers int) [][]string {
	n := min(workers, len(groups))
	if n <= 0 {
		return nil
	}
	size, extra := len(groups)/n, len(groups)%n
	chunks := make([][]string, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		chunks = append(chunks, groups[start:end])
		start = end
	}
	return chunks
}

// Run snapshots the unprocessed groups and processes them with one worker
// per chunk. Group failures are logged and counted. A worker whose catalog
// fails stops, the others carry on, and the worker errors are joined into the
// returned error.
func (p *Pool) Run(ctx context.Context) (Result, error) {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.logger, "pool"))

	groups, err := p.snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	chunks := Partition(groups, p.cfg.WorkerCount())
	result := Result{Groups: len(groups), Workers: len(chunks)}
	if len(groups) == 0 {
		logger.Info("no unprocessed image groups")
		return result, nil
	}
	logger.Info("processing images",
		logging.Int("groups", len(groups)),
		logging.Int("workers", len(chunks)),
	)

	var (
		processed atomic.Int64
		failed    atomic.Int64
		g         errgroup.Group
	)
	workerErrs := make([]error, len(chunks))
	for i, chunk := range chunks {
		g.Go(func() error {
			workerErrs[i] = p.work(logging.WithWorker(ctx, i), chunk, &processed, &failed)
			return nil
		})
	}
	_ = g.Wait()

	result.Processed = int(processed.Load())
	result.Failed = int(failed.Load())
	err = errors.Join(workerErrs...)
	attrs := []any{
		logging.Int("processed", result.Processed),
		logging.Int("failed", result.Failed),
	}
	if err != nil {
		logger.Error("image processing finished with worker errors", append(attrs, logging.Error(err))...)
	} else {
		logger.Info("all images processed", attrs...)
	}
	return result, err
}

func (p *Pool) snapshot(ctx context.Context) ([]string, error) {
	store, err := p.open()
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()
	return store.UnprocessedGroups(ctx)
}

func (p *Pool) work(ctx context.Context, chunk []string, processed, failed *atomic.Int64) error {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.logger, "worker"))

	store, err := p.open()
	if err != nil {
		failed.Add(int64(len(chunk)))
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	orch := NewOrchestrator(p.cfg, store, p.conv, p.logger)
	for idx, group := range chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := orch.ProcessGroup(ctx, group)
		if err == nil {
			processed.Add(1)
			continue
		}
		failed.Add(1)
		if isStorageFailure(err) {
			failed.Add(int64(len(chunk) - idx - 1))
			return fmt.Errorf("group %s: %w", group, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("image group failed; will retry on next run",
			append([]any{logging.String(logging.FieldGroup, group)}, logging.ErrorAttrs(err)...)...)
	}
	return nil
}

func isStorageFailure(err error) bool {
	var catErr *catalog.Error
	return errors.As(err, &catErr) && catErr.ErrorKind() == "storage"
}
