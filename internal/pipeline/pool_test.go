package pipeline_test

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"camerasync/internal/catalog"
	"camerasync/internal/logging"
	"camerasync/internal/pipeline"
	"camerasync/internal/testsupport"
	"camerasync/internal/tools"
)

func TestPartition(t *testing.T) {
	groups := []string{"a", "b", "c", "d", "e", "f", "g"}
	tests := []struct {
		name    string
		groups  []string
		workers int
		sizes   []int
	}{
		{name: "even", groups: groups[:6], workers: 3, sizes: []int{2, 2, 2}},
		{name: "remainder goes first", groups: groups, workers: 3, sizes: []int{3, 2, 2}},
		{name: "more workers than groups", groups: groups[:2], workers: 8, sizes: []int{1, 1}},
		{name: "single worker", groups: groups[:5], workers: 1, sizes: []int{5}},
		{name: "no groups", groups: nil, workers: 4, sizes: nil},
		{name: "no workers", groups: groups, workers: 0, sizes: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := pipeline.Partition(tt.groups, tt.workers)
			var sizes []int
			var flat []string
			for _, chunk := range chunks {
				sizes = append(sizes, len(chunk))
				flat = append(flat, chunk...)
			}
			if !reflect.DeepEqual(sizes, tt.sizes) {
				t.Fatalf("sizes = %v, want %v", sizes, tt.sizes)
			}
			if len(tt.sizes) > 0 && !reflect.DeepEqual(flat, tt.groups) {
				t.Fatalf("chunks %v do not cover %v in order", chunks, tt.groups)
			}
		})
	}
}

func TestPoolRunProcessesAllGroups(t *testing.T) {
	f := newFixture(t)
	f.bracket(t)
	f.archiveFile(t, "IMG_0200.JPG", 0)
	f.archiveFile(t, "IMG_0300.JPG", 0)
	testsupport.AddSynced(t, f.store, nil, "IMG_0400.CR2", "cr2")

	tc := tools.New(f.cfg, tools.WithExecutor(f.exec))
	pool := pipeline.NewPool(f.cfg, pipeline.CatalogOpener(f.cfg.Paths.Database), tc, logging.NewNop())
	res, err := pool.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := pipeline.Result{Groups: 4, Workers: 2, Processed: 3, Failed: 1}
	if res != want {
		t.Fatalf("result = %+v, want %+v", res, want)
	}
	if groups := unprocessed(t, f.store); !reflect.DeepEqual(groups, []string{"img_0400"}) {
		t.Fatalf("expected only the unresolved group pending, got %v", groups)
	}

	res, err = pool.Run(context.Background())
	if err != nil || res.Groups != 1 || res.Processed != 0 {
		t.Fatalf("second run = %+v, %v", res, err)
	}
}

func TestPoolRunNothingToDo(t *testing.T) {
	f := newFixture(t)
	pool := pipeline.NewPool(f.cfg, pipeline.CatalogOpener(f.cfg.Paths.Database), nil, logging.NewNop())
	res, err := pool.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Groups != 0 || res.Processed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestPoolRunJoinsWorkerFailures(t *testing.T) {
	f := newFixture(t)
	f.archiveFile(t, "IMG_0200.JPG", 0)
	f.archiveFile(t, "IMG_0300.JPG", 0)

	errBroken := errors.New("catalog unavailable")
	catalogOpen := pipeline.CatalogOpener(f.cfg.Paths.Database)
	var calls atomic.Int32
	open := func() (pipeline.Store, error) {
		if calls.Add(1) == 1 {
			return catalogOpen()
		}
		return nil, errBroken
	}

	pool := pipeline.NewPool(f.cfg, open, nil, logging.NewNop())
	res, err := pool.Run(context.Background())
	if !errors.Is(err, errBroken) {
		t.Fatalf("expected joined worker error, got %v", err)
	}
	if res.Processed != 0 || res.Failed != 2 || res.Workers != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if groups := unprocessed(t, f.store); len(groups) != 2 {
		t.Fatalf("expected both groups pending, got %v", groups)
	}
}

// brokenWrites fails MarkGroupProcessed for one group with a storage error.
type brokenWrites struct {
	pipeline.Store
	group string
	err   error
}

func (b brokenWrites) MarkGroupProcessed(ctx context.Context, group string) error {
	if group == b.group {
		return &catalog.Error{Op: "mark group processed", Err: b.err}
	}
	return b.Store.MarkGroupProcessed(ctx, group)
}

func TestPoolRunStorageFailureAbandonsChunk(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"IMG_0200.JPG", "IMG_0300.JPG", "IMG_0500.JPG", "IMG_0600.JPG"} {
		f.archiveFile(t, name, 0)
	}

	errDisk := errors.New("disk I/O error")
	catalogOpen := pipeline.CatalogOpener(f.cfg.Paths.Database)
	open := func() (pipeline.Store, error) {
		store, err := catalogOpen()
		if err != nil {
			return nil, err
		}
		return brokenWrites{Store: store, group: "img_0200", err: errDisk}, nil
	}

	pool := pipeline.NewPool(f.cfg, open, nil, logging.NewNop())
	res, err := pool.Run(context.Background())
	if !errors.Is(err, errDisk) {
		t.Fatalf("expected joined storage error, got %v", err)
	}
	var catErr *catalog.Error
	if !errors.As(err, &catErr) || catErr.ErrorKind() != "storage" {
		t.Fatalf("expected catalog storage error, got %v", err)
	}
	want := pipeline.Result{Groups: 4, Workers: 2, Processed: 2, Failed: 2}
	if res != want {
		t.Fatalf("result = %+v, want %+v", res, want)
	}
	if groups := unprocessed(t, f.store); !reflect.DeepEqual(groups, []string{"img_0200", "img_0300"}) {
		t.Fatalf("expected the failing worker's chunk pending, got %v", groups)
	}
}

func TestPoolRunSnapshotFailure(t *testing.T) {
	f := newFixture(t)
	errBroken := errors.New("catalog unavailable")
	pool := pipeline.NewPool(f.cfg, func() (pipeline.Store, error) { return nil, errBroken }, nil, logging.NewNop())
	if _, err := pool.Run(context.Background()); !errors.Is(err, errBroken) {
		t.Fatalf("expected snapshot error, got %v", err)
	}
}
