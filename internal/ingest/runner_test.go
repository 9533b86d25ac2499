package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"camerasync/internal/config"
	"camerasync/internal/ingest"
	"camerasync/internal/logging"
	"camerasync/internal/testsupport"
	"camerasync/internal/tools"
)

func newRunner(t *testing.T) (*config.Config, *testsupport.StubExecutor, *ingest.Runner) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	exec := testsupport.NewStubExecutor()
	tc := tools.New(cfg, tools.WithExecutor(exec))
	return cfg, exec, ingest.NewRunner(cfg, tc, logging.NewNop())
}

func TestRunArchivesAndProcesses(t *testing.T) {
	cfg, exec, runner := newRunner(t)
	src := cfg.Paths.SourceDir
	for i, name := range []string{"IMG_0100.CR2", "IMG_0101.CR2", "IMG_0102.CR2"} {
		testsupport.WriteFile(t, filepath.Join(src, "100CANON", name), 128)
		exec.Metadata[name] = testsupport.Bracket(i + 1)
	}
	testsupport.WriteJPEG(t, filepath.Join(src, "100CANON", "IMG_0200.JPG"))

	summary, err := runner.Run(context.Background(), ingest.PhaseAll)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := uuid.Parse(summary.RunID); err != nil {
		t.Fatalf("expected uuid run id, got %q", summary.RunID)
	}
	if summary.Archived.Copied != 4 {
		t.Fatalf("expected 4 copied files, got %+v", summary.Archived)
	}
	if summary.Indexed.Registered != 0 {
		t.Fatalf("expected nothing left to index, got %+v", summary.Indexed)
	}
	if summary.Process.Groups != 2 || summary.Process.Processed != 2 {
		t.Fatalf("unexpected process result %+v", summary.Process)
	}
	for _, name := range []string{"img_0100.hdr.jpg", "IMG_0100.jpg", "IMG_0200.JPG"} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, name)); err != nil {
			t.Fatalf("expected output %s: %v", name, err)
		}
	}

	again, err := runner.Run(context.Background(), ingest.PhaseAll)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if again.Archived.Copied != 0 || again.Archived.Skipped != 4 || again.Process.Groups != 0 {
		t.Fatalf("expected idempotent second run, got %+v", again)
	}
	if again.RunID == summary.RunID {
		t.Fatal("expected a fresh run id per run")
	}
}

func TestRunIndexesArchiveOnlyFiles(t *testing.T) {
	cfg, _, runner := newRunner(t)
	testsupport.WriteJPEG(t, filepath.Join(cfg.Paths.ArchiveDir, "jpg", "IMG_0900.JPG"))

	summary, err := runner.Run(context.Background(), ingest.PhaseIndex|ingest.PhaseProcess)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Archived.Scanned != 0 {
		t.Fatalf("archive phase should not run, got %+v", summary.Archived)
	}
	if summary.Indexed.Registered != 1 || summary.Process.Processed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestRunRefusesConcurrentRun(t *testing.T) {
	cfg, _, runner := newRunner(t)
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer lock.Unlock()

	if _, err := runner.Run(context.Background(), ingest.PhaseAll); !errors.Is(err, ingest.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestRunArchiveFailureReleasesLock(t *testing.T) {
	cfg, _, runner := newRunner(t)
	if err := os.RemoveAll(cfg.Paths.SourceDir); err != nil {
		t.Fatal(err)
	}

	summary, err := runner.Run(context.Background(), ingest.PhaseAll)
	if err == nil {
		t.Fatal("expected error for missing source directory")
	}
	if summary.Process.Groups != 0 {
		t.Fatal("processing must not start after an archive failure")
	}

	if err := os.MkdirAll(cfg.Paths.SourceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := runner.Run(context.Background(), ingest.PhaseAll); err != nil {
		t.Fatalf("expected lock released after failure, got %v", err)
	}
}

func TestPhaseHas(t *testing.T) {
	if !ingest.PhaseAll.Has(ingest.PhaseArchive | ingest.PhaseProcess) {
		t.Fatal("PhaseAll should include archive and process")
	}
	if ingest.PhaseProcess.Has(ingest.PhaseArchive) {
		t.Fatal("PhaseProcess should not include archive")
	}
}

func TestRunBinaryCheckHaltsProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.Converter.Binary = "definitely-missing-ufraw"
	exec := testsupport.NewStubExecutor()
	runner := ingest.NewRunner(cfg, tools.New(cfg, tools.WithExecutor(exec)), logging.NewNop(), ingest.WithBinaryCheck())
	testsupport.WriteJPEG(t, filepath.Join(cfg.Paths.SourceDir, "IMG_0200.JPG"))

	summary, err := runner.Run(context.Background(), ingest.PhaseAll)
	if !errors.Is(err, ingest.ErrMissingTools) {
		t.Fatalf("expected ErrMissingTools, got %v", err)
	}
	if summary.Archived.Copied != 1 {
		t.Fatalf("archive phase should still run, got %+v", summary.Archived)
	}
	if summary.Process.Groups != 0 {
		t.Fatalf("processing should not start, got %+v", summary.Process)
	}
}
