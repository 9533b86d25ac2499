package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"camerasync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory per test with
// source, archive, temp, output and log directories below it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SourceDir = filepath.Join(base, "camera", "DCIM")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfgVal.Paths.TempDir = filepath.Join(base, "tmp")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.Database = filepath.Join(base, "state", "camerasync.db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Workers.Count = 2
	for i := range cfgVal.Tonemaps {
		cfgVal.Tonemaps[i].Binary = "pfstmo_" + cfgVal.Tonemaps[i].Name
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(builder.cfg.Paths.SourceDir, 0o755); err != nil {
		t.Fatalf("create source dir: %v", err)
	}
	return builder.cfg
}

// WithWorkers sets the pipeline worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.Count = n
	}
}

// WithOutput adjusts the output flags.
func WithOutput(fn func(*config.Output)) ConfigOption {
	return func(b *configBuilder) {
		fn(&b.cfg.Output)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, every configured tool binary is
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = b.cfg.ToolBinaries()
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, filepath.Base(name))
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ArchiveDir)
}
