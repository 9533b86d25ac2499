package fileutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.cr2")
	dst := filepath.Join(dir, "dst.cr2")

	content := []byte("raw sensor data")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileMissingSourceLeavesNoDestination(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.cr2")

	if err := CopyFile(filepath.Join(dir, "missing.cr2"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("expected no destination file, got %v", err)
	}
}

func TestCopyWithStatPreservesModeAndTimes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "out", "dst.jpg")

	if err := os.WriteFile(src, []byte("jpeg"), 0o600); err != nil {
		t.Fatal(err)
	}
	atime := time.Date(2015, 6, 1, 10, 0, 0, 0, time.UTC)
	mtime := time.Date(2015, 6, 1, 9, 30, 0, 0, time.UTC)
	if err := os.Chtimes(src, atime, mtime); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := CopyWithStat(src, dst); err != nil {
		t.Fatalf("CopyWithStat failed: %v", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %o", info.Mode().Perm())
	}
	if !info.ModTime().Equal(mtime) {
		t.Fatalf("expected mtime %v, got %v", mtime, info.ModTime())
	}
}

func TestCopyStatMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(dst, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyStat(filepath.Join(dir, "missing"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyWithStatFailureLeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.cr2")

	if err := CopyWithStat(filepath.Join(dir, "missing.cr2"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	for _, path := range []string{dst, dst + PartialSuffix} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("expected %s absent, got %v", path, err)
		}
	}
}

func TestCopyWithStatReplacesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.cr2")
	dst := filepath.Join(dir, "dst.cr2")
	if err := os.WriteFile(src, []byte("complete raw frame"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("trunc"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyWithStat(src, dst); err != nil {
		t.Fatalf("CopyWithStat failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "complete raw frame" {
		t.Fatalf("expected full content, got %q %v", got, err)
	}
	if _, err := os.Stat(dst + PartialSuffix); !os.IsNotExist(err) {
		t.Fatalf("expected partial file renamed away, got %v", err)
	}
}
