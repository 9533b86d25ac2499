// Package fileutil copies files the way the archive and output stages need:
// content first, then the source's permission bits and timestamps.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// CopyFile streams src to dst, creating or truncating dst. A failed or short
// copy removes dst so no partial file is left behind.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	srcInfo, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	written, err := io.Copy(out, in)
	if err != nil {
		return err
	}
	if written != srcInfo.Size() {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	return out.Close()
}

// CopyStat applies the permission bits, access time and modification time of
// src to dst.
func CopyStat(src, dst string) error {
	var st unix.Stat_t
	if err := unix.Stat(src, &st); err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if err := os.Chmod(dst, os.FileMode(st.Mode&0o7777)); err != nil {
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	atime := time.Unix(st.Atim.Unix())
	mtime := time.Unix(st.Mtim.Unix())
	if err := os.Chtimes(dst, atime, mtime); err != nil {
		return fmt.Errorf("chtimes %s: %w", dst, err)
	}
	return nil
}

// PartialSuffix marks an in-flight copy. A file carrying it is never a
// finished archive entry.
const PartialSuffix = ".part"

// CopyWithStat copies content and stat metadata into dst+PartialSuffix and
// renames it onto dst once both steps succeed, so dst only ever appears
// complete and carrying the source's timestamps.
func CopyWithStat(src, dst string) error {
	part := dst + PartialSuffix
	if err := CopyFile(src, part); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := CopyStat(src, part); err != nil {
		_ = os.Remove(part)
		return err
	}
	if err := os.Rename(part, dst); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("rename %s: %w", part, err)
	}
	return nil
}
