package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"camerasync/internal/catalog"
	"camerasync/internal/config"
	"camerasync/internal/fileutil"
	"camerasync/internal/grouping"
	"camerasync/internal/logging"
	"camerasync/internal/metadata"
)

// Catalog is the subset of catalog.Store used while archiving.
type Catalog interface {
	HasFile(ctx context.Context, name string, minState catalog.State) (bool, error)
	AddFile(ctx context.Context, tags grouping.Tags, name, fileType string) (catalog.AddResult, error)
	MarkSynced(ctx context.Context, name string) error
}

// MetadataReader reads capture metadata from an image file.
type MetadataReader interface {
	ReadMetadata(ctx context.Context, path string) (metadata.Tags, error)
}

// Stats summarizes one archive or index pass.
type Stats struct {
	Scanned     int
	Copied      int
	Registered  int
	Skipped     int
	Unsupported int
	Failed      int
}

// Archiver copies supported files from the source tree into the archive.
type Archiver struct {
	cfg    *config.Config
	store  Catalog
	meta   MetadataReader
	logger *slog.Logger
}

// NewArchiver constructs an Archiver.
func NewArchiver(cfg *config.Config, store Catalog, meta MetadataReader, logger *slog.Logger) *Archiver {
	return &Archiver{
		cfg:    cfg,
		store:  store,
		meta:   meta,
		logger: logging.NewComponentLogger(logger, "archiver"),
	}
}

// Archive walks the source directory in lexical order. Files already synced
// in the catalog or already present in the archive are skipped. Per-file copy
// failures are counted and logged unless archive.stop_on_error is set; a
// catalog failure always aborts the pass.
func (a *Archiver) Archive(ctx context.Context) (Stats, error) {
	var stats Stats
	logger := logging.WithContext(ctx, a.logger)
	source := a.cfg.Paths.SourceDir
	if strings.TrimSpace(source) == "" {
		return stats, errors.New("source directory not configured")
	}
	if info, err := os.Stat(source); err != nil {
		return stats, fmt.Errorf("source directory: %w", err)
	} else if !info.IsDir() {
		return stats, fmt.Errorf("source directory %s is not a directory", source)
	}

	logger.Info("searching for new files to archive", logging.String("source", source))
	err := walkFiles(source, func(path string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		name := d.Name()
		ext := config.NormalizeExt(filepath.Ext(name))
		if !a.cfg.IsSupported(ext) {
			stats.Unsupported++
			logger.Debug("skipping unsupported file type", logging.String("file", name), logging.String("type", ext))
			return nil
		}

		synced, err := a.store.HasFile(ctx, name, catalog.StateSynced)
		if err != nil {
			return err
		}
		if synced {
			stats.Skipped++
			logger.Debug("skipping file already in catalog", logging.String("file", name))
			return nil
		}

		dest := filepath.Join(a.cfg.Paths.ArchiveDir, ext, name)
		if complete, err := archivedCopyComplete(path, dest); err != nil {
			return err
		} else if complete {
			stats.Skipped++
			logger.Debug("skipping file already archived", logging.String("file", name))
			return nil
		}

		if a.cfg.Archive.VerifyContent && !a.cfg.IsRaw(ext) {
			if ok, detected := looksLikeImage(path); !ok {
				stats.Skipped++
				logger.Warn("skipping file whose content is not an image",
					logging.String("file", name),
					logging.String("mimetype", detected),
				)
				return nil
			}
		}

		if err := copyInto(path, dest); err != nil {
			stats.Failed++
			if a.cfg.Archive.StopOnError {
				return err
			}
			logger.Warn("archive copy failed", append([]any{logging.String("file", name)}, logging.ErrorAttrs(err)...)...)
			return nil
		}
		logger.Info("archived file", logging.String("file", name), logging.String("destination", dest))
		stats.Copied++

		return register(ctx, a.store, a.meta, logger, dest, name, ext)
	})
	if err != nil {
		return stats, fmt.Errorf("archive %s: %w", source, err)
	}
	logger.Info("archive pass complete",
		logging.Int("scanned", stats.Scanned),
		logging.Int("copied", stats.Copied),
		logging.Int("skipped", stats.Skipped),
		logging.Int("unsupported", stats.Unsupported),
		logging.Int("failed", stats.Failed),
	)
	return stats, nil
}

// archivedCopyComplete reports whether dest already holds a full copy of src.
// A dest shorter than src is left over from an interrupted copy and is
// replaced.
func archivedCopyComplete(src, dest string) (bool, error) {
	destInfo, err := os.Stat(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat archive copy: %w", err)
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("stat source: %w", err)
	}
	return destInfo.Size() >= srcInfo.Size(), nil
}

func copyInto(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	return fileutil.CopyWithStat(src, dest)
}

func looksLikeImage(path string) (bool, string) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false, ""
	}
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true, mtype.String()
		}
	}
	return false, mtype.String()
}

// register records an archived file in the catalog and marks it synced.
// Unreadable metadata only loses sequence correction, so it is logged and the
// file is grouped by name alone.
func register(ctx context.Context, store Catalog, meta MetadataReader, logger *slog.Logger, path, name, ext string) error {
	var tags metadata.Tags
	if meta != nil {
		read, err := meta.ReadMetadata(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Warn("metadata read failed; grouping by filename only",
				append([]any{logging.String("file", name)}, logging.ErrorAttrs(err)...)...)
		} else {
			tags = read
		}
	}

	res, err := store.AddFile(ctx, tags, name, ext)
	if err != nil {
		return err
	}
	if res.Regrouped {
		logger.Warn("file already catalogued under a different group; keeping original grouping",
			logging.String("file", name),
			logging.String("stored_group", res.ExistingGroup),
			logging.String("derived_group", res.Group),
		)
	}
	return store.MarkSynced(ctx, name)
}

// walkFiles visits regular files below root in lexical order. Partial copies
// are not visited.
func walkFiles(root string, fn func(path string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasSuffix(d.Name(), fileutil.PartialSuffix) {
			return nil
		}
		return fn(path, d)
	})
}
