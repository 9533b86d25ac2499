package archive

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"camerasync/internal/catalog"
	"camerasync/internal/config"
	"camerasync/internal/logging"
)

// Indexer registers archive files that the catalog is missing.
type Indexer struct {
	cfg    *config.Config
	store  Catalog
	meta   MetadataReader
	logger *slog.Logger
}

// NewIndexer constructs an Indexer.
func NewIndexer(cfg *config.Config, store Catalog, meta MetadataReader, logger *slog.Logger) *Indexer {
	return &Indexer{
		cfg:    cfg,
		store:  store,
		meta:   meta,
		logger: logging.NewComponentLogger(logger, "indexer"),
	}
}

// Index walks the archive tree and registers every supported file without a
// catalog row as synced.
func (i *Indexer) Index(ctx context.Context) (Stats, error) {
	var stats Stats
	logger := logging.WithContext(ctx, i.logger)
	root := i.cfg.Paths.ArchiveDir
	if _, err := os.Stat(root); os.IsNotExist(err) {
		logger.Debug("archive directory missing; nothing to index", logging.String("archive", root))
		return stats, nil
	}

	logger.Info("searching archive content for unprocessed items", logging.String("archive", root))
	err := walkFiles(root, func(path string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		name := d.Name()
		ext := config.NormalizeExt(filepath.Ext(name))
		if !i.cfg.IsSupported(ext) {
			stats.Unsupported++
			return nil
		}
		known, err := i.store.HasFile(ctx, name, catalog.StateSeen)
		if err != nil {
			return err
		}
		if known {
			stats.Skipped++
			return nil
		}
		if err := register(ctx, i.store, i.meta, logger, path, name, ext); err != nil {
			return err
		}
		logger.Info("registered archived file", logging.String("file", name))
		stats.Registered++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("index %s: %w", root, err)
	}
	logger.Info("index pass complete",
		logging.Int("scanned", stats.Scanned),
		logging.Int("registered", stats.Registered),
	)
	return stats, nil
}
