package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"camerasync/internal/grouping"
	"camerasync/internal/logging"
	"camerasync/internal/metadata"
)

// MetadataReader reads capture metadata from an image file.
type MetadataReader interface {
	ReadMetadata(ctx context.Context, path string) (metadata.Tags, error)
}

// ProcessFiles converts the given files without consulting the catalog, so
// the Orchestrator may be built with a nil Catalog.
// Non-raw files are copied to the output directory; raw files are grouped by
// filename and metadata and each group goes through the conversion chain.
func (o *Orchestrator) ProcessFiles(ctx context.Context, meta MetadataReader, paths []string) (Result, error) {
	logger := logging.WithContext(ctx, o.logger)

	groups := make(map[string][]member)
	var others []member
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return Result{}, fmt.Errorf("resolve %s: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return Result{}, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.IsDir() {
			return Result{}, fmt.Errorf("%s is a directory", path)
		}
		name := filepath.Base(abs)
		m := member{Name: name, Path: abs, Stem: grouping.Stem(name), Raw: o.cfg.IsRaw(filepath.Ext(name))}
		if !m.Raw {
			others = append(others, m)
			continue
		}

		var tags metadata.Tags
		if meta != nil {
			if tags, err = meta.ReadMetadata(ctx, abs); err != nil {
				logger.Warn("metadata read failed; grouping by filename only",
					append([]any{logging.String("file", name)}, logging.ErrorAttrs(err)...)...)
			}
		}
		derived := grouping.Derive(m.Stem, tags)
		m.Seq = derived.Sequence
		groups[derived.Group] = append(groups[derived.Group], m)
	}

	if err := o.copyOthers(ctx, others); err != nil {
		return Result{}, err
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	result := Result{Groups: len(names), Workers: 1}
	var errs []error
	for _, group := range names {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		raws := groups[group]
		sort.Slice(raws, func(i, j int) bool { return raws[i].Name < raws[j].Name })
		groupCtx := logging.WithGroup(ctx, group)
		logging.WithContext(groupCtx, o.logger).Info("processing raw files", logging.Int("raw", len(raws)))
		if err := o.convertBracket(groupCtx, group, raws); err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("group %s: %w", group, err))
			logging.WithContext(groupCtx, o.logger).Error("image group failed", logging.ErrorAttrs(err)...)
			continue
		}
		result.Processed++
	}
	return result, errors.Join(errs...)
}
