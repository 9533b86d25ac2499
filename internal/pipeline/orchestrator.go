package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"camerasync/internal/archive"
	"camerasync/internal/catalog"
	"camerasync/internal/config"
	"camerasync/internal/fileutil"
	"camerasync/internal/grouping"
	"camerasync/internal/logging"
	"camerasync/internal/tools"
)

// Catalog is the subset of catalog.Store an Orchestrator needs.
type Catalog interface {
	FilesForGroup(ctx context.Context, group string) (map[string]catalog.File, error)
	MarkGroupProcessed(ctx context.Context, group string) error
}

// Converter runs the external conversion stages. *tools.Toolchain
// implements it.
type Converter interface {
	Convert(ctx context.Context, raw, out string) error
	CopyMetadata(ctx context.Context, src, dst string) error
	Align(ctx context.Context, out string, inputs []string) error
	Tonemap(ctx context.Context, op config.Tonemap, in, out string) error
	Blend(ctx context.Context, base string, layers []tools.Layer, out string) error
	Encode(ctx context.Context, in, out string) error
}

// Stage names used in logs.
const (
	StageResolve  = "resolve"
	StageCopy     = "copy"
	StageConvert  = "convert"
	StageAlign    = "align"
	StageTonemap  = "tonemap"
	StageBlend    = "blend"
	StageSave     = "save"
	StageComplete = "complete"
)

// member is one resolved file of a group.
type member struct {
	Name string
	Path string
	Stem string
	Seq  int
	Raw  bool
	// Converted marks a raw whose camera-rendered sibling is in the group.
	Converted bool
}

// Orchestrator drives image groups through the conversion chain.
type Orchestrator struct {
	cfg    *config.Config
	store  Catalog
	conv   Converter
	logger *slog.Logger
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(cfg *config.Config, store Catalog, conv Converter, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		conv:   conv,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

// ProcessGroup runs one group end to end and marks it processed on success.
func (o *Orchestrator) ProcessGroup(ctx context.Context, group string) error {
	ctx = logging.WithGroup(ctx, group)
	logger := logging.WithContext(ctx, o.logger)

	files, err := o.store.FilesForGroup(ctx, group)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("group %s: %w", group, catalog.ErrGroupNotFound)
	}

	members, err := o.resolve(ctx, group, files)
	if err != nil {
		return err
	}
	raws, others := partition(members)
	logger.Info("processing image group",
		logging.Int("raw", len(raws)),
		logging.Int("other", len(others)),
	)

	if err := o.copyOthers(ctx, others); err != nil {
		return stageError(StageCopy, err)
	}

	if len(raws) == 1 && raws[0].Converted {
		logger.Debug("single raw already rendered by camera; skipping conversion", logging.String("file", raws[0].Name))
	} else if len(raws) > 0 {
		if err := o.convertBracket(ctx, group, raws); err != nil {
			return err
		}
	}

	if err := o.store.MarkGroupProcessed(ctx, group); err != nil {
		return err
	}
	logging.WithContext(logging.WithStage(ctx, StageComplete), o.logger).Info("image group processed")
	return nil
}

func (o *Orchestrator) resolve(ctx context.Context, group string, files map[string]catalog.File) ([]member, error) {
	logger := logging.WithContext(logging.WithStage(ctx, StageResolve), o.logger)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	paths, err := archive.Resolve(o.cfg.Paths.ArchiveDir, names)
	if err != nil {
		return nil, fmt.Errorf("resolve group %s: %w", group, err)
	}

	var missing []string
	members := make([]member, 0, len(names))
	for _, name := range names {
		path, ok := paths[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		f := files[name]
		members = append(members, member{
			Name: name,
			Path: path,
			Stem: grouping.Stem(name),
			Seq:  f.Seq,
			Raw:  o.cfg.IsRaw(f.Type),
		})
	}
	if len(missing) > 0 {
		logger.Warn("group members missing from archive", logging.Int("missing", len(missing)))
		return nil, &ResolveError{Group: group, Missing: missing}
	}
	logger.Debug("resolved group members", logging.Int("members", len(members)))
	return members, nil
}

// partition splits members into raw and other files, flagging raws whose
// stem matches a non-raw sibling. Both slices keep filename order.
func partition(members []member) (raws, others []member) {
	rendered := make(map[string]struct{})
	for _, m := range members {
		if !m.Raw {
			others = append(others, m)
			rendered[m.Stem] = struct{}{}
		}
	}
	for _, m := range members {
		if m.Raw {
			_, m.Converted = rendered[m.Stem]
			raws = append(raws, m)
		}
	}
	return raws, others
}

func (o *Orchestrator) copyOthers(ctx context.Context, others []member) error {
	if len(others) == 0 {
		return nil
	}
	logger := logging.WithContext(logging.WithStage(ctx, StageCopy), o.logger)
	if err := os.MkdirAll(o.cfg.Paths.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, m := range others {
		dest := filepath.Join(o.cfg.Paths.OutputDir, m.Name)
		if err := fileutil.CopyWithStat(m.Path, dest); err != nil {
			return fmt.Errorf("copy %s to output: %w", m.Name, err)
		}
		logger.Info("copied image to output", logging.String("file", m.Name))
	}
	return nil
}

// convertBracket decodes every raw, saves the original exposure and, for
// more than one raw, builds the HDR composite. Temporary files are removed
// afterwards unless output.keep_temp_files is set, also on failure.
func (o *Orchestrator) convertBracket(ctx context.Context, group string, raws []member) error {
	if err := os.MkdirAll(o.cfg.Paths.TempDir, 0o755); err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}
	if err := os.MkdirAll(o.cfg.Paths.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var temps []string
	defer func() {
		if o.cfg.Output.KeepTempFiles {
			return
		}
		o.removeTemps(ctx, temps)
	}()

	convertCtx := logging.WithStage(ctx, StageConvert)
	intermediates := make([]string, 0, len(raws))
	originalSaved := false
	for _, raw := range raws {
		tiff := filepath.Join(o.cfg.Paths.TempDir, baseName(raw.Name)+".tiff")
		temps = append(temps, tiff)
		logging.WithContext(convertCtx, o.logger).Info("converting raw exposure", logging.String("file", raw.Name))
		if err := o.conv.Convert(convertCtx, raw.Path, tiff); err != nil {
			return stageError(StageConvert, err)
		}
		if err := fileutil.CopyStat(raw.Path, tiff); err != nil {
			return stageError(StageConvert, err)
		}
		intermediates = append(intermediates, tiff)

		if o.cfg.Output.SaveAllBrackets || !originalSaved {
			if !raw.Converted {
				if err := o.save(ctx, tiff, baseName(raw.Name)); err != nil {
					return err
				}
			}
			originalSaved = true
		}
	}

	if len(intermediates) < 2 {
		return nil
	}
	return o.composite(ctx, group, intermediates, &temps)
}

func (o *Orchestrator) composite(ctx context.Context, group string, intermediates []string, temps *[]string) error {
	first := intermediates[0]

	alignCtx := logging.WithStage(ctx, StageAlign)
	aligned := filepath.Join(o.cfg.Paths.TempDir, group+".aligned.hdr")
	*temps = append(*temps, aligned)
	logging.WithContext(alignCtx, o.logger).Info("aligning exposures", logging.Int("exposures", len(intermediates)))
	if err := o.conv.Align(alignCtx, aligned, intermediates); err != nil {
		return stageError(StageAlign, err)
	}

	tonemapCtx := logging.WithStage(ctx, StageTonemap)
	layers := make([]tools.Layer, 0, len(o.cfg.Tonemaps))
	for _, op := range o.cfg.Tonemaps {
		variant := filepath.Join(o.cfg.Paths.TempDir, group+"."+op.Name+".tiff")
		*temps = append(*temps, variant)
		logging.WithContext(tonemapCtx, o.logger).Info("tonemapping", logging.String("operator", op.Name))
		if err := o.conv.Tonemap(tonemapCtx, op, aligned, variant); err != nil {
			return stageError(StageTonemap, err)
		}
		if err := o.propagate(tonemapCtx, first, variant); err != nil {
			return stageError(StageTonemap, err)
		}
		if o.cfg.Output.SaveTonemaps {
			if err := o.save(ctx, variant, group+"."+op.Name); err != nil {
				return err
			}
		}
		layers = append(layers, tools.Layer{Path: variant, Opacity: op.Weight()})
	}

	blendCtx := logging.WithStage(ctx, StageBlend)
	merged := filepath.Join(o.cfg.Paths.TempDir, group+"."+o.cfg.Output.HDRSuffix+".tiff")
	*temps = append(*temps, merged)
	logging.WithContext(blendCtx, o.logger).Info("blending tonemapped variants", logging.Int("layers", len(layers)))
	if err := o.conv.Blend(blendCtx, first, layers, merged); err != nil {
		return stageError(StageBlend, err)
	}
	if err := o.propagate(blendCtx, first, merged); err != nil {
		return stageError(StageBlend, err)
	}
	return o.save(ctx, merged, group+"."+o.cfg.Output.HDRSuffix)
}

// save encodes src as <output>/<name>.<format> and carries metadata and
// timestamps over from src.
func (o *Orchestrator) save(ctx context.Context, src, name string) error {
	ctx = logging.WithStage(ctx, StageSave)
	out := filepath.Join(o.cfg.Paths.OutputDir, name+"."+o.cfg.Output.Format)
	logging.WithContext(ctx, o.logger).Info("saving output", logging.String("output", out))
	if err := o.conv.Encode(ctx, src, out); err != nil {
		return stageError(StageSave, err)
	}
	if err := o.propagate(ctx, src, out); err != nil {
		return stageError(StageSave, err)
	}
	return nil
}

// propagate copies capture metadata and file timestamps from src onto dst.
func (o *Orchestrator) propagate(ctx context.Context, src, dst string) error {
	if err := o.conv.CopyMetadata(ctx, src, dst); err != nil {
		return err
	}
	return fileutil.CopyStat(src, dst)
}

func (o *Orchestrator) removeTemps(ctx context.Context, temps []string) {
	for _, path := range temps {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WithContext(ctx, o.logger).Warn("failed to remove temporary file",
				append([]any{logging.String("path", path)}, logging.ErrorAttrs(err)...)...)
		}
	}
}

func baseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// StageError wraps a failure with the pipeline stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrorKind forwards the classification of the wrapped error.
func (e *StageError) ErrorKind() string {
	var kinded interface{ ErrorKind() string }
	if errors.As(e.Err, &kinded) {
		return kinded.ErrorKind()
	}
	return "filesystem"
}

func stageError(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
