package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"camerasync/internal/config"
	"camerasync/internal/logging"
	"camerasync/internal/metadata"
)

// Layer is one tonemapped variant blended over the base image.
type Layer struct {
	Path string
	// Opacity in percent.
	Opacity float64
}

// Option configures a Toolchain.
type Option func(*Toolchain)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(t *Toolchain) {
		if exec != nil {
			t.exec = exec
		}
	}
}

// WithLogger sets the logger used for per-invocation debug lines.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Toolchain) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Toolchain invokes the configured external tools.
type Toolchain struct {
	exec   Executor
	logger *slog.Logger
	cfg    *config.Config
}

// New constructs a Toolchain from the tool section of cfg.
func New(cfg *config.Config, opts ...Option) *Toolchain {
	t := &Toolchain{
		exec:   commandExecutor{},
		logger: logging.NewNop(),
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Toolchain) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := t.cfg.ToolTimeout(); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (t *Toolchain) run(ctx context.Context, cmd Command) ([]byte, error) {
	ctx, cancel := t.withDeadline(ctx)
	defer cancel()
	logging.WithContext(ctx, t.logger).Debug("running tool", logging.String("command", cmd.String()))
	return t.exec.Run(ctx, cmd)
}

func command(tool config.Tool, args ...string) Command {
	full := make([]string, 0, len(tool.Args)+len(args))
	full = append(full, tool.Args...)
	full = append(full, args...)
	return Command{Binary: tool.Binary, Args: full}
}

func requireOutput(cmd Command, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Error{Tool: cmd.Binary, Args: cmd.Args, Err: fmt.Errorf("%w: %s", ErrMissingOutput, path)}
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}

// ReadMetadata runs exiftool on path and parses its tag listing.
func (t *Toolchain) ReadMetadata(ctx context.Context, path string) (metadata.Tags, error) {
	cmd := Command{Binary: t.cfg.Tools.ExifTool.Binary, Args: []string{path}}
	out, err := t.run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return metadata.Parse(out)
}

// Convert decodes raw into the intermediate image out.
func (t *Toolchain) Convert(ctx context.Context, raw, out string) error {
	cmd := command(t.cfg.Tools.Converter, "--output="+out, raw)
	if _, err := t.run(ctx, cmd); err != nil {
		return err
	}
	return requireOutput(cmd, out)
}

// CopyMetadata copies all tags from src onto dst in place.
func (t *Toolchain) CopyMetadata(ctx context.Context, src, dst string) error {
	cmd := command(t.cfg.Tools.ExifTool, "-overwrite_original", "-TagsFromFile", src, dst)
	_, err := t.run(ctx, cmd)
	return err
}

// Align registers the exposures in inputs and writes the merged HDR to out.
func (t *Toolchain) Align(ctx context.Context, out string, inputs []string) error {
	if len(inputs) == 0 {
		return errors.New("align: no input images")
	}
	args := append([]string{"-o", out}, inputs...)
	cmd := command(t.cfg.Tools.Aligner, args...)
	if _, err := t.run(ctx, cmd); err != nil {
		return err
	}
	return requireOutput(cmd, out)
}

// TonemapCommands builds the pfstools chain for one operator:
// pfsin | operator [| pfsgamma] | pfsout.
func (t *Toolchain) TonemapCommands(op config.Tonemap, in, out string) []Command {
	cmds := []Command{
		command(t.cfg.Tools.PfsIn, "--quiet", in),
		{Binary: op.Binary, Args: append([]string(nil), op.Args...)},
	}
	if op.Gamma != "" {
		cmds = append(cmds, command(t.cfg.Tools.PfsGamma, "-g", op.Gamma))
	}
	return append(cmds, command(t.cfg.Tools.PfsOut, out))
}

// Tonemap runs the operator chain on the HDR image in, writing out.
func (t *Toolchain) Tonemap(ctx context.Context, op config.Tonemap, in, out string) error {
	cmds := t.TonemapCommands(op, in, out)
	ctx, cancel := t.withDeadline(ctx)
	defer cancel()
	logging.WithContext(ctx, t.logger).Debug("running tonemap chain",
		logging.String("operator", op.Name),
		logging.Int("stages", len(cmds)),
	)
	if err := t.exec.Pipe(ctx, cmds); err != nil {
		return err
	}
	return requireOutput(cmds[len(cmds)-1], out)
}

// Blend overlays each layer on base with its opacity and writes out.
func (t *Toolchain) Blend(ctx context.Context, base string, layers []Layer, out string) error {
	args := []string{base}
	for _, layer := range layers {
		args = append(args,
			"(", layer.Path, "-trim", "-alpha", "set", "-channel", "A",
			"-evaluate", "set", formatPercent(layer.Opacity), ")",
			"-compose", "overlay", "-composite",
		)
	}
	args = append(args, out)
	cmd := command(t.cfg.Tools.Blender, args...)
	if _, err := t.run(ctx, cmd); err != nil {
		return err
	}
	return requireOutput(cmd, out)
}

// Encode converts in to the output format implied by out's extension.
func (t *Toolchain) Encode(ctx context.Context, in, out string) error {
	cmd := Command{
		Binary: t.cfg.Tools.Encoder.Binary,
		Args:   append(append([]string{in}, t.cfg.Tools.Encoder.Args...), out),
	}
	if _, err := t.run(ctx, cmd); err != nil {
		return err
	}
	return requireOutput(cmd, out)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
