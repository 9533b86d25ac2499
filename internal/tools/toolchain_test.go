package tools_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"camerasync/internal/config"
	"camerasync/internal/tools"
)

type recordingExecutor struct {
	runs   []tools.Command
	pipes  [][]tools.Command
	stdout []byte
	create bool
	err    error
}

func (r *recordingExecutor) Run(_ context.Context, cmd tools.Command) ([]byte, error) {
	r.runs = append(r.runs, cmd)
	if r.err != nil {
		return nil, r.err
	}
	if r.create && len(cmd.Args) > 0 {
		_ = os.WriteFile(lastPath(cmd.Args), []byte("x"), 0o644)
	}
	return r.stdout, nil
}

func (r *recordingExecutor) Pipe(_ context.Context, cmds []tools.Command) error {
	r.pipes = append(r.pipes, cmds)
	if r.err != nil {
		return r.err
	}
	if r.create {
		last := cmds[len(cmds)-1]
		_ = os.WriteFile(lastPath(last.Args), []byte("x"), 0o644)
	}
	return nil
}

func lastPath(args []string) string {
	last := args[len(args)-1]
	for _, arg := range args {
		if len(arg) > len("--output=") && arg[:len("--output=")] == "--output=" {
			return arg[len("--output="):]
		}
	}
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return last
}

func newToolchain(t *testing.T, exec *recordingExecutor) *tools.Toolchain {
	t.Helper()
	cfg := config.Default()
	return tools.New(&cfg, tools.WithExecutor(exec))
}

func TestConvertArgs(t *testing.T) {
	dir := t.TempDir()
	exec := &recordingExecutor{create: true}
	tc := newToolchain(t, exec)

	out := filepath.Join(dir, "img_0100.tiff")
	if err := tc.Convert(context.Background(), "/archive/cr2/IMG_0100.CR2", out); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	want := tools.Command{
		Binary: "ufraw-batch",
		Args:   []string{"--out-type=tiff", "--out-depth=16", "--overwrite", "--output=" + out, "/archive/cr2/IMG_0100.CR2"},
	}
	if !reflect.DeepEqual(exec.runs[0], want) {
		t.Fatalf("command = %+v, want %+v", exec.runs[0], want)
	}
}

func TestConvertMissingOutput(t *testing.T) {
	exec := &recordingExecutor{}
	tc := newToolchain(t, exec)

	err := tc.Convert(context.Background(), "in.cr2", filepath.Join(t.TempDir(), "out.tiff"))
	if !errors.Is(err, tools.ErrMissingOutput) || !errors.Is(err, tools.ErrToolFailed) {
		t.Fatalf("expected missing output tool error, got %v", err)
	}
}

func TestCopyMetadataArgs(t *testing.T) {
	exec := &recordingExecutor{}
	tc := newToolchain(t, exec)

	if err := tc.CopyMetadata(context.Background(), "src.tiff", "dst.jpg"); err != nil {
		t.Fatalf("CopyMetadata failed: %v", err)
	}
	want := tools.Command{Binary: "exiftool", Args: []string{"-overwrite_original", "-TagsFromFile", "src.tiff", "dst.jpg"}}
	if !reflect.DeepEqual(exec.runs[0], want) {
		t.Fatalf("command = %+v, want %+v", exec.runs[0], want)
	}
}

func TestAlignArgs(t *testing.T) {
	dir := t.TempDir()
	exec := &recordingExecutor{create: true}
	tc := newToolchain(t, exec)

	out := filepath.Join(dir, "img_0100.aligned.hdr")
	if err := tc.Align(context.Background(), out, []string{"a.tiff", "b.tiff"}); err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	want := tools.Command{Binary: "align_image_stack", Args: []string{"-i", "-o", out, "a.tiff", "b.tiff"}}
	if !reflect.DeepEqual(exec.runs[0], want) {
		t.Fatalf("command = %+v, want %+v", exec.runs[0], want)
	}
	if err := tc.Align(context.Background(), out, nil); err == nil {
		t.Fatal("expected error for empty input list")
	}
}

func TestTonemapCommands(t *testing.T) {
	cfg := config.Default()
	tc := tools.New(&cfg)

	plain := tc.TonemapCommands(config.Tonemap{Name: "mantiuk06", Binary: "pfstmo_mantiuk06"}, "in.hdr", "out.tiff")
	wantPlain := []tools.Command{
		{Binary: "pfsin", Args: []string{"--quiet", "in.hdr"}},
		{Binary: "pfstmo_mantiuk06", Args: nil},
		{Binary: "pfsout", Args: []string{"out.tiff"}},
	}
	if !reflect.DeepEqual(plain, wantPlain) {
		t.Fatalf("chain = %+v, want %+v", plain, wantPlain)
	}

	withGamma := tc.TonemapCommands(config.Tonemap{Name: "fattal02", Binary: "pfstmo_fattal02", Args: []string{"-s", "1"}, Gamma: "0.8"}, "in.hdr", "out.tiff")
	if len(withGamma) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(withGamma))
	}
	if !reflect.DeepEqual(withGamma[2], tools.Command{Binary: "pfsgamma", Args: []string{"-g", "0.8"}}) {
		t.Fatalf("unexpected gamma stage %+v", withGamma[2])
	}
	if !reflect.DeepEqual(withGamma[1].Args, []string{"-s", "1"}) {
		t.Fatalf("unexpected operator args %+v", withGamma[1])
	}
}

func TestTonemapUsesPipe(t *testing.T) {
	exec := &recordingExecutor{create: true}
	tc := newToolchain(t, exec)
	out := filepath.Join(t.TempDir(), "img.mantiuk06.tiff")

	if err := tc.Tonemap(context.Background(), config.Tonemap{Name: "mantiuk06", Binary: "pfstmo_mantiuk06"}, "in.hdr", out); err != nil {
		t.Fatalf("Tonemap failed: %v", err)
	}
	if len(exec.pipes) != 1 || len(exec.runs) != 0 {
		t.Fatalf("expected one pipe invocation, got %d pipes %d runs", len(exec.pipes), len(exec.runs))
	}
}

func TestBlendArgs(t *testing.T) {
	dir := t.TempDir()
	exec := &recordingExecutor{create: true}
	tc := newToolchain(t, exec)
	out := filepath.Join(dir, "img.hdr.tiff")

	layers := []tools.Layer{{Path: "m.tiff", Opacity: 60}, {Path: "f.tiff", Opacity: 37.5}}
	if err := tc.Blend(context.Background(), "base.tiff", layers, out); err != nil {
		t.Fatalf("Blend failed: %v", err)
	}
	want := []string{
		"base.tiff",
		"(", "m.tiff", "-trim", "-alpha", "set", "-channel", "A", "-evaluate", "set", "60%", ")", "-compose", "overlay", "-composite",
		"(", "f.tiff", "-trim", "-alpha", "set", "-channel", "A", "-evaluate", "set", "37.5%", ")", "-compose", "overlay", "-composite",
		out,
	}
	if exec.runs[0].Binary != "convert" || !reflect.DeepEqual(exec.runs[0].Args, want) {
		t.Fatalf("command = %+v", exec.runs[0])
	}
}

func TestEncodeArgs(t *testing.T) {
	dir := t.TempDir()
	exec := &recordingExecutor{create: true}
	tc := newToolchain(t, exec)
	out := filepath.Join(dir, "img_0100.jpg")

	if err := tc.Encode(context.Background(), "img_0100.tiff", out); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := tools.Command{Binary: "convert", Args: []string{"img_0100.tiff", "-quality", "95", out}}
	if !reflect.DeepEqual(exec.runs[0], want) {
		t.Fatalf("command = %+v, want %+v", exec.runs[0], want)
	}
}

func TestReadMetadataParsesOutput(t *testing.T) {
	exec := &recordingExecutor{stdout: []byte("Release Mode : Exposure Bracketing\nSequence Image Number : 3\n")}
	tc := newToolchain(t, exec)

	tags, err := tc.ReadMetadata(context.Background(), "/archive/cr2/IMG_0102.CR2")
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if seq, _ := tags.SequenceImageNumber(); seq != "3" {
		t.Fatalf("unexpected sequence %q", seq)
	}
	if !reflect.DeepEqual(exec.runs[0], tools.Command{Binary: "exiftool", Args: []string{"/archive/cr2/IMG_0102.CR2"}}) {
		t.Fatalf("unexpected command %+v", exec.runs[0])
	}
}

func TestToolErrorPropagates(t *testing.T) {
	failure := &tools.Error{Tool: "ufraw-batch", Err: errors.New("exit status 1")}
	exec := &recordingExecutor{err: failure}
	tc := newToolchain(t, exec)

	err := tc.Convert(context.Background(), "in.cr2", "out.tiff")
	if !errors.Is(err, tools.ErrToolFailed) {
		t.Fatalf("expected tool failure, got %v", err)
	}
}
