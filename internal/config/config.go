package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directory layout used by an ingest run.
type Paths struct {
	SourceDir  string `toml:"source_dir"`
	ArchiveDir string `toml:"archive_dir"`
	TempDir    string `toml:"temp_dir"`
	OutputDir  string `toml:"output_dir"`
	Database   string `toml:"database"`
	LogDir     string `toml:"log_dir"`
}

// FileTypes lists the supported extensions (without dot, lower case).
// Raw extensions are always supported, Image extensions are archived and
// passed through unchanged.
type FileTypes struct {
	Raw   []string `toml:"raw"`
	Image []string `toml:"image"`
}

// Archive controls the archiving pass.
type Archive struct {
	// StopOnError aborts the pass on the first copy failure instead of
	// logging it and moving on.
	StopOnError bool `toml:"stop_on_error"`
	// VerifyContent sniffs non-raw images and skips files whose content is
	// not an image.
	VerifyContent bool `toml:"verify_content"`
}

// Output contains settings for the artifacts written to the output directory.
type Output struct {
	Format          string `toml:"format"`
	HDRSuffix       string `toml:"hdr_suffix"`
	SaveAllBrackets bool   `toml:"save_all_brackets"`
	SaveTonemaps    bool   `toml:"save_tonemaps"`
	KeepTempFiles   bool   `toml:"keep_temp_files"`
}

// Workers controls pipeline parallelism. Count 0 means one worker per CPU.
type Workers struct {
	Count int `toml:"count"`
}

// Tool describes one external binary and the extra arguments passed to it.
type Tool struct {
	Binary string   `toml:"binary"`
	Args   []string `toml:"args"`
}

// Tools groups the external collaborators of the conversion chain.
type Tools struct {
	TimeoutSeconds int  `toml:"timeout_seconds"`
	Converter      Tool `toml:"converter"`
	ExifTool       Tool `toml:"exiftool"`
	Aligner        Tool `toml:"aligner"`
	PfsIn          Tool `toml:"pfsin"`
	PfsGamma       Tool `toml:"pfsgamma"`
	PfsOut         Tool `toml:"pfsout"`
	Blender        Tool `toml:"blender"`
	Encoder        Tool `toml:"encoder"`
}

// Tonemap configures one enabled tonemapping operator.
type Tonemap struct {
	Name   string   `toml:"name"`
	Binary string   `toml:"binary"`
	Args   []string `toml:"args"`
	// Opacity is the overlay weight in percent used when merging variants.
	// Unset means fully opaque.
	Opacity *float64 `toml:"opacity"`
	// Gamma, when set, inserts a pfsgamma stage into the operator chain.
	Gamma string `toml:"gamma"`
}

// Weight returns the configured opacity, or the default when unset.
func (t Tonemap) Weight() float64 {
	if t.Opacity == nil {
		return defaultTonemapOpacity
	}
	return *t.Opacity
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Watch configures the camera storage watcher.
type Watch struct {
	// FSLabel and FSUUID restrict triggering to a filesystem with that
	// label or UUID. Both empty means any filesystem.
	FSLabel       string `toml:"fs_label"`
	FSUUID        string `toml:"fs_uuid"`
	SettleSeconds int    `toml:"settle_seconds"`
}

// Config encapsulates all configuration values for camerasync.
//
// Configuration sections by subsystem:
//   - Paths: source, archive, temp, output directories and the catalog path
//   - FileTypes: supported raw and image extensions
//   - Archive: archiving pass behaviour
//   - Output: output format, HDR suffix and save/retain flags
//   - Workers: pipeline parallelism
//   - Tools: external binaries and extra arguments
//   - Tonemaps: enabled tonemapping operators
//   - Logging: log format and level
//   - Watch: udev-triggered runs
type Config struct {
	Paths     Paths     `toml:"paths"`
	FileTypes FileTypes `toml:"filetypes"`
	Archive   Archive   `toml:"archive"`
	Output    Output    `toml:"output"`
	Workers   Workers   `toml:"workers"`
	Tools     Tools     `toml:"tools"`
	Tonemaps  []Tonemap `toml:"tonemap"`
	Logging   Logging   `toml:"logging"`
	Watch     Watch     `toml:"watch"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/camerasync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("camerasync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories an ingest run writes into. The
// source directory is never created; it belongs to the camera.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.ArchiveDir, c.Paths.TempDir, c.Paths.OutputDir, c.Paths.LogDir}
	if db := strings.TrimSpace(c.Paths.Database); db != "" {
		dirs = append(dirs, filepath.Dir(db))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// IsRaw reports whether ext (with or without leading dot, any case) is a
// configured raw extension.
func (c *Config) IsRaw(ext string) bool {
	return containsExt(c.FileTypes.Raw, ext)
}

// IsSupported reports whether ext is a raw or image extension.
func (c *Config) IsSupported(ext string) bool {
	return containsExt(c.FileTypes.Raw, ext) || containsExt(c.FileTypes.Image, ext)
}

// WorkerCount resolves the configured worker count, defaulting to NumCPU.
func (c *Config) WorkerCount() int {
	if c.Workers.Count > 0 {
		return c.Workers.Count
	}
	return runtime.NumCPU()
}

// ToolTimeout returns the deadline applied to each external tool invocation.
// Zero disables the deadline.
func (c *Config) ToolTimeout() time.Duration {
	if c.Tools.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Tools.TimeoutSeconds) * time.Second
}

// LockPath is the advisory lock file guarding against concurrent runs.
func (c *Config) LockPath() string {
	return filepath.Join(filepath.Dir(c.Paths.Database), "camerasync.lock")
}

// LogPath is the log file written next to stdout output.
func (c *Config) LogPath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "camerasync.log")
}

// NormalizeExt lower-cases ext and strips a leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func containsExt(list []string, ext string) bool {
	ext = NormalizeExt(ext)
	if ext == "" {
		return false
	}
	for _, candidate := range list {
		if candidate == ext {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ToolBinaries lists every distinct external binary the configuration
// invokes, in pipeline order.
func (c *Config) ToolBinaries() []string {
	candidates := []string{
		c.Tools.ExifTool.Binary,
		c.Tools.Converter.Binary,
		c.Tools.Aligner.Binary,
		c.Tools.PfsIn.Binary,
	}
	for _, tm := range c.Tonemaps {
		candidates = append(candidates, tm.Binary)
	}
	candidates = append(candidates,
		c.Tools.PfsGamma.Binary,
		c.Tools.PfsOut.Binary,
		c.Tools.Blender.Binary,
		c.Tools.Encoder.Binary,
	)

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, bin := range candidates {
		bin = strings.TrimSpace(bin)
		if bin == "" {
			continue
		}
		if _, ok := seen[bin]; ok {
			continue
		}
		seen[bin] = struct{}{}
		out = append(out, bin)
	}
	return out
}
