package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFileTypes()
	c.normalizeOutput()
	c.normalizeTools()
	c.normalizeTonemaps()
	c.normalizeLogging()
	c.normalizeWatch()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("CAMERASYNC_SOURCE_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.SourceDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("CAMERASYNC_ARCHIVE_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.ArchiveDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("CAMERASYNC_OUTPUT_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.OutputDir = strings.TrimSpace(value)
	}

	var err error
	if c.Paths.SourceDir, err = expandPath(strings.TrimSpace(c.Paths.SourceDir)); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if c.Paths.ArchiveDir, err = expandPath(strings.TrimSpace(c.Paths.ArchiveDir)); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if c.Paths.TempDir, err = expandPath(strings.TrimSpace(c.Paths.TempDir)); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.Database) == "" {
		c.Paths.Database = defaultDatabase
	}
	if c.Paths.Database, err = expandPath(strings.TrimSpace(c.Paths.Database)); err != nil {
		return fmt.Errorf("paths.database: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFileTypes() {
	c.FileTypes.Raw = normalizeExtList(c.FileTypes.Raw)
	image := normalizeExtList(c.FileTypes.Image)
	// An extension listed as raw is never treated as a pass-through image.
	filtered := image[:0]
	for _, ext := range image {
		if containsExt(c.FileTypes.Raw, ext) {
			continue
		}
		filtered = append(filtered, ext)
	}
	c.FileTypes.Image = filtered
}

func normalizeExtList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := NormalizeExt(value)
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func (c *Config) normalizeOutput() {
	c.Output.Format = NormalizeExt(c.Output.Format)
	if c.Output.Format == "" {
		c.Output.Format = defaultOutputFormat
	}
	c.Output.HDRSuffix = strings.Trim(strings.TrimSpace(c.Output.HDRSuffix), ".")
	if c.Output.HDRSuffix == "" {
		c.Output.HDRSuffix = defaultHDRSuffix
	}
}

func (c *Config) normalizeTools() {
	defaults := Default().Tools
	normalizeTool(&c.Tools.Converter, defaults.Converter.Binary)
	normalizeTool(&c.Tools.ExifTool, defaults.ExifTool.Binary)
	normalizeTool(&c.Tools.Aligner, defaults.Aligner.Binary)
	normalizeTool(&c.Tools.PfsIn, defaults.PfsIn.Binary)
	normalizeTool(&c.Tools.PfsGamma, defaults.PfsGamma.Binary)
	normalizeTool(&c.Tools.PfsOut, defaults.PfsOut.Binary)
	normalizeTool(&c.Tools.Blender, defaults.Blender.Binary)
	normalizeTool(&c.Tools.Encoder, defaults.Encoder.Binary)
	if c.Tools.TimeoutSeconds < 0 {
		c.Tools.TimeoutSeconds = 0
	}
}

func normalizeTool(tool *Tool, fallback string) {
	tool.Binary = strings.TrimSpace(tool.Binary)
	if tool.Binary == "" {
		tool.Binary = fallback
	}
	args := make([]string, 0, len(tool.Args))
	for _, arg := range tool.Args {
		if arg = strings.TrimSpace(arg); arg != "" {
			args = append(args, arg)
		}
	}
	tool.Args = args
}

func (c *Config) normalizeTonemaps() {
	for i := range c.Tonemaps {
		tm := &c.Tonemaps[i]
		tm.Name = strings.ToLower(strings.TrimSpace(tm.Name))
		tm.Name = strings.TrimPrefix(tm.Name, "pfstmo_")
		tool := Tool{Binary: tm.Binary, Args: tm.Args}
		fallback := ""
		if tm.Name != "" {
			fallback = "pfstmo_" + tm.Name
		}
		normalizeTool(&tool, fallback)
		tm.Binary, tm.Args = tool.Binary, tool.Args
		tm.Gamma = strings.TrimSpace(tm.Gamma)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeWatch() {
	c.Watch.FSLabel = strings.TrimSpace(c.Watch.FSLabel)
	c.Watch.FSUUID = strings.ToLower(strings.TrimSpace(c.Watch.FSUUID))
	if c.Watch.SettleSeconds <= 0 {
		c.Watch.SettleSeconds = defaultSettleSeconds
	}
}
