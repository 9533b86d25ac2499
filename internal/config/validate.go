package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFileTypes(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateTonemaps(); err != nil {
		return err
	}
	if c.Workers.Count < 0 {
		return errors.New("workers.count must not be negative")
	}
	return nil
}

func (c *Config) validatePaths() error {
	required := map[string]string{
		"paths.archive_dir": c.Paths.ArchiveDir,
		"paths.temp_dir":    c.Paths.TempDir,
		"paths.output_dir":  c.Paths.OutputDir,
		"paths.database":    c.Paths.Database,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if c.Paths.SourceDir != "" && isWithin(c.Paths.ArchiveDir, c.Paths.SourceDir) {
		return errors.New("paths.archive_dir must not be inside paths.source_dir")
	}
	return nil
}

func (c *Config) validateFileTypes() error {
	if len(c.FileTypes.Raw) == 0 && len(c.FileTypes.Image) == 0 {
		return errors.New("filetypes: at least one raw or image extension is required")
	}
	return nil
}

func (c *Config) validateTools() error {
	tools := map[string]Tool{
		"tools.converter": c.Tools.Converter,
		"tools.exiftool":  c.Tools.ExifTool,
		"tools.aligner":   c.Tools.Aligner,
		"tools.pfsin":     c.Tools.PfsIn,
		"tools.pfsgamma":  c.Tools.PfsGamma,
		"tools.pfsout":    c.Tools.PfsOut,
		"tools.blender":   c.Tools.Blender,
		"tools.encoder":   c.Tools.Encoder,
	}
	for key, tool := range tools {
		if strings.TrimSpace(tool.Binary) == "" {
			return fmt.Errorf("%s.binary must be set", key)
		}
	}
	return nil
}

func (c *Config) validateTonemaps() error {
	seen := make(map[string]struct{}, len(c.Tonemaps))
	for i, tm := range c.Tonemaps {
		if tm.Name == "" {
			return fmt.Errorf("tonemap[%d].name must be set", i)
		}
		if _, dup := seen[tm.Name]; dup {
			return fmt.Errorf("tonemap %q configured more than once", tm.Name)
		}
		seen[tm.Name] = struct{}{}
		if tm.Name == c.Output.HDRSuffix || tm.Name == "aligned" {
			return fmt.Errorf("tonemap %q collides with a reserved artifact name", tm.Name)
		}
		if w := tm.Weight(); w < 0 || w > 100 {
			return fmt.Errorf("tonemap %q: opacity must be between 0 and 100", tm.Name)
		}
		if tm.Gamma != "" {
			if _, err := strconv.ParseFloat(tm.Gamma, 64); err != nil {
				return fmt.Errorf("tonemap %q: gamma must be numeric: %w", tm.Name, err)
			}
		}
	}
	return nil
}

func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
