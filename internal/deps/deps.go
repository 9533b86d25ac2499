package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"camerasync/internal/config"
)

// Requirement defines an external dependency camerasync relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the external tools the configured pipeline invokes.
func Requirements(cfg *config.Config) []Requirement {
	t := cfg.Tools
	reqs := []Requirement{
		{Name: "Converter", Command: t.Converter.Binary, Description: "Decodes raw exposures"},
		{Name: "ExifTool", Command: t.ExifTool.Binary, Description: "Reads and copies capture metadata"},
		{Name: "Aligner", Command: t.Aligner.Binary, Description: "Aligns bracket exposures into an HDR image"},
		{Name: "pfsin", Command: t.PfsIn.Binary, Description: "Feeds HDR images into the tonemap chain"},
		{Name: "pfsgamma", Command: t.PfsGamma.Binary, Description: "Gamma correction for tonemap operators", Optional: !usesGamma(cfg)},
		{Name: "pfsout", Command: t.PfsOut.Binary, Description: "Writes tonemapped images"},
	}
	for _, op := range cfg.Tonemaps {
		reqs = append(reqs, Requirement{Name: "Tonemap " + op.Name, Command: op.Binary, Description: "Tonemap operator"})
	}
	reqs = append(reqs,
		Requirement{Name: "Blender", Command: t.Blender.Binary, Description: "Overlays tonemapped variants"},
		Requirement{Name: "Encoder", Command: t.Encoder.Binary, Description: "Encodes output images"},
	)
	return reqs
}

func usesGamma(cfg *config.Config) bool {
	for _, op := range cfg.Tonemaps {
		if op.Gamma != "" {
			return true
		}
	}
	return false
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Requirements sharing a command are reported once.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	seen := make(map[string]struct{}, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		if cmd != "" {
			if _, dup := seen[cmd]; dup {
				continue
			}
			seen[cmd] = struct{}{}
		}
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckDirectories reports whether the configured directories are usable.
// The source directory only needs to be readable and is optional, since the
// camera storage is often not attached.
func CheckDirectories(cfg *config.Config) []Status {
	type dir struct {
		name     string
		path     string
		mode     uint32
		optional bool
	}
	dirs := []dir{
		{name: "Source", path: cfg.Paths.SourceDir, mode: unix.R_OK | unix.X_OK, optional: true},
		{name: "Archive", path: cfg.Paths.ArchiveDir, mode: unix.R_OK | unix.W_OK | unix.X_OK},
		{name: "Temp", path: cfg.Paths.TempDir, mode: unix.W_OK | unix.X_OK},
		{name: "Output", path: cfg.Paths.OutputDir, mode: unix.W_OK | unix.X_OK},
	}
	results := make([]Status, 0, len(dirs))
	for _, d := range dirs {
		status := Status{Name: d.name, Command: d.path, Description: "Directory", Optional: d.optional}
		switch info, err := os.Stat(d.path); {
		case strings.TrimSpace(d.path) == "":
			status.Detail = "path not configured"
		case err != nil:
			status.Detail = "directory does not exist"
		case !info.IsDir():
			status.Detail = "not a directory"
		default:
			if err := unix.Access(d.path, d.mode); err != nil {
				status.Detail = fmt.Sprintf("insufficient permissions: %v", err)
				break
			}
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the unavailable required entries.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
