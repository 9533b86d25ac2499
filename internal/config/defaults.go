package config

const (
	defaultSourceDir      = "/media/camera/DCIM"
	defaultArchiveDir     = "~/Pictures/archive"
	defaultTempDir        = "~/.cache/camerasync/tmp"
	defaultOutputDir      = "~/Pictures/processed"
	defaultDatabase       = "~/.local/share/camerasync/camerasync.db"
	defaultLogDir         = "~/.local/share/camerasync/logs"
	defaultOutputFormat   = "jpg"
	defaultHDRSuffix      = "hdr"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultTonemapOpacity = 100
	defaultSettleSeconds  = 3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SourceDir:  defaultSourceDir,
			ArchiveDir: defaultArchiveDir,
			TempDir:    defaultTempDir,
			OutputDir:  defaultOutputDir,
			Database:   defaultDatabase,
			LogDir:     defaultLogDir,
		},
		FileTypes: FileTypes{
			Raw:   []string{"cr2", "nef", "arw"},
			Image: []string{"jpg", "jpeg"},
		},
		Output: Output{
			Format:    defaultOutputFormat,
			HDRSuffix: defaultHDRSuffix,
		},
		Tools: Tools{
			Converter: Tool{
				Binary: "ufraw-batch",
				Args:   []string{"--out-type=tiff", "--out-depth=16", "--overwrite"},
			},
			ExifTool: Tool{Binary: "exiftool"},
			Aligner:  Tool{Binary: "align_image_stack", Args: []string{"-i"}},
			PfsIn:    Tool{Binary: "pfsin"},
			PfsGamma: Tool{Binary: "pfsgamma"},
			PfsOut:   Tool{Binary: "pfsout"},
			Blender:  Tool{Binary: "convert"},
			Encoder:  Tool{Binary: "convert", Args: []string{"-quality", "95"}},
		},
		Tonemaps: []Tonemap{
			{Name: "mantiuk06", Opacity: percent(60)},
			{Name: "fattal02", Opacity: percent(40), Gamma: "0.8"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Watch: Watch{
			SettleSeconds: defaultSettleSeconds,
		},
	}
}

func percent(v float64) *float64 {
	return &v
}
