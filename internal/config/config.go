// Package config handles tool configuration loading and management.
package config

import "time"

// Config holds all tool settings.
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Render  EngineConfig  `yaml:"render"`
	Stitch  StitchConfig  `yaml:"stitch"`
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig holds the working directories the tools create and write to.
type PathsConfig struct {
	OutputDir string `yaml:"output_dir"` // rendered images and config snapshots
	TempDir   string `yaml:"temp_dir"`   // normalized intermediate meshes
	StitchDir string `yaml:"stitch_dir"` // stitched PDFs
}

// EngineConfig holds the external renderer settings.
type EngineConfig struct {
	// Command is the renderer command line. {script} expands to the driver
	// script path and {job} to the job file path.
	Command string `yaml:"command"`
	// DriverScript overrides the embedded driver script when set.
	DriverScript string        `yaml:"driver_script"`
	Resolution   int           `yaml:"resolution"`
	Samples      int           `yaml:"samples"`
	Timeout      time.Duration `yaml:"timeout"` // 0 waits indefinitely
}

// StitchConfig holds image stitching settings.
type StitchConfig struct {
	Quality   string `yaml:"quality"`    // high, medium or low
	CellWidth int    `yaml:"cell_width"` // 0 keeps source size
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			OutputDir: "output_images",
			TempDir:   "temp_obj",
			StitchDir: "stitched_results",
		},
		Render: EngineConfig{
			Command:    "blender --background --python {script} -- {job}",
			Resolution: 1440,
			Samples:    200,
		},
		Stitch: StitchConfig{
			Quality: "medium",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
