// Package config loads and saves this core's TOML configuration: execution
// defaults, segmentation limits, the external build toolchain, and the
// segment-viewer display settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is the full configuration surface for a run of this core.
type Config struct {
	// Execution settings
	Execution struct {
		MaxInstructions uint64 `toml:"max_instructions"`
		DefaultEntry    string `toml:"default_entry"` // hex, e.g. "0x8000"
		NumPublicValues int    `toml:"num_public_values"`
		Seed            uint64 `toml:"seed"`
		Mode            string `toml:"mode"` // basic, metered, aot, consistency
	} `toml:"execution"`

	// Segmentation settings
	Segmentation struct {
		Enabled         bool   `toml:"enabled"`
		MaxTraceHeight  uint64 `toml:"max_trace_height"`
		MaxCells        uint64 `toml:"max_cells"`
		MaxInteractions uint64 `toml:"max_interactions"`
		CheckCadence    uint64 `toml:"check_cadence_insns"`
	} `toml:"segmentation"`

	// Build settings: the external NASM assembler and C compiler the AOT
	// runtime shells out to.
	Build struct {
		Assembler     string `toml:"assembler"` // e.g. "nasm"
		ObjFormat     string `toml:"obj_format"` // e.g. "elf64", "macho64"
		CCompiler     string `toml:"c_compiler"` // e.g. "cc"
		OutputDir     string `toml:"output_dir"` // not read: builds always use a fresh temp directory
		KeepArtifacts bool   `toml:"keep_artifacts"`
	} `toml:"build"`

	// Trace settings. They are loaded and saved with the file, but no
	// component of this core reads them or writes execution traces.
	Trace struct {
		OutputFile string `toml:"output_file"`
		MaxEntries int    `toml:"max_entries"`
	} `toml:"trace"`

	// Display settings. They are loaded and saved with the file;
	// cmd/segviewer does not read the config and ignores them.
	Display struct {
		ColorOutput  bool   `toml:"color_output"`
		NumberFormat string `toml:"number_format"` // hex, dec
	} `toml:"display"`
}

// DefaultConfig returns a Config populated with this core's defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Execution.MaxInstructions = 0 // 0 == unbounded
	cfg.Execution.DefaultEntry = "0x8000"
	cfg.Execution.NumPublicValues = 0
	cfg.Execution.Seed = 0
	cfg.Execution.Mode = "basic"

	cfg.Segmentation.Enabled = true
	cfg.Segmentation.MaxTraceHeight = (1 << 23) - 10000
	cfg.Segmentation.MaxCells = 2_000_000_000
	cfg.Segmentation.MaxInteractions = (1 << 31) - (1 << 27) + 1
	cfg.Segmentation.CheckCadence = 1000

	cfg.Build.Assembler = "nasm"
	cfg.Build.ObjFormat = defaultObjFormat()
	cfg.Build.CCompiler = "cc"
	cfg.Build.OutputDir = ""
	cfg.Build.KeepArtifacts = false

	cfg.Trace.OutputFile = "trace.log"
	cfg.Trace.MaxEntries = 100000

	cfg.Display.ColorOutput = true
	cfg.Display.NumberFormat = "hex"

	return cfg
}

// defaultObjFormat returns the NASM output-format flag matching the host
// platform: "elf64" on Linux, "macho64" on Darwin.
func defaultObjFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "macho64"
	default:
		return "elf64"
	}
}

// GetConfigPath returns the platform-specific config file path
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: %APPDATA%\rv32aot\config.toml
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "rv32aot")

	case "darwin", "linux":
		// macOS/Linux: ~/.config/rv32aot/config.toml
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// Fallback to current directory
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "rv32aot")

	default:
		// Unknown platform: use current directory
		return "config.toml"
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0750); err != nil {
		// If we can't create the directory, fall back to current directory
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// GetLogPath returns the platform-specific log directory path
func GetLogPath() string {
	var logDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: %APPDATA%\rv32aot\logs
		logDir = os.Getenv("APPDATA")
		if logDir == "" {
			logDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		logDir = filepath.Join(logDir, "rv32aot", "logs")

	case "darwin", "linux":
		// macOS/Linux: ~/.local/share/rv32aot/logs
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "logs"
		}
		logDir = filepath.Join(homeDir, ".local", "share", "rv32aot", "logs")

	default:
		return "logs"
	}

	// Ensure directory exists
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "logs"
	}

	return logDir
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read and parse config file
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	// Create file
	f, err := os.Create(path) // #nosec G304 -- user-supplied config file path
	if err != nil {
		return fmt.Errorf("config: failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("config: failed to close %s: %w", path, closeErr)
		}
	}()

	// Encode to TOML
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("config: failed to encode: %w", err)
	}

	return nil
}
