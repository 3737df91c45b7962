package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Execution.DefaultEntry != "0x8000" {
		t.Errorf("Expected DefaultEntry=0x8000, got %s", cfg.Execution.DefaultEntry)
	}
	if cfg.Execution.Mode != "basic" {
		t.Errorf("Expected Mode=basic, got %s", cfg.Execution.Mode)
	}

	if !cfg.Segmentation.Enabled {
		t.Error("Expected Segmentation.Enabled=true")
	}
	if cfg.Segmentation.CheckCadence != 1000 {
		t.Errorf("Expected CheckCadence=1000, got %d", cfg.Segmentation.CheckCadence)
	}
	if cfg.Segmentation.MaxTraceHeight != (1<<23)-10000 {
		t.Errorf("Expected MaxTraceHeight=%d, got %d", (1<<23)-10000, cfg.Segmentation.MaxTraceHeight)
	}

	if cfg.Build.Assembler != "nasm" {
		t.Errorf("Expected Assembler=nasm, got %s", cfg.Build.Assembler)
	}
	if cfg.Build.CCompiler != "cc" {
		t.Errorf("Expected CCompiler=cc, got %s", cfg.Build.CCompiler)
	}

	if cfg.Display.NumberFormat != "hex" {
		t.Errorf("Expected NumberFormat=hex, got %s", cfg.Display.NumberFormat)
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()

	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}
	if filepath.Base(path) != "config.toml" {
		t.Errorf("Expected path to end with config.toml, got %s", path)
	}

	switch runtime.GOOS {
	case "windows":
		if !filepath.IsAbs(path) && path != "config.toml" {
			t.Errorf("Expected absolute path on Windows, got %s", path)
		}
	case "darwin", "linux":
		dir := filepath.Dir(path)
		if filepath.Base(dir) != "rv32aot" && path != "config.toml" {
			t.Errorf("Expected path in rv32aot directory or fallback, got %s", path)
		}
	}
}

func TestGetLogPath(t *testing.T) {
	path := GetLogPath()

	if path == "" {
		t.Error("GetLogPath returned empty string")
	}

	switch runtime.GOOS {
	case "windows":
		if !filepath.IsAbs(path) && path != "logs" {
			t.Errorf("Expected absolute path on Windows, got %s", path)
		}
	case "darwin", "linux":
		if filepath.Base(path) != "logs" {
			t.Errorf("Expected path to end with logs, got %s", path)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.Execution.MaxInstructions = 5_000_000
	cfg.Execution.Mode = "aot"
	cfg.Segmentation.CheckCadence = 500
	cfg.Display.ColorOutput = false
	cfg.Build.Assembler = "/opt/nasm/bin/nasm"

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Execution.MaxInstructions != 5_000_000 {
		t.Errorf("Expected MaxInstructions=5000000, got %d", loaded.Execution.MaxInstructions)
	}
	if loaded.Execution.Mode != "aot" {
		t.Errorf("Expected Mode=aot, got %s", loaded.Execution.Mode)
	}
	if loaded.Segmentation.CheckCadence != 500 {
		t.Errorf("Expected CheckCadence=500, got %d", loaded.Segmentation.CheckCadence)
	}
	if loaded.Display.ColorOutput {
		t.Error("Expected ColorOutput=false")
	}
	if loaded.Build.Assembler != "/opt/nasm/bin/nasm" {
		t.Errorf("Expected Assembler=/opt/nasm/bin/nasm, got %s", loaded.Build.Assembler)
	}
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom should not error on non-existent file: %v", err)
	}

	if cfg.Execution.Mode != "basic" {
		t.Error("Expected default config when file doesn't exist")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.toml")

	invalidTOML := `
[execution]
max_instructions = "not a number"  # Invalid: should be uint64
`
	if err := os.WriteFile(configPath, []byte(invalidTOML), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	_, err := LoadFrom(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid TOML")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "subdir1", "subdir2", "config.toml")

	cfg := DefaultConfig()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	dir := filepath.Dir(configPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("Parent directories were not created")
	}
}
