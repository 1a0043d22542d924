// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	// Empty project dir with no config file anywhere: defaults apply.
	SetConfigDirOverride(t.TempDir())
	t.Cleanup(Reset)

	cfg, path, err := LoadWithPath(context.Background(), LoadOptions{ProjectDir: t.TempDir()})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty (defaults)", path)
	}
	if cfg.Python != "3.10" {
		t.Errorf("Python = %q, want 3.10", cfg.Python)
	}
	if cfg.Channel != "conda-forge" {
		t.Errorf("Channel = %q, want conda-forge", cfg.Channel)
	}
	if len(cfg.Assets) != 3 {
		t.Errorf("len(Assets) = %d, want 3", len(cfg.Assets))
	}
}

func TestLoad_ProjectFile(t *testing.T) {
	SetConfigDirOverride(t.TempDir())
	t.Cleanup(Reset)

	projectDir := t.TempDir()
	content := `
python:  "3.11"
channel: "bioconda"
build: {
	force_rebuild: true
}
`
	cfgPath := filepath.Join(projectDir, "interlacer.cue")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := LoadWithPath(context.Background(), LoadOptions{ProjectDir: projectDir})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if path != cfgPath {
		t.Errorf("resolved path = %q, want %q", path, cfgPath)
	}
	if cfg.Python != "3.11" {
		t.Errorf("Python = %q, want 3.11", cfg.Python)
	}
	if cfg.Channel != "bioconda" {
		t.Errorf("Channel = %q, want bioconda", cfg.Channel)
	}
	if !cfg.Build.ForceRebuild {
		t.Error("Build.ForceRebuild = false, want true")
	}
	// Unset fields keep defaults.
	if cfg.EnvName != "interlacer" {
		t.Errorf("EnvName = %q, want interlacer (default)", cfg.EnvName)
	}
}

func TestLoad_SchemaViolation(t *testing.T) {
	SetConfigDirOverride(t.TempDir())
	t.Cleanup(Reset)

	projectDir := t.TempDir()
	content := `engine: "lxc"` + "\n"
	if err := os.WriteFile(filepath.Join(projectDir, "interlacer.cue"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := LoadWithPath(context.Background(), LoadOptions{ProjectDir: projectDir})
	if err == nil {
		t.Fatal("LoadWithPath() expected error for schema violation")
	}
	if !errors.Is(err, ErrParse) {
		t.Errorf("error %v does not wrap ErrParse", err)
	}
}

func TestLoad_SyntaxError(t *testing.T) {
	SetConfigDirOverride(t.TempDir())
	t.Cleanup(Reset)

	projectDir := t.TempDir()
	cfgPath := filepath.Join(projectDir, "interlacer.cue")
	if err := os.WriteFile(cfgPath, []byte(`python: "3.11`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := LoadWithPath(context.Background(), LoadOptions{ProjectDir: projectDir})
	if err == nil {
		t.Fatal("LoadWithPath() expected error for malformed CUE")
	}
	// Parse failures must name the offending file.
	if !strings.Contains(err.Error(), cfgPath) {
		t.Errorf("error %q does not name %q", err, cfgPath)
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, _, err := LoadWithPath(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue"),
	})
	if err == nil {
		t.Fatal("LoadWithPath() expected error for missing explicit config")
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := LoadWithPath(ctx, LoadOptions{ProjectDir: t.TempDir()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("LoadWithPath() error = %v, want context.Canceled", err)
	}
}

func TestProvider_Load(t *testing.T) {
	SetConfigDirOverride(t.TempDir())
	t.Cleanup(Reset)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ProjectDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Images.Base != "interlacer-base" {
		t.Errorf("Images.Base = %q", cfg.Images.Base)
	}
}
