package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Trace.Seccomp != "auto" {
		t.Errorf("Seccomp = %q, want auto", cfg.Trace.Seccomp)
	}
	if !cfg.Trace.FollowForks {
		t.Error("FollowForks should default on")
	}
	if !cfg.Trace.DiffEnv {
		t.Error("DiffEnv should default on")
	}
	if cfg.Trace.MaxArgs != 1024 || cfg.Trace.MaxEnv != 1024 {
		t.Errorf("caps = %d/%d, want 1024/1024", cfg.Trace.MaxArgs, cfg.Trace.MaxEnv)
	}
	if cfg.Log.RetentionDays != 14 {
		t.Errorf("RetentionDays = %d, want 14", cfg.Log.RetentionDays)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".exectrace")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	yaml := "trace:\n  seccomp: \"off\"\n  max_args: 64\nlog:\n  retention_days: 3\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Trace.Seccomp != "off" {
		t.Errorf("Seccomp = %q, want off", cfg.Trace.Seccomp)
	}
	if cfg.Trace.MaxArgs != 64 {
		t.Errorf("MaxArgs = %d, want 64", cfg.Trace.MaxArgs)
	}
	if cfg.Log.RetentionDays != 3 {
		t.Errorf("RetentionDays = %d, want 3", cfg.Log.RetentionDays)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Trace.Seccomp != "auto" {
		t.Errorf("Seccomp = %q, want default auto", cfg.Trace.Seccomp)
	}
}

func TestLoadMalformedFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".exectrace")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{not yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not fail on malformed config, got %v", err)
	}
	if cfg.Trace.MaxArgs != 1024 {
		t.Errorf("MaxArgs = %d, want default 1024", cfg.Trace.MaxArgs)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("EXECTRACE_SECCOMP", "off")
	t.Setenv("EXECTRACE_LOG_RETENTION_DAYS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Trace.Seccomp != "off" {
		t.Errorf("Seccomp = %q, want env override off", cfg.Trace.Seccomp)
	}
	if cfg.Log.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want env override 30", cfg.Log.RetentionDays)
	}
}

func TestDirFallsBackToRelative(t *testing.T) {
	// Dir never fails; with HOME set it lives under it.
	home := t.TempDir()
	t.Setenv("HOME", home)
	if got := Dir(); got != filepath.Join(home, ".exectrace") {
		t.Errorf("Dir() = %q", got)
	}
}
