// Package config loads global exectrace settings from
// ~/.exectrace/config.yaml with environment-variable overrides. A
// missing or malformed file falls back to defaults; configuration is
// never a reason to refuse to trace.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds global settings from ~/.exectrace/config.yaml.
type Config struct {
	Log   LogConfig   `yaml:"log"`
	Trace TraceConfig `yaml:"trace"`
}

// LogConfig holds debug logging settings.
type LogConfig struct {
	// RetentionDays is how long daily debug logs are kept.
	RetentionDays int `yaml:"retention_days"`
}

// TraceConfig holds tracing defaults, each overridable per run by a
// command-line flag.
type TraceConfig struct {
	// Seccomp selects the fast-path filter mode: auto, on or off.
	Seccomp string `yaml:"seccomp"`
	// FollowForks traces descendants of the root command.
	FollowForks bool `yaml:"follow_forks"`
	// DiffEnv reports environments as a diff against the baseline
	// instead of printing them in full.
	DiffEnv bool `yaml:"diff_env"`
	// DecodeErrno renders failed exec results as errno names.
	DecodeErrno bool `yaml:"decode_errno"`
	// MaxArgs and MaxEnv cap how many argv/envp entries are decoded
	// per exec.
	MaxArgs int `yaml:"max_args"`
	MaxEnv  int `yaml:"max_env"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			RetentionDays: 14,
		},
		Trace: TraceConfig{
			Seccomp:     "auto",
			FollowForks: true,
			DiffEnv:     true,
			DecodeErrno: true,
			MaxArgs:     1024,
			MaxEnv:      1024,
		},
	}
}

// Load reads ~/.exectrace/config.yaml and applies environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".exectrace", "config.yaml")
		if data, err := os.ReadFile(configPath); err == nil {
			_ = yaml.Unmarshal(data, cfg) // Ignore unmarshal errors, use defaults
		}
	}

	if v := os.Getenv("EXECTRACE_SECCOMP"); v != "" {
		cfg.Trace.Seccomp = v
	}
	if v := os.Getenv("EXECTRACE_LOG_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.Log.RetentionDays = days
		}
	}

	return cfg, nil
}

// Dir returns the path to ~/.exectrace.
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".exectrace")
	}
	return filepath.Join(homeDir, ".exectrace")
}

// DebugLogDir returns the directory for daily debug logs.
func DebugLogDir() string {
	return filepath.Join(Dir(), "logs")
}

// SessionDBPath returns the sqlite database path for recorded sessions.
func SessionDBPath() string {
	return filepath.Join(Dir(), "sessions.db")
}
