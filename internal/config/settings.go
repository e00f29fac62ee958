package config

//go:generate go run ../../cmd/genconfig

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/lspcord/internal/atomicfile"
	"tools.zach/dev/lspcord/internal/paths"
)

// ///////////////////////////////////////////////
// Settings Types
// ///////////////////////////////////////////////

// Settings is the daemon settings file, <data-dir>/config.toml.
type Settings struct {
	// Log holds logging settings.
	Log LogSettings `toml:"log"`
	// Update holds release check settings.
	Update UpdateSettings `toml:"update"`
	// Git holds repository inspection settings.
	Git GitSettings `toml:"git"`
}

// LogSettings holds logging settings.
type LogSettings struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// Output is "file" for the rotating log in the data directory or
	// "stderr". stdout carries the editor protocol and is never used.
	Output string `toml:"output"`
	// MaxSizeMB is the log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// UpdateSettings holds release check settings.
type UpdateSettings struct {
	// Check enables the startup lookup of the latest release.
	Check bool `toml:"check"`
}

// GitSettings holds repository inspection settings.
type GitSettings struct {
	// WatchHead refreshes the branch when .git/HEAD changes.
	WatchHead bool `toml:"watch_head"`
}

// DefaultSettings returns the settings used when config.toml is absent.
func DefaultSettings() *Settings {
	return &Settings{
		Log: LogSettings{
			Level:     "info",
			Output:    "file",
			MaxSizeMB: 10,
		},
		Update: UpdateSettings{Check: true},
		Git:    GitSettings{WatchHead: true},
	}
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// SeedSettings writes defaultTOML to the settings path when no settings
// file exists yet. It reports whether a file was written.
func SeedSettings(dir paths.DataDir, defaultTOML []byte) (bool, error) {
	if _, err := os.Stat(dir.Config()); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat settings: %w", err)
	}
	if err := atomicfile.Write(dir.Config(), defaultTOML, 0o644); err != nil {
		return false, fmt.Errorf("seed settings: %w", err)
	}
	return true, nil
}

// LoadSettings reads and validates the settings file. A missing file
// yields [DefaultSettings]; keys absent from the file keep their defaults.
func LoadSettings(dir paths.DataDir) (*Settings, error) {
	data, err := os.ReadFile(dir.Config())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	s := DefaultSettings()
	if err := toml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}
	return s, nil
}

// Save writes the settings as TOML using an atomic file write.
func (s *Settings) Save(path string) error {
	return atomicfile.WriteFunc(path, 0o644, func(w io.Writer) error {
		if err := toml.NewEncoder(w).Encode(s); err != nil {
			return fmt.Errorf("encoding settings: %w", err)
		}
		return nil
	})
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all settings are within acceptable ranges.
func (s *Settings) Validate() error {
	if !validLogLevels[strings.ToLower(s.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", s.Log.Level)
	}
	switch s.Log.Output {
	case "file", "stderr":
	default:
		return fmt.Errorf("invalid log.output %q: must be file or stderr", s.Log.Output)
	}
	if s.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", s.Log.MaxSizeMB)
	}
	return nil
}
