// Package manifest handles aura.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Default sandbox limits applied when aura.toml leaves them unset.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMemoryMB    = 512
	DefaultOutputBytes = 100 * 1024
)

// Manifest represents an aura.toml project configuration.
type Manifest struct {
	Project  Project        `toml:"project"`
	Sandbox  Sandbox        `toml:"sandbox"`
	Compiler CompilerConfig `toml:"compiler"`
	Voice    Voice          `toml:"voice"`

	// Dir is the directory containing the aura.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Entry   string `toml:"entry"`
}

// Sandbox bounds what a running script may consume.
type Sandbox struct {
	TimeoutSeconds int `toml:"timeout-seconds"`
	MemoryMB       int `toml:"memory-mb"`
	OutputKB       int `toml:"output-kb"`
	MaxDepth       int `toml:"max-depth"`
}

// CompilerConfig configures compiled output.
type CompilerConfig struct {
	Output    string `toml:"output"`
	CacheDir  string `toml:"cache-dir"`
	NoCache   bool   `toml:"no-cache"`
	DebugInfo bool   `toml:"debug-info"`
}

// Voice configures the speech capabilities handed to scripts.
type Voice struct {
	DefaultEmotion string  `toml:"default-emotion"`
	DefaultSpeed   float64 `toml:"default-speed"`
	Language       string  `toml:"language"`
}

// Load parses an aura.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "aura.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find an aura.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "aura.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Default returns the configuration used when no aura.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Sandbox.TimeoutSeconds <= 0 {
		m.Sandbox.TimeoutSeconds = int(DefaultTimeout / time.Second)
	}
	if m.Sandbox.MemoryMB <= 0 {
		m.Sandbox.MemoryMB = DefaultMemoryMB
	}
	if m.Sandbox.OutputKB <= 0 {
		m.Sandbox.OutputKB = DefaultOutputBytes / 1024
	}
	if m.Voice.DefaultSpeed == 0 {
		m.Voice.DefaultSpeed = 1.0
	}
	if m.Voice.DefaultEmotion == "" {
		m.Voice.DefaultEmotion = "neutral"
	}
	if m.Project.Entry == "" {
		m.Project.Entry = "main.aura"
	}
}

// Timeout returns the sandbox timeout as a duration.
func (m *Manifest) Timeout() time.Duration {
	return time.Duration(m.Sandbox.TimeoutSeconds) * time.Second
}

// OutputLimit returns the output cap in bytes.
func (m *Manifest) OutputLimit() int {
	return m.Sandbox.OutputKB * 1024
}

// CacheDir returns the directory holding compiled program caches.
func (m *Manifest) CacheDir() string {
	if m.Compiler.CacheDir != "" {
		if filepath.IsAbs(m.Compiler.CacheDir) {
			return m.Compiler.CacheDir
		}
		return filepath.Join(m.Dir, m.Compiler.CacheDir)
	}
	return filepath.Join(m.Dir, ".aura", "cache")
}

// EntryPath returns the absolute path of the entry script.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.Dir, m.Project.Entry)
}
