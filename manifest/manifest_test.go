package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "aura.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "companion"
version = "0.3.0"
entry = "bot.aura"

[sandbox]
timeout-seconds = 5
memory-mb = 128
output-kb = 16
max-depth = 50

[compiler]
output = "bot.aurc"
cache-dir = "build/cache"
debug-info = true

[voice]
default-emotion = "warm"
default-speed = 1.2
language = "en-GB"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.Project.Name != "companion" || m.Project.Version != "0.3.0" || m.Project.Entry != "bot.aura" {
		t.Errorf("project = %+v", m.Project)
	}
	if m.Timeout() != 5*time.Second {
		t.Errorf("timeout = %v", m.Timeout())
	}
	if m.OutputLimit() != 16*1024 {
		t.Errorf("output limit = %d", m.OutputLimit())
	}
	if m.Sandbox.MaxDepth != 50 {
		t.Errorf("max depth = %d", m.Sandbox.MaxDepth)
	}
	if !m.Compiler.DebugInfo || m.Compiler.Output != "bot.aurc" {
		t.Errorf("compiler = %+v", m.Compiler)
	}
	if m.Voice.DefaultEmotion != "warm" || m.Voice.DefaultSpeed != 1.2 || m.Voice.Language != "en-GB" {
		t.Errorf("voice = %+v", m.Voice)
	}

	want, _ := filepath.Abs(dir)
	if m.Dir != want {
		t.Errorf("dir = %q, want %q", m.Dir, want)
	}
	if m.EntryPath() != filepath.Join(want, "bot.aura") {
		t.Errorf("entry path = %q", m.EntryPath())
	}
	if m.CacheDir() != filepath.Join(want, "build", "cache") {
		t.Errorf("cache dir = %q", m.CacheDir())
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project]\nname = \"minimal\"\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.Timeout() != DefaultTimeout {
		t.Errorf("timeout = %v", m.Timeout())
	}
	if m.Sandbox.MemoryMB != DefaultMemoryMB {
		t.Errorf("memory = %d", m.Sandbox.MemoryMB)
	}
	if m.OutputLimit() != DefaultOutputBytes {
		t.Errorf("output limit = %d", m.OutputLimit())
	}
	if m.Project.Entry != "main.aura" {
		t.Errorf("entry = %q", m.Project.Entry)
	}
	if m.Voice.DefaultEmotion != "neutral" || m.Voice.DefaultSpeed != 1.0 {
		t.Errorf("voice = %+v", m.Voice)
	}
	if m.CacheDir() != filepath.Join(m.Dir, ".aura", "cache") {
		t.Errorf("cache dir = %q", m.CacheDir())
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("missing aura.toml loaded without error")
	}

	dir := t.TempDir()
	writeManifest(t, dir, "[project\nname =")
	if _, err := Load(dir); err == nil {
		t.Error("malformed aura.toml loaded without error")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"nested\"\n")

	sub := filepath.Join(root, "scripts", "deep")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil {
		t.Fatal("manifest not found from nested directory")
	}
	if m.Project.Name != "nested" {
		t.Errorf("name = %q", m.Project.Name)
	}
	wantDir, _ := filepath.Abs(root)
	if m.Dir != wantDir {
		t.Errorf("dir = %q, want %q", m.Dir, wantDir)
	}
}

func TestFindAndLoadMissing(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Errorf("found unexpected manifest %+v", m)
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if m.Timeout() != DefaultTimeout || m.Project.Entry != "main.aura" {
		t.Errorf("defaults = %+v", m)
	}
	if m.Dir != "" {
		t.Errorf("dir = %q", m.Dir)
	}
}
