package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/testsupport"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Errorf("output should name the target path:\n%s", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "media_dirs") {
		t.Errorf("sample config missing media_dirs:\n%s", data)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# existing"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatalf("config init should refuse to overwrite without --overwrite")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowReportsEffectiveValues(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "media")
	if err := os.MkdirAll(media, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	target := filepath.Join(dir, "config.toml")
	content := "[paths]\nmedia_dirs = [\"" + media + "\"]\n"
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := runCommand(t, "--config", target, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{media, "Bind address: 0.0.0.0:8000", "Probe slots: 10"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInstanceLockLivesOutsideCacheDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	lockPath := instanceLockPath(cfg)
	if filepath.Dir(lockPath) != filepath.Dir(cfg.Paths.DBPath) {
		t.Errorf("lock %s should sit beside the database %s", lockPath, cfg.Paths.DBPath)
	}
	rel, err := filepath.Rel(cfg.Paths.CacheDir, lockPath)
	if err == nil && !strings.HasPrefix(rel, "..") {
		t.Errorf("lock %s must not live inside the cache directory %s, where the eviction sweep would delete it", lockPath, cfg.Paths.CacheDir)
	}
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := runCommand(t)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	for _, want := range []string{"serve", "config"} {
		if !strings.Contains(out, want) {
			t.Errorf("help missing %q:\n%s", want, out)
		}
	}
}
