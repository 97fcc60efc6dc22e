package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "workspace:\n  root: /data/agents\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Workspace.Root != "/data/agents" {
		t.Errorf("root = %q, want /data/agents", cfg.Workspace.Root)
	}
	if cfg.Workspace.SharedRoot == "" {
		t.Error("shared_root default not applied")
	}
	if cfg.Memory.RecentLogDays != 2 {
		t.Errorf("recent_log_days = %d, want 2", cfg.Memory.RecentLogDays)
	}
	if cfg.Memory.RecallLimit != 5 {
		t.Errorf("recall_limit = %d, want 5", cfg.Memory.RecallLimit)
	}
	if cfg.Memory.ProfileMaxChars != 500 {
		t.Errorf("profile_max_chars = %d, want 500", cfg.Memory.ProfileMaxChars)
	}
	if cfg.Memory.CharsPerToken != 4.0 {
		t.Errorf("chars_per_token = %v, want 4.0", cfg.Memory.CharsPerToken)
	}
	if cfg.Index.BusyTimeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", cfg.Index.BusyTimeout)
	}
	if !cfg.Index.WALEnabled() {
		t.Error("WAL should default to enabled")
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("JAUTBOOK_TEST_ROOT", "/env/agents")

	path := writeConfig(t, "workspace:\n  root: ${JAUTBOOK_TEST_ROOT}\n  shared_root: ${JAUTBOOK_TEST_MISSING:-/fallback/shared}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workspace.Root != "/env/agents" {
		t.Errorf("root = %q, want /env/agents", cfg.Workspace.Root)
	}
	if cfg.Workspace.SharedRoot != "/fallback/shared" {
		t.Errorf("shared_root = %q, want /fallback/shared", cfg.Workspace.SharedRoot)
	}
}

func TestLoadUnresolvedVariable(t *testing.T) {
	path := writeConfig(t, "workspace:\n  root: ${JAUTBOOK_TEST_NO_SUCH_VAR}\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unresolved variable")
	} else if !strings.Contains(err.Error(), "JAUTBOOK_TEST_NO_SUCH_VAR") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWALDisable(t *testing.T) {
	path := writeConfig(t, "index:\n  wal: false\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Index.WALEnabled() {
		t.Error("wal: false should disable WAL")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg.Memory.RecallLimit = -1
	cfg.Index.BusyTimeout = -5
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"recall_limit", "busy_timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}
