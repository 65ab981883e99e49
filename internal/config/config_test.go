package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseBasic(t *testing.T) {
	t.Parallel()
	data := []byte(`
version: "1"
organization: acme
project_mappings:
  main:
    project_number: 7
    subtask_mode: nested
`)
	cfg, err := Parse(data, "/tmp/config.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Organization != "acme" {
		t.Errorf("Organization = %q, want acme", cfg.Organization)
	}
	pm, ok := cfg.ProjectMappings["main"]
	if !ok {
		t.Fatal("project_mappings[main] missing")
	}
	if pm.ProjectNumber != 7 || pm.SubtaskMode != "nested" {
		t.Errorf("unexpected mapping: %+v", pm)
	}
}

func TestParseUnsupportedVersion(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte(`version: "99"`), "/tmp/config.yaml")
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
	if !strings.Contains(err.Error(), "99") {
		t.Errorf("error %v doesn't mention found version", err)
	}
}

func TestLoadMissingFileIsNotError(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProjectMappings == nil {
		t.Error("ProjectMappings should be initialized, not nil")
	}
}

func TestSavePreservesUnknownKeys(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
version: "1"
organization: acme
project_mappings:
  main:
    project_number: 7
    subtask_mode: nested
    future_knob: keep-me
future_top_level: also-keep-me
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg.SetLastSync("main", "2026-07-29T00:00:00Z")
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rewritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(rewritten)
	for _, want := range []string{"future_knob: keep-me", "future_top_level: also-keep-me", "last_sync"} {
		if !strings.Contains(text, want) {
			t.Errorf("rewritten config missing %q:\n%s", want, text)
		}
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ProjectMappings["main"].LastSync != "2026-07-29T00:00:00Z" {
		t.Errorf("LastSync not persisted: %+v", reloaded.ProjectMappings["main"])
	}
}

func TestAgentResolverConfig(t *testing.T) {
	t.Parallel()
	data := []byte(`
version: "1"
organization: acme
project_mappings: {}
agent_mapping:
  identities:
    claude:
      login: claude-bot
      option: Claude
  rules:
    - name: docs-owner
      field: title
      equals: README
      agent: claude
  default: claude
`)
	cfg, err := Parse(data, "/tmp/config.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rs := cfg.AgentResolverConfig()
	if rs.Default != "claude" {
		t.Errorf("Default = %q, want claude", rs.Default)
	}
	if len(rs.Rules) != 1 || rs.Rules[0].Agent != "claude" {
		t.Errorf("unexpected rules: %+v", rs.Rules)
	}
	if rs.Identities["claude"].Option != "Claude" {
		t.Errorf("identity option = %q, want Claude", rs.Identities["claude"].Option)
	}
}
