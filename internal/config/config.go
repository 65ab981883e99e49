// Package config loads and rewrites the engine's configuration file
// (spec.md §6): version, organization, per-tag project mappings, and the
// optional agent mapping consumed by internal/agent. Unknown keys survive
// a load-then-save round trip; the configuration file is not the engine's
// only input, so fields it doesn't understand (added by a newer CLI, or by
// a human editing the file directly) are never discarded.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SupportedVersion is the only configuration schema version this build
// understands. spec.md §6: "the loader refuses a version it does not
// understand."
const SupportedVersion = "1"

// ProjectMapping is one tag's binding to a remote board (spec.md §6).
type ProjectMapping struct {
	ProjectNumber int               `yaml:"project_number"`
	ProjectID     string            `yaml:"project_id,omitempty"`
	SubtaskMode   string            `yaml:"subtask_mode"`
	FieldMappings map[string]string `yaml:"field_mappings,omitempty"`
	LastSync      string            `yaml:"last_sync,omitempty"`
}

// AgentIdentity names one logical agent's remote login and board option.
type AgentIdentity struct {
	Login  string `yaml:"login,omitempty"`
	Option string `yaml:"option"`
}

// AgentRule is one priority-ordered owner-resolution rule (spec.md §4.7).
// Field/Equals describes a case-insensitive equality predicate over one of
// a task's status, priority or owner fields; any other field name never
// matches.
type AgentRule struct {
	Name   string `yaml:"name"`
	Field  string `yaml:"field"`
	Equals string `yaml:"equals"`
	Agent  string `yaml:"agent"`
}

// AgentMapping configures the Agent Resolver (C7).
type AgentMapping struct {
	Identities map[string]AgentIdentity `yaml:"identities,omitempty"`
	Rules      []AgentRule              `yaml:"rules,omitempty"`
	Default    string                   `yaml:"default,omitempty"`
}

// Credential describes how to acquire a bearer token for the Remote Client
// (spec.md §6 "Credential provider"): an external helper, invoked with
// Args (none when unset), that prints the token to stdout.
type Credential struct {
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// Config is the typed view of the configuration file's known fields. path
// and raw are populated by Load and used by Save to round-trip unknown
// keys (spec.md §6: "Unknown keys are preserved on rewrite").
type Config struct {
	Version         string                    `yaml:"version"`
	Organization    string                    `yaml:"organization"`
	APIURL          string                    `yaml:"api_url,omitempty"`
	Credential      Credential                `yaml:"credential,omitempty"`
	ProjectMappings map[string]ProjectMapping `yaml:"project_mappings"`
	AgentMapping    *AgentMapping             `yaml:"agent_mapping,omitempty"`

	path string
	raw  map[string]any
}

// VersionError is a ConfigError (spec.md §7): the file names a schema
// version this build doesn't understand.
type VersionError struct {
	Found string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("config: unsupported version %q, this build understands %q", e.Found, SupportedVersion)
}

// Load reads and parses the configuration file at path. A missing file is
// not an error at this layer: callers (the CLI) decide whether an absent
// config is fatal for the command being run.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{path: path, ProjectMappings: map[string]ProjectMapping{}, raw: map[string]any{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes config file bytes without touching the filesystem, used
// directly by tests.
func Parse(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if cfg.Version != "" && cfg.Version != SupportedVersion {
		return nil, &VersionError{Found: cfg.Version}
	}
	if cfg.ProjectMappings == nil {
		cfg.ProjectMappings = map[string]ProjectMapping{}
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	cfg.path = path
	cfg.raw = raw
	return &cfg, nil
}

// SetLastSync records the tag's most recent successful sync time (RFC3339)
// both in the typed view and in the raw document, so Save preserves it
// alongside whatever unknown keys the file already carried.
func (c *Config) SetLastSync(tag, rfc3339 string) {
	pm := c.ProjectMappings[tag]
	pm.LastSync = rfc3339
	c.ProjectMappings[tag] = pm

	mappings, _ := c.raw["project_mappings"].(map[string]any)
	if mappings == nil {
		mappings = map[string]any{}
	}
	entry, _ := mappings[tag].(map[string]any)
	if entry == nil {
		entry = map[string]any{}
	}
	entry["last_sync"] = rfc3339
	mappings[tag] = entry
	c.raw["project_mappings"] = mappings
}

// Save atomically rewrites the configuration file from the raw document so
// unknown keys survive (spec.md §6). Of the typed fields, only version,
// organization and api_url are merged back here; a project mapping's
// last_sync reaches the raw document through SetLastSync, and other typed
// changes are not written. It writes to a temporary sibling file and renames, the
// same atomicity discipline as internal/state's state file.
func (c *Config) Save() error {
	c.raw["version"] = c.Version
	c.raw["organization"] = c.Organization
	if c.APIURL != "" {
		c.raw["api_url"] = c.APIURL
	}

	data, err := yaml.Marshal(c.raw)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temporary config file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit config file: %w", err)
	}
	return nil
}

// DefaultPath returns the conventional configuration file location,
// honoring XDG_CONFIG_HOME the way the teacher's loader did.
func DefaultPath(getenv func(string) string) string {
	if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "boardsync", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "boardsync", "config.yaml")
}

// AgentResolverConfig converts the configuration file's agent_mapping, if
// any, into internal/agent's rule-set shape.
func (c *Config) AgentResolverConfig() AgentRuleSet {
	if c.AgentMapping == nil {
		return AgentRuleSet{}
	}
	return AgentRuleSet{
		Identities: c.AgentMapping.Identities,
		Rules:      c.AgentMapping.Rules,
		Default:    c.AgentMapping.Default,
	}
}

// AgentRuleSet is the subset of AgentMapping callers need, kept in this
// package's own types so config does not import internal/agent; the CLI
// converts it into an agent.Config.
type AgentRuleSet struct {
	Identities map[string]AgentIdentity
	Rules      []AgentRule
	Default    string
}
