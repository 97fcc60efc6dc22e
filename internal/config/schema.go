// Package config handles YAML configuration loading, environment variable
// expansion, and validation for the agent memory system.
package config

import (
	"os"
	"path/filepath"
)

// Config is the top-level configuration structure.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Memory    MemoryConfig    `yaml:"memory"`
	Index     IndexConfig     `yaml:"index"`
}

// WorkspaceConfig locates the on-disk document roots.
type WorkspaceConfig struct {
	// Root holds the per-agent directories. Defaults to ~/.jautbook/agents.
	Root string `yaml:"root"`

	// SharedRoot holds the platform-wide shared memory documents.
	// Defaults to ~/.jautbook/shared_memory.
	SharedRoot string `yaml:"shared_root"`
}

// MemoryConfig tunes retrieval and context assembly.
type MemoryConfig struct {
	// RecentLogDays is how many trailing daily logs context assembly includes.
	RecentLogDays int `yaml:"recent_log_days"`

	// RecallLimit caps topic-relevant memories per assembly.
	RecallLimit int `yaml:"recall_limit"`

	// ParticipantLimit caps memories per participant.
	ParticipantLimit int `yaml:"participant_limit"`

	// ProfileMaxChars truncates participant profile documents.
	ProfileMaxChars int `yaml:"profile_max_chars"`

	// ContextBudget is the approximate token budget for assembled context.
	ContextBudget int `yaml:"context_budget"`

	// CharsPerToken feeds the size estimator. Defaults to 4.
	CharsPerToken float64 `yaml:"chars_per_token"`
}

// IndexConfig tunes the SQLite fact index.
type IndexConfig struct {
	// Path is the index database file. Defaults to <workspace.root>/.memory/index.sqlite.
	Path string `yaml:"path"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Workspace.Root == "" {
		c.Workspace.Root = filepath.Join(homeDir(), ".jautbook", "agents")
	}
	if c.Workspace.SharedRoot == "" {
		c.Workspace.SharedRoot = filepath.Join(homeDir(), ".jautbook", "shared_memory")
	}
	if c.Memory.RecentLogDays == 0 {
		c.Memory.RecentLogDays = 2
	}
	if c.Memory.RecallLimit == 0 {
		c.Memory.RecallLimit = 5
	}
	if c.Memory.ParticipantLimit == 0 {
		c.Memory.ParticipantLimit = 3
	}
	if c.Memory.ProfileMaxChars == 0 {
		c.Memory.ProfileMaxChars = 500
	}
	if c.Memory.ContextBudget == 0 {
		c.Memory.ContextBudget = 2000
	}
	if c.Memory.CharsPerToken == 0 {
		c.Memory.CharsPerToken = 4.0
	}
	if c.Index.BusyTimeout == 0 {
		c.Index.BusyTimeout = 5000
	}
}

// WALEnabled reports whether WAL mode is on (the default).
func (c *IndexConfig) WALEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
