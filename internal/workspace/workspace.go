// Package workspace manages the on-disk layout of agent memory: per-agent
// directories holding the core memory document, daily logs, and entity
// knowledge files, plus the process-wide search index location.
package workspace

import (
	"os"
	"path/filepath"
	"strings"
)

// Workspace represents the agent memory directory structure.
// It provides path helpers and ensures the required subdirectories exist.
//
// Layout:
//
//	<Root>/<agent>/memory.md          core memory document
//	<Root>/<agent>/memory/<date>.md   daily logs
//	<Root>/<agent>/entities/<name>.md entity knowledge
//	<Root>/.memory/index.sqlite       derived full-text index (all agents)
type Workspace struct {
	Root string

	// IndexPath overrides the default index location when non-empty.
	IndexPath string
}

// New creates a Workspace rooted at the given directory.
func New(root string) *Workspace {
	return &Workspace{Root: root}
}

// AgentDir returns the root directory for the given agent.
func (w *Workspace) AgentDir(agent string) string {
	return filepath.Join(w.Root, SafeName(agent))
}

// CoreMemoryPath returns the path to the agent's core memory document.
func (w *Workspace) CoreMemoryPath(agent string) string {
	return filepath.Join(w.AgentDir(agent), "memory.md")
}

// LogsDir returns the directory holding the agent's daily log documents.
func (w *Workspace) LogsDir(agent string) string {
	return filepath.Join(w.AgentDir(agent), "memory")
}

// LogPath returns the path to the daily log document for the given
// ISO calendar date (YYYY-MM-DD).
func (w *Workspace) LogPath(agent, date string) string {
	return filepath.Join(w.LogsDir(agent), date+".md")
}

// EntitiesDir returns the directory holding the agent's entity documents.
func (w *Workspace) EntitiesDir(agent string) string {
	return filepath.Join(w.AgentDir(agent), "entities")
}

// EntityPath returns the path to the knowledge document for the named entity.
func (w *Workspace) EntityPath(agent, entity string) string {
	return filepath.Join(w.EntitiesDir(agent), SafeName(entity)+".md")
}

// IndexFile returns the path to the shared full-text index database.
func (w *Workspace) IndexFile() string {
	if w.IndexPath != "" {
		return w.IndexPath
	}
	return filepath.Join(w.Root, ".memory", "index.sqlite")
}

// EnsureAgent creates the directory tree for the given agent if it does
// not exist. Idempotent, safe to call on every write.
func (w *Workspace) EnsureAgent(agent string) error {
	dirs := []string{
		w.AgentDir(agent),
		w.LogsDir(agent),
		w.EntitiesDir(agent),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// SafeName maps arbitrary caller-supplied names (agent identifiers, entity
// names) to a string safe to use as a single path element. Separators and
// other filesystem-significant characters are replaced, never interpreted.
func SafeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == 0:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "_"
	}
	return out
}
