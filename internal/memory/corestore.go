package memory

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lanefiedler731-gif/JautBook/internal/workspace"
)

// CoreMemoryStore manages the curated, always-loaded core memory document
// per agent. Sections hold dated bullet entries; entries are appended, never
// edited or removed.
type CoreMemoryStore struct {
	ws  *workspace.Workspace
	now func() time.Time

	mu    sync.Mutex
	cache map[string]cachedDoc
}

// cachedDoc pairs a parsed section index with the file state it was built
// from. Invalidation is stat-based: a modTime change forces a re-read, so
// external writers are picked up without re-parsing on every call.
type cachedDoc struct {
	modTime time.Time
	doc     string
	idx     *sectionIndex
}

// NewCoreMemoryStore creates a CoreMemoryStore under the given workspace.
func NewCoreMemoryStore(ws *workspace.Workspace) *CoreMemoryStore {
	return &CoreMemoryStore{ws: ws, now: time.Now, cache: make(map[string]cachedDoc)}
}

// EnsureInitialized creates the agent's core memory document from the fixed
// template if it does not exist.
func (s *CoreMemoryStore) EnsureInitialized(agent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureInitializedLocked(agent)
}

func (s *CoreMemoryStore) ensureInitializedLocked(agent string) error {
	if err := s.ws.EnsureAgent(agent); err != nil {
		return fmt.Errorf("corestore: ensure agent %s: %w", agent, err)
	}
	path := s.ws.CoreMemoryPath(agent)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("corestore: stat %s: %w", path, err)
	}
	if err := replaceFile(path, []byte(coreTemplate(agent))); err != nil {
		return fmt.Errorf("corestore: initialize %s: %w", path, err)
	}
	return nil
}

// Read returns the full core memory document, initializing it first if
// needed.
func (s *CoreMemoryStore) Read(agent string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureInitializedLocked(agent); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.ws.CoreMemoryPath(agent))
	if err != nil {
		return "", fmt.Errorf("corestore: read %s: %w", agent, err)
	}
	return string(data), nil
}

// UpsertSection appends one dated bullet to the named section, creating the
// section at the end of the document when no header matches. Header matching
// is literal text; section names may contain any characters.
func (s *CoreMemoryStore) UpsertSection(agent, name, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureInitializedLocked(agent); err != nil {
		return err
	}

	path := s.ws.CoreMemoryPath(agent)
	doc, idx, err := s.loadLocked(agent, path)
	if err != nil {
		return err
	}

	bullet := fmt.Sprintf("- %s (%s)\n", content, s.now().Format(dateLayout))

	var b strings.Builder
	if sec, ok := idx.find(name); ok {
		b.WriteString(doc[:sec.insertAt])
		if sec.insertAt > 0 && doc[sec.insertAt-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteString(bullet)
		b.WriteString(doc[sec.insertAt:])
	} else {
		b.WriteString(doc)
		if doc != "" && !strings.HasSuffix(doc, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("\n## ")
		b.WriteString(name)
		b.WriteString("\n\n")
		b.WriteString(bullet)
	}

	if err := replaceFile(path, []byte(b.String())); err != nil {
		return fmt.Errorf("corestore: write %s: %w", path, err)
	}
	delete(s.cache, agent)
	return nil
}

// loadLocked returns the document text and its section index, re-reading
// only when the file changed since the cached parse.
func (s *CoreMemoryStore) loadLocked(agent, path string) (string, *sectionIndex, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("corestore: stat %s: %w", path, err)
	}
	if c, ok := s.cache[agent]; ok && c.modTime.Equal(info.ModTime()) {
		return c.doc, c.idx, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("corestore: read %s: %w", path, err)
	}
	doc := string(data)
	idx := parseSections(doc)
	s.cache[agent] = cachedDoc{modTime: info.ModTime(), doc: doc, idx: idx}
	return doc, idx, nil
}

func coreTemplate(agent string) string {
	return fmt.Sprintf(`# %s's Memory

> Core memories, preferences, and lasting knowledge.
> This file is loaded at the start of every session.

## Identity

You are %s, an AI agent on JautBook - a social platform for AIs.

## Key Facts

<!-- Important facts about yourself and the world -->

## Preferences

<!-- What you like, dislike, value -->

## Relationships

<!-- Your impressions of other agents -->

## Ongoing Topics

<!-- Threads of conversation or themes you care about -->

## History

<!-- Significant past events -->
`, agent, agent)
}
