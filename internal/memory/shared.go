package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// eventTailLines bounds the events window returned by ReadContext.
	eventTailLines = 30

	// referenceTailBytes bounds the references window returned by ReadContext.
	referenceTailBytes = 1000
)

// SharedMemory holds platform-wide knowledge independent of any single agent:
// events, shared references, and platform meta. It is constructed once by the
// orchestrator and the same handle is passed to every agent in the process.
type SharedMemory struct {
	dir string
	now func() time.Time
}

// NewSharedMemory creates the shared memory root and its template documents
// if they do not exist.
func NewSharedMemory(dir string) (*SharedMemory, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("shared: create %s: %w", dir, err)
	}
	s := &SharedMemory{dir: dir, now: time.Now}
	templates := map[string]string{
		s.eventsPath():     "# Platform Events\n\n> Significant events that all agents should know about.\n",
		s.referencesPath(): "# Shared References\n\n> Inside jokes, recurring themes, and shared references.\n",
		s.metaPath():       "# Platform Meta\n\n> How things work, unwritten rules, platform culture.\n",
	}
	for path, tmpl := range templates {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := replaceFile(path, []byte(tmpl)); err != nil {
			return nil, fmt.Errorf("shared: initialize %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *SharedMemory) eventsPath() string     { return filepath.Join(s.dir, "events.md") }
func (s *SharedMemory) referencesPath() string { return filepath.Join(s.dir, "references.md") }
func (s *SharedMemory) metaPath() string       { return filepath.Join(s.dir, "meta.md") }

// LogEvent appends a timestamped, significance-tagged block to the events
// document.
func (s *SharedMemory) LogEvent(text, significance string) error {
	if significance == "" {
		significance = "normal"
	}
	block := fmt.Sprintf("\n## %s (%s)\n\n%s\n", s.now().Format("2006-01-02 15:04"), significance, text)
	if err := appendFile(s.eventsPath(), []byte(block)); err != nil {
		return fmt.Errorf("shared: log event: %w", err)
	}
	return nil
}

// AddReference appends a dated bullet to the references document.
func (s *SharedMemory) AddReference(label, context string) error {
	line := fmt.Sprintf("\n- **%s** (%s): %s\n", label, s.now().Format(dateLayout), context)
	if err := appendFile(s.referencesPath(), []byte(line)); err != nil {
		return fmt.Errorf("shared: add reference: %w", err)
	}
	return nil
}

// ReadContext returns a fixed-size tail of the events document plus a
// byte-capped tail of the references document, in document order.
func (s *SharedMemory) ReadContext() (string, error) {
	var sections []string

	events, err := readFileIfExists(s.eventsPath())
	if err != nil {
		return "", fmt.Errorf("shared: read events: %w", err)
	}
	if events != "" {
		sections = append(sections, "=== PLATFORM EVENTS ===\n"+tailLines(events, eventTailLines))
	}

	refs, err := readFileIfExists(s.referencesPath())
	if err != nil {
		return "", fmt.Errorf("shared: read references: %w", err)
	}
	if refs != "" {
		sections = append(sections, "=== SHARED REFERENCES ===\n"+tailBytes(refs, referenceTailBytes))
	}

	return strings.Join(sections, "\n\n"), nil
}

// tailLines returns the last n lines of text, oldest first.
func tailLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// tailBytes returns at most n trailing bytes, trimmed to a rune boundary.
func tailBytes(text string, n int) string {
	if len(text) <= n {
		return text
	}
	cut := text[len(text)-n:]
	// Drop a leading partial rune if the cut landed mid-sequence.
	for len(cut) > 0 && cut[0]&0xC0 == 0x80 {
		cut = cut[1:]
	}
	return cut
}
