package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/lanefiedler731-gif/JautBook/internal/workspace"
)

// EntityStore manages per-(agent, entity) knowledge documents. Each upsert
// appends one dated batch of observation bullets; documents are never edited
// in place.
type EntityStore struct {
	ws  *workspace.Workspace
	now func() time.Time
}

// NewEntityStore creates an EntityStore under the given workspace.
func NewEntityStore(ws *workspace.Workspace) *EntityStore {
	return &EntityStore{ws: ws, now: time.Now}
}

// Upsert appends one dated observation batch to the entity's document,
// creating it with a template header if absent. The header and batch are
// written in a single append.
func (s *EntityStore) Upsert(agent, entity string, observations []string) error {
	if len(observations) == 0 {
		return nil
	}
	if err := s.ws.EnsureAgent(agent); err != nil {
		return fmt.Errorf("entitystore: ensure agent %s: %w", agent, err)
	}

	path := s.ws.EntityPath(agent, entity)
	existing, err := readFileIfExists(path)
	if err != nil {
		return fmt.Errorf("entitystore: read %s: %w", path, err)
	}

	var b strings.Builder
	if existing == "" {
		fmt.Fprintf(&b, "# %s\n\n> Knowledge about %s\n", entity, entity)
	}
	fmt.Fprintf(&b, "\n## %s\n\n", s.now().Format(dateLayout))
	for _, obs := range observations {
		b.WriteString("- ")
		b.WriteString(obs)
		b.WriteByte('\n')
	}

	if err := appendFile(path, []byte(b.String())); err != nil {
		return fmt.Errorf("entitystore: append %s: %w", path, err)
	}
	return nil
}

// Read returns the entity's full document text, or an empty string when no
// document exists. Absence is not an error.
func (s *EntityStore) Read(agent, entity string) (string, error) {
	content, err := readFileIfExists(s.ws.EntityPath(agent, entity))
	if err != nil {
		return "", fmt.Errorf("entitystore: read %s: %w", entity, err)
	}
	return content, nil
}
