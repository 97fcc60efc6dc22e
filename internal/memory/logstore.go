package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/lanefiedler731-gif/JautBook/internal/workspace"
)

const dateLayout = "2006-01-02"

// LogStore manages per-calendar-date daily log documents. Documents are
// append-only and never merged across dates; growth is unbounded and
// retention is the operator's concern.
type LogStore struct {
	ws *workspace.Workspace

	// now is swapped out in tests to simulate calendar dates.
	now func() time.Time
}

// NewLogStore creates a LogStore writing under the given workspace.
func NewLogStore(ws *workspace.Workspace) *LogStore {
	return &LogStore{ws: ws, now: time.Now}
}

// TodayPath returns the path of today's log document for the agent.
// The document may not exist yet.
func (s *LogStore) TodayPath(agent string) string {
	return s.ws.LogPath(agent, s.now().Format(dateLayout))
}

// Append writes one timestamped, section-labeled block to today's log,
// creating the document with its template header if absent. The header and
// block are written together in a single append, so a concurrent reader
// never sees a partial block.
func (s *LogStore) Append(agent, entry, section string) error {
	if section == "" {
		section = "Activity"
	}
	now := s.now()
	path := s.ws.LogPath(agent, now.Format(dateLayout))

	if err := s.ws.EnsureAgent(agent); err != nil {
		return fmt.Errorf("logstore: ensure agent %s: %w", agent, err)
	}

	var b strings.Builder
	existing, err := readFileIfExists(path)
	if err != nil {
		return fmt.Errorf("logstore: read %s: %w", path, err)
	}
	if existing == "" {
		b.WriteString(logHeader(now.Format(dateLayout)))
	}
	fmt.Fprintf(&b, "\n## %s - %s\n\n%s\n", now.Format("15:04:05"), section, entry)

	if err := appendFile(path, []byte(b.String())); err != nil {
		return fmt.Errorf("logstore: append %s: %w", path, err)
	}
	return nil
}

// ReadRecent returns the concatenated entry blocks of the last n calendar
// dates that exist on disk, newest first, each prefixed by its date with the
// template header stripped. Missing dates are skipped; if no documents exist
// the result is empty.
func (s *LogStore) ReadRecent(agent string, days int) (string, error) {
	now := s.now()
	var parts []string
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -i).Format(dateLayout)
		content, err := readFileIfExists(s.ws.LogPath(agent, date))
		if err != nil {
			return "", fmt.Errorf("logstore: read log for %s: %w", date, err)
		}
		if content == "" {
			continue
		}
		parts = append(parts, "### "+date+"\n"+stripLogHeader(content))
	}
	return strings.Join(parts, "\n\n"), nil
}

func logHeader(date string) string {
	return fmt.Sprintf(`# Daily Log - %s

> Raw observations and activities for the day.
> This is ephemeral context - important things get promoted to memory.md
`, date)
}

// stripLogHeader drops everything before the first entry block. A document
// with no entry markers is returned whole rather than discarded.
func stripLogHeader(content string) string {
	if strings.HasPrefix(content, "## ") {
		return content
	}
	if idx := strings.Index(content, "\n## "); idx >= 0 {
		return content[idx+1:]
	}
	return content
}
