package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// AssemblerConfig tunes context assembly. Zero values fall back to defaults
// matching what the decision loop expects.
type AssemblerConfig struct {
	// RecentDays is how many trailing daily logs to include.
	RecentDays int

	// TopicLimit caps topic-relevant memories.
	TopicLimit int

	// ParticipantLimit caps memories per participant.
	ParticipantLimit int

	// ProfileMaxChars truncates each participant profile document.
	ProfileMaxChars int

	// CharsPerToken feeds the size estimator.
	CharsPerToken float64
}

func (c *AssemblerConfig) defaults() {
	if c.RecentDays <= 0 {
		c.RecentDays = 2
	}
	if c.TopicLimit <= 0 {
		c.TopicLimit = 5
	}
	if c.ParticipantLimit <= 0 {
		c.ParticipantLimit = 3
	}
	if c.ProfileMaxChars <= 0 {
		c.ProfileMaxChars = 500
	}
}

// AssembleRequest describes one decision turn's context needs.
type AssembleRequest struct {
	Agent        string
	Topic        string   // optional; free text, matched literally
	Participants []string // other agent identifiers, caller order preserved
	Budget       int      // approximate token budget; advisory, see Assemble
}

// ContextAssembler composes core memory, recent activity, topic recall,
// and participant knowledge into one text blob for a single decision turn.
type ContextAssembler struct {
	core      *CoreMemoryStore
	logs      *LogStore
	entities  *EntityStore
	index     Index
	estimator TokenEstimator
	logger    *slog.Logger
	cfg       AssemblerConfig
}

// NewContextAssembler wires an assembler over the given stores.
func NewContextAssembler(core *CoreMemoryStore, logs *LogStore, entities *EntityStore, index Index, logger *slog.Logger, cfg AssemblerConfig) *ContextAssembler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextAssembler{
		core:      core,
		logs:      logs,
		entities:  entities,
		index:     index,
		estimator: NewCharEstimator(cfg.CharsPerToken),
		logger:    logger.With("component", "assembler"),
		cfg:       cfg,
	}
}

// Assemble builds the context blob in fixed section order. Sections with no
// content are omitted entirely, banner included. Storage faults propagate;
// they are never masked as empty memories.
//
// The budget is advisory: the assembled size is estimated and logged when it
// exceeds the budget, but the output is never truncated to fit.
func (a *ContextAssembler) Assemble(ctx context.Context, req AssembleRequest) (string, error) {
	var sections []string

	// 1. Core memory, always included in full.
	core, err := a.core.Read(req.Agent)
	if err != nil {
		return "", err
	}
	sections = append(sections, "=== CORE MEMORY ===\n"+core)

	// 2. Recent daily logs for short-term continuity.
	recent, err := a.logs.ReadRecent(req.Agent, a.cfg.RecentDays)
	if err != nil {
		return "", err
	}
	if recent != "" {
		sections = append(sections, "=== RECENT ACTIVITY ===\n"+recent)
	}

	// 3. Topic-relevant memories.
	if req.Topic != "" {
		facts, err := a.index.Search(ctx, req.Agent, req.Topic, SearchOptions{Limit: a.cfg.TopicLimit})
		if err != nil {
			return "", err
		}
		if len(facts) > 0 {
			var b strings.Builder
			fmt.Fprintf(&b, "=== MEMORIES ABOUT: %s ===", req.Topic)
			for _, f := range facts {
				fmt.Fprintf(&b, "\n- [%s] %s (%s)", f.Kind, f.Content, f.Timestamp.Format(dateLayout))
			}
			sections = append(sections, b.String())
		}
	}

	// 4. Per-participant memories and profiles, in caller order.
	for _, p := range req.Participants {
		if p == req.Agent {
			continue
		}
		facts, err := a.index.SearchByEntity(ctx, req.Agent, p, a.cfg.ParticipantLimit)
		if err != nil {
			return "", err
		}
		if len(facts) > 0 {
			var b strings.Builder
			fmt.Fprintf(&b, "=== MEMORIES ABOUT @%s ===", p)
			for _, f := range facts {
				fmt.Fprintf(&b, "\n- %s (%s)", f.Content, f.Timestamp.Format(dateLayout))
			}
			sections = append(sections, b.String())
		}

		profile, err := a.entities.Read(req.Agent, p)
		if err != nil {
			return "", err
		}
		if profile != "" {
			sections = append(sections, fmt.Sprintf("=== PROFILE: @%s ===\n%s", p, truncate(profile, a.cfg.ProfileMaxChars)))
		}
	}

	result := strings.Join(sections, "\n\n")

	if req.Budget > 0 {
		if est := a.estimator.Estimate(result); est > req.Budget {
			a.logger.Warn("assembled context exceeds budget",
				"agent", req.Agent,
				"budget", req.Budget,
				"estimated_tokens", est,
			)
		}
	}

	return result, nil
}

// truncate cuts text to at most max bytes on a rune boundary, appending a
// truncation marker when anything was removed.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max] + "..."
}
