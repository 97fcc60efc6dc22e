package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lanefiedler731-gif/JautBook/internal/workspace"
)

// Stats summarizes one agent's memory system: indexed facts plus the
// on-disk documents they were derived from.
type Stats struct {
	Agent           string
	TotalFacts      int
	FactsByKind     map[Kind]int
	FactsThisWeek   int
	DailyLogs       int
	Entities        int
	CoreMemoryBytes int64
}

// System is the composition root the platform calls into: document stores
// plus the derived fact index, with every durable write mirrored into the
// index so it stays searchable.
type System struct {
	ws        *workspace.Workspace
	logs      *LogStore
	core      *CoreMemoryStore
	entities  *EntityStore
	index     Index
	assembler *ContextAssembler
	logger    *slog.Logger
	now       func() time.Time
}

// NewSystem wires the document stores and index into one facade.
// The shared memory handle is owned by the orchestrator and passed to agents
// separately; it is deliberately not part of the per-agent system.
func NewSystem(ws *workspace.Workspace, index Index, logger *slog.Logger, cfg AssemblerConfig) *System {
	if logger == nil {
		logger = slog.Default()
	}
	logs := NewLogStore(ws)
	core := NewCoreMemoryStore(ws)
	entities := NewEntityStore(ws)
	return &System{
		ws:        ws,
		logs:      logs,
		core:      core,
		entities:  entities,
		index:     index,
		assembler: NewContextAssembler(core, logs, entities, index, logger, cfg),
		logger:    logger.With("component", "memory"),
		now:       time.Now,
	}
}

// Logs exposes the daily log store.
func (s *System) Logs() *LogStore { return s.logs }

// Core exposes the core memory store.
func (s *System) Core() *CoreMemoryStore { return s.core }

// Entities exposes the entity knowledge store.
func (s *System) Entities() *EntityStore { return s.entities }

// Index exposes the fact index.
func (s *System) Index() Index { return s.index }

// WriteLog appends one raw activity entry to today's daily log.
func (s *System) WriteLog(agent, entry, section string) error {
	return s.logs.Append(agent, entry, section)
}

// RetainFact indexes a fact for later recall and echoes it into today's
// daily log so the markdown documents stay the readable source of truth.
func (s *System) RetainFact(ctx context.Context, agent, content string, kind Kind, entities []string, confidence float64) (string, error) {
	if kind == "" {
		kind = KindObservation
	}
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	id, err := s.index.Insert(ctx, Fact{
		Agent:      agent,
		Kind:       kind,
		Content:    content,
		Timestamp:  s.now(),
		Entities:   entities,
		Source:     s.logs.TodayPath(agent),
		Confidence: confidence,
	})
	if err != nil {
		return "", err
	}

	tags := "none"
	if len(entities) > 0 {
		tags = strings.Join(entities, ", ")
	}
	echo := fmt.Sprintf("**[%s]** %s\n_Entities: %s | Confidence: %g_",
		strings.ToUpper(string(kind)), content, tags, confidence)
	if err := s.logs.Append(agent, echo, "Retained Facts"); err != nil {
		return "", err
	}
	return id, nil
}

// RememberInteraction records an interaction with other agents: one readable
// block in the daily log plus one searchable fact per takeaway, tagged with
// the participants.
func (s *System) RememberInteraction(ctx context.Context, agent, context string, participants, takeaways []string) error {
	tags := make([]string, 0, len(participants)+1)
	for _, p := range participants {
		if p != agent {
			tags = append(tags, "@"+p)
		}
	}

	var entry strings.Builder
	entry.WriteString("**Context:** ")
	entry.WriteString(context)
	entry.WriteString("\n\n**Takeaways:**\n")
	for _, t := range takeaways {
		entry.WriteString("- ")
		entry.WriteString(t)
		entry.WriteByte('\n')
	}
	section := "Interaction with " + strings.Join(participants, ", ")
	if err := s.logs.Append(agent, entry.String(), section); err != nil {
		return err
	}

	factTags := append(tags, "@"+agent)
	for _, t := range takeaways {
		if _, err := s.RetainFact(ctx, agent, t, KindInteraction, factTags, 0.8); err != nil {
			return err
		}
	}
	return nil
}

// UpsertCoreSection appends a dated bullet to the named core memory section
// and mirrors the content into the index as a core fact so it stays
// searchable.
func (s *System) UpsertCoreSection(ctx context.Context, agent, section, content string) error {
	if err := s.core.UpsertSection(agent, section, content); err != nil {
		return err
	}
	_, err := s.RetainFact(ctx, agent, content, KindCore, nil, 1.0)
	return err
}

// UpsertEntity appends an observation batch to the entity's document and
// mirrors each observation into the index as an entity fact.
func (s *System) UpsertEntity(ctx context.Context, agent, entity string, observations []string) error {
	if err := s.entities.Upsert(agent, entity, observations); err != nil {
		return err
	}
	for _, obs := range observations {
		if _, err := s.RetainFact(ctx, agent, obs, KindEntity, []string{"@" + entity}, 0.9); err != nil {
			return err
		}
	}
	return nil
}

// Recall searches the agent's facts by full-text relevance.
func (s *System) Recall(ctx context.Context, agent, query string, opts SearchOptions) ([]Fact, error) {
	return s.index.Search(ctx, agent, query, opts)
}

// RecallAboutEntity returns the agent's facts tagged with the entity,
// most recent first.
func (s *System) RecallAboutEntity(ctx context.Context, agent, entity string, limit int) ([]Fact, error) {
	return s.index.SearchByEntity(ctx, agent, entity, limit)
}

// RecallRecent returns the agent's facts from the trailing window of days.
func (s *System) RecallRecent(ctx context.Context, agent string, days, limit int) ([]Fact, error) {
	return s.index.SearchRecent(ctx, agent, days, limit)
}

// Consolidate gathers memories worth reviewing: facts about the topic, or the
// last month of activity when no topic is given. It only retrieves; any
// summarization or promotion into core memory is the caller's decision.
func (s *System) Consolidate(ctx context.Context, agent, topic string) ([]Fact, error) {
	if topic != "" {
		return s.index.Search(ctx, agent, topic, SearchOptions{Limit: 50})
	}
	return s.index.SearchRecent(ctx, agent, 30, 50)
}

// AssembleContext builds the bounded context blob for one decision turn.
func (s *System) AssembleContext(ctx context.Context, req AssembleRequest) (string, error) {
	return s.assembler.Assemble(ctx, req)
}

// ReadCore returns the agent's full core memory document.
func (s *System) ReadCore(agent string) (string, error) {
	return s.core.Read(agent)
}

// ReadEntity returns the entity document, or "" when none exists.
func (s *System) ReadEntity(agent, entity string) (string, error) {
	return s.entities.Read(agent, entity)
}

// Stats reports index counts together with on-disk document counts.
func (s *System) Stats(ctx context.Context, agent string) (Stats, error) {
	idx, err := s.index.Stats(ctx, agent)
	if err != nil {
		return Stats{}, err
	}

	logs, err := countMarkdownFiles(s.ws.LogsDir(agent))
	if err != nil {
		return Stats{}, fmt.Errorf("memory: count daily logs: %w", err)
	}
	entities, err := countMarkdownFiles(s.ws.EntitiesDir(agent))
	if err != nil {
		return Stats{}, fmt.Errorf("memory: count entities: %w", err)
	}

	var coreBytes int64
	if info, err := os.Stat(s.ws.CoreMemoryPath(agent)); err == nil {
		coreBytes = info.Size()
	} else if !errors.Is(err, os.ErrNotExist) {
		return Stats{}, fmt.Errorf("memory: stat core memory: %w", err)
	}

	return Stats{
		Agent:           agent,
		TotalFacts:      idx.Total,
		FactsByKind:     idx.ByKind,
		FactsThisWeek:   idx.LastWeek,
		DailyLogs:       logs,
		Entities:        entities,
		CoreMemoryBytes: coreBytes,
	}, nil
}
