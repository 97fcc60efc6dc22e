// Package memory implements the two-layer agent memory system: markdown
// documents as the human-readable source of truth (daily logs, core memory,
// entity files) and a derived full-text index for retrieval.
package memory

import (
	"context"
	"errors"
	"time"
)

// Kind classifies a fact. The set mirrors what agents extract from their
// activity: world knowledge, lived experience, opinions, raw observations,
// interactions with other agents, entity knowledge, and promoted core memory.
type Kind string

const (
	KindWorld       Kind = "world"
	KindExperience  Kind = "experience"
	KindOpinion     Kind = "opinion"
	KindObservation Kind = "observation"
	KindInteraction Kind = "interaction"
	KindEntity      Kind = "entity"
	KindCore        Kind = "core"
)

// Valid reports whether k is one of the known fact kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindWorld, KindExperience, KindOpinion, KindObservation,
		KindInteraction, KindEntity, KindCore:
		return true
	}
	return false
}

// Fact is an atomic piece of indexed knowledge owned by one agent.
// Facts are immutable once inserted; re-inserting the same ID replaces the row.
type Fact struct {
	ID         string
	Agent      string
	Kind       Kind
	Content    string
	Timestamp  time.Time
	Entities   []string // free-form tags, e.g. "@Nova", "coffee_stain_conspiracy"
	Source     string   // daily log document the fact was captured from
	Confidence float64  // informational only; retrieval never filters on it
}

// ErrUnknownKind is returned when a fact carries a kind outside the known set.
var ErrUnknownKind = errors.New("memory: unknown fact kind")

// SearchOptions narrows a full-text search.
type SearchOptions struct {
	// Limit caps the number of results. Non-positive values use the
	// implementation default.
	Limit int

	// SinceDays, when positive, excludes facts older than that many days.
	SinceDays int

	// Kind, when non-empty, restricts results to one fact kind.
	Kind Kind
}

// IndexStats summarizes the indexed facts for one agent.
type IndexStats struct {
	Total    int
	ByKind   map[Kind]int
	LastWeek int // facts indexed in the trailing 7 days
}

// Index is the durable, agent-scoped fact store with full-text search.
// Implementations must keep the primary record and its full-text shadow in
// sync transactionally, and must be safe for concurrent use.
type Index interface {
	// Insert stores a fact, replacing any existing fact with the same ID.
	// When fact.ID is empty the store generates one. Returns the stored ID.
	Insert(ctx context.Context, fact Fact) (string, error)

	// Search returns facts matching the query by full-text relevance,
	// best match first. The query is matched literally; search-engine
	// operator syntax in caller text is never interpreted. An empty or
	// whitespace-only query returns no results and no error.
	Search(ctx context.Context, agent, query string, opts SearchOptions) ([]Fact, error)

	// SearchByEntity returns facts tagged with the given entity,
	// most recent first.
	SearchByEntity(ctx context.Context, agent, entity string, limit int) ([]Fact, error)

	// SearchRecent returns facts from the trailing window of days,
	// most recent first.
	SearchRecent(ctx context.Context, agent string, days, limit int) ([]Fact, error)

	// Stats returns aggregate counts for the agent's facts.
	Stats(ctx context.Context, agent string) (IndexStats, error)
}

// Ranker orders full-text search candidates. The default implementation
// keeps the engine's relevance order; alternative rankers can re-score
// candidates without changing the Index contract.
type Ranker interface {
	Rank(query string, facts []Fact) []Fact
}

// EngineRanker preserves the order produced by the search engine.
type EngineRanker struct{}

// Compile-time interface guard.
var _ Ranker = EngineRanker{}

// Rank returns facts unchanged.
func (EngineRanker) Rank(_ string, facts []Fact) []Fact { return facts }
