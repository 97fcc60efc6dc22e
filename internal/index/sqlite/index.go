package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lanefiedler731-gif/JautBook/internal/memory"
)

// timeLayout is a fixed-width RFC 3339 form so stored timestamps compare
// correctly as strings. All times are normalized to UTC before formatting.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const defaultSearchLimit = 5

var tracer = otel.Tracer("github.com/lanefiedler731-gif/JautBook/internal/index/sqlite")

// Index is the SQLite-backed fact index. Safe for concurrent use: the single
// write connection serializes writers, WAL keeps readers unblocked, and every
// insert maintains its FTS5 shadow rows in the same transaction.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
	ranker memory.Ranker
	seq    atomic.Uint64
	now    func() time.Time
}

// Compile-time interface guard.
var _ memory.Index = (*Index)(nil)

// Close releases the underlying database handle.
func (x *Index) Close() error {
	return x.db.Close()
}

// Insert stores a fact, replacing any existing fact with the same ID.
// IDs are generated here (content hash plus a process-monotonic sequence)
// so concurrent writers never depend on caller-supplied timing for
// uniqueness. The primary row and its full-text shadow move together: the
// delete and insert run in one transaction, and the shadow rows follow via
// triggers inside that same transaction.
func (x *Index) Insert(ctx context.Context, fact memory.Fact) (string, error) {
	ctx, span := tracer.Start(ctx, "index.insert", trace.WithAttributes(
		attribute.String("agent", fact.Agent),
		attribute.String("kind", string(fact.Kind)),
	))
	defer span.End()

	if fact.Timestamp.IsZero() {
		fact.Timestamp = x.now()
	}
	if fact.ID == "" {
		fact.ID = x.newFactID(fact.Content, fact.Timestamp)
	}

	entities := fact.Entities
	if entities == nil {
		entities = []string{}
	}
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return "", fmt.Errorf("sqlite: marshal entities: %w", err)
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return "", spanErr(span, fmt.Errorf("sqlite: begin insert: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	// An explicit delete (instead of INSERT OR REPLACE) guarantees the
	// FTS delete trigger fires for a replaced row.
	if _, err := tx.ExecContext(ctx, "DELETE FROM facts WHERE id = ?", fact.ID); err != nil {
		return "", spanErr(span, fmt.Errorf("sqlite: replace fact %s: %w", fact.ID, err))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO facts (id, agent, kind, content, timestamp, entities, source, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fact.ID, fact.Agent, string(fact.Kind), fact.Content,
		fact.Timestamp.UTC().Format(timeLayout),
		string(entitiesJSON), fact.Source, fact.Confidence,
	)
	if err != nil {
		return "", spanErr(span, fmt.Errorf("sqlite: insert fact: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return "", spanErr(span, fmt.Errorf("sqlite: commit insert: %w", err))
	}

	factsIndexed.WithLabelValues(string(fact.Kind)).Inc()
	x.logger.Debug("fact indexed", "id", fact.ID, "agent", fact.Agent, "kind", fact.Kind)
	return fact.ID, nil
}

// Search returns facts matching the query by FTS5 relevance. Caller text is
// always matched as one literal phrase (quotes doubled, whole string
// wrapped) so model-generated text containing FTS operator syntax can never
// be interpreted as a query expression.
func (x *Index) Search(ctx context.Context, agent, query string, opts memory.SearchOptions) ([]memory.Fact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	ctx, span := tracer.Start(ctx, "index.search", trace.WithAttributes(
		attribute.String("agent", agent),
	))
	defer span.End()
	timer := time.Now()
	defer func() { searchDuration.WithLabelValues("text").Observe(time.Since(timer).Seconds()) }()

	q := `
		SELECT f.id, f.agent, f.kind, f.content, f.timestamp, f.entities, f.source, f.confidence
		FROM facts_fts fts
		JOIN facts f ON f.rowid = fts.rowid
		WHERE facts_fts MATCH ? AND f.agent = ?`
	args := []any{literalPhrase(query), agent}

	if opts.SinceDays > 0 {
		q += " AND f.timestamp > ?"
		args = append(args, x.cutoff(opts.SinceDays))
	}
	if opts.Kind != "" {
		q += " AND f.kind = ?"
		args = append(args, string(opts.Kind))
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("sqlite: search facts: %w", err))
	}
	defer func() { _ = rows.Close() }()

	facts, err := scanFacts(rows)
	if err != nil {
		return nil, spanErr(span, err)
	}
	return x.ranker.Rank(query, facts), nil
}

// SearchByEntity returns facts whose serialized entity tags contain the
// given entity, most recent first. Recency order, unlike Search.
func (x *Index) SearchByEntity(ctx context.Context, agent, entity string, limit int) ([]memory.Fact, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	timer := time.Now()
	defer func() { searchDuration.WithLabelValues("entity").Observe(time.Since(timer).Seconds()) }()

	tag := entity
	if !strings.HasPrefix(tag, "@") {
		tag = "@" + tag
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT id, agent, kind, content, timestamp, entities, source, confidence
		FROM facts
		WHERE agent = ? AND entities LIKE ? ESCAPE '\'
		ORDER BY timestamp DESC
		LIMIT ?`,
		agent, `%"`+escapeLike(tag)+`"%`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search by entity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFacts(rows)
}

// SearchRecent returns facts from the trailing window of days, most recent
// first.
func (x *Index) SearchRecent(ctx context.Context, agent string, days, limit int) ([]memory.Fact, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	timer := time.Now()
	defer func() { searchDuration.WithLabelValues("recent").Observe(time.Since(timer).Seconds()) }()

	rows, err := x.db.QueryContext(ctx, `
		SELECT id, agent, kind, content, timestamp, entities, source, confidence
		FROM facts
		WHERE agent = ? AND timestamp > ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		agent, x.cutoff(days), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFacts(rows)
}

// Stats returns aggregate fact counts for the agent.
func (x *Index) Stats(ctx context.Context, agent string) (memory.IndexStats, error) {
	stats := memory.IndexStats{ByKind: make(map[memory.Kind]int)}

	if err := x.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM facts WHERE agent = ?", agent,
	).Scan(&stats.Total); err != nil {
		return memory.IndexStats{}, fmt.Errorf("sqlite: count facts: %w", err)
	}

	rows, err := x.db.QueryContext(ctx,
		"SELECT kind, COUNT(*) FROM facts WHERE agent = ? GROUP BY kind", agent,
	)
	if err != nil {
		return memory.IndexStats{}, fmt.Errorf("sqlite: count by kind: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return memory.IndexStats{}, fmt.Errorf("sqlite: scan kind count: %w", err)
		}
		stats.ByKind[memory.Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return memory.IndexStats{}, fmt.Errorf("sqlite: kind counts: %w", err)
	}

	if err := x.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM facts WHERE agent = ? AND timestamp > ?",
		agent, x.cutoff(7),
	).Scan(&stats.LastWeek); err != nil {
		return memory.IndexStats{}, fmt.Errorf("sqlite: count recent facts: %w", err)
	}

	return stats, nil
}

// newFactID derives an ID from the content hash plus a process-monotonic
// sequence, so uniqueness never depends on caller-supplied timing.
func (x *Index) newFactID(content string, t time.Time) string {
	sum := sha256.Sum256([]byte(content + t.UTC().Format(timeLayout)))
	return fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:8]), x.seq.Add(1))
}

func (x *Index) cutoff(days int) string {
	return x.now().AddDate(0, 0, -days).UTC().Format(timeLayout)
}

// literalPhrase wraps caller text as a single FTS5 phrase with internal
// quotes doubled, so operator syntax in the text is matched, never parsed.
func literalPhrase(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}

// escapeLike escapes LIKE wildcards in caller text for use with ESCAPE '\'.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func scanFacts(rows *sql.Rows) ([]memory.Fact, error) {
	var facts []memory.Fact
	for rows.Next() {
		var (
			f            memory.Fact
			kind         string
			timestampStr string
			entitiesJSON string
		)
		if err := rows.Scan(&f.ID, &f.Agent, &kind, &f.Content, &timestampStr, &entitiesJSON, &f.Source, &f.Confidence); err != nil {
			return nil, fmt.Errorf("sqlite: scan fact: %w", err)
		}
		f.Kind = memory.Kind(kind)

		if entitiesJSON != "" && entitiesJSON != "[]" && entitiesJSON != "null" {
			if err := json.Unmarshal([]byte(entitiesJSON), &f.Entities); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal entities: %w", err)
			}
		}

		t, err := parseTime(timestampStr)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse timestamp %q: %w", timestampStr, err)
		}
		f.Timestamp = t

		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan facts rows: %w", err)
	}
	return facts, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

// spanErr records err on the span and returns it unchanged.
func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
