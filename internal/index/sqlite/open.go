// Package sqlite implements the durable fact index over a single SQLite
// database shared by all agents in the process. It uses modernc.org/sqlite
// (pure Go, no CGO) with an FTS5 shadow table kept in sync by triggers, WAL
// mode for concurrent readers, and a bounded busy timeout so one agent's
// write never blocks another's read indefinitely.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lanefiedler731-gif/JautBook/internal/memory"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5000

// Options configures Open. The zero value is usable.
type Options struct {
	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int

	// DisableWAL turns off WAL journal mode (mainly for tests on odd filesystems).
	DisableWAL bool

	// Ranker reorders full-text matches. Defaults to the engine's relevance order.
	Ranker memory.Ranker
}

// Open opens (creating if needed) the index database at the given path and
// migrates its schema. The caller owns the returned Index and must Close it.
func Open(path string, opts Options) (*Index, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}
	if opts.Ranker == nil {
		opts.Ranker = memory.EngineRanker{}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// SQLite handles one writer at a time; limit the pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if !opts.DisableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", opts.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Index{
		db:     db,
		logger: opts.Logger.With("component", "index"),
		ranker: opts.Ranker,
		now:    time.Now,
	}, nil
}
