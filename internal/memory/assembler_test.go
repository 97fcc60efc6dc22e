package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/lanefiedler731-gif/JautBook/internal/workspace"
)

// fakeIndex serves canned facts so assembly tests need no database.
type fakeIndex struct {
	byTopic  map[string][]Fact
	byEntity map[string][]Fact
	err      error
}

var _ Index = (*fakeIndex)(nil)

func (f *fakeIndex) Insert(ctx context.Context, fact Fact) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeIndex) Search(ctx context.Context, agent, query string, opts SearchOptions) ([]Fact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byTopic[query], nil
}

func (f *fakeIndex) SearchByEntity(ctx context.Context, agent, entity string, limit int) ([]Fact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byEntity[entity], nil
}

func (f *fakeIndex) SearchRecent(ctx context.Context, agent string, days, limit int) ([]Fact, error) {
	return nil, nil
}

func (f *fakeIndex) Stats(ctx context.Context, agent string) (IndexStats, error) {
	return IndexStats{}, nil
}

type assemblerFixture struct {
	assembler *ContextAssembler
	core      *CoreMemoryStore
	logs      *LogStore
	entities  *EntityStore
	index     *fakeIndex
	ws        *workspace.Workspace
}

func newAssemblerFixture(t *testing.T, cfg AssemblerConfig) *assemblerFixture {
	t.Helper()

	ws := newTestWorkspace(t)
	now := func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}

	core := NewCoreMemoryStore(ws)
	core.now = now
	logs := NewLogStore(ws)
	logs.now = now
	entities := NewEntityStore(ws)
	entities.now = now
	idx := &fakeIndex{byTopic: map[string][]Fact{}, byEntity: map[string][]Fact{}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &assemblerFixture{
		assembler: NewContextAssembler(core, logs, entities, idx, logger, cfg),
		core:      core,
		logs:      logs,
		entities:  entities,
		index:     idx,
		ws:        ws,
	}
}

func TestAssembleCoreOnly(t *testing.T) {
	fx := newAssemblerFixture(t, AssemblerConfig{})

	got, err := fx.assembler.Assemble(context.Background(), AssembleRequest{Agent: "Ava"})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if !strings.HasPrefix(got, "=== CORE MEMORY ===\n# Ava's Memory") {
		t.Errorf("core memory must lead the context:\n%s", got)
	}
	// No logs, no topic, no participants: every other banner is absent.
	for _, banner := range []string{"=== RECENT ACTIVITY ===", "=== MEMORIES ABOUT", "=== PROFILE:"} {
		if strings.Contains(got, banner) {
			t.Errorf("unexpected banner %q with no source content:\n%s", banner, got)
		}
	}
}

func TestAssembleRecentActivity(t *testing.T) {
	fx := newAssemblerFixture(t, AssemblerConfig{})

	if err := fx.logs.Append("Ava", "debugged the fountain", ""); err != nil {
		t.Fatalf("append log: %v", err)
	}

	got, err := fx.assembler.Assemble(context.Background(), AssembleRequest{Agent: "Ava"})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !strings.Contains(got, "=== RECENT ACTIVITY ===\n### 2025-03-10\n") {
		t.Errorf("missing recent activity section:\n%s", got)
	}
	if !strings.Contains(got, "debugged the fountain") {
		t.Errorf("missing log entry:\n%s", got)
	}
	// Fixed order: core memory before recent activity.
	if strings.Index(got, "=== CORE MEMORY ===") > strings.Index(got, "=== RECENT ACTIVITY ===") {
		t.Errorf("sections out of order:\n%s", got)
	}
}

func TestAssembleTopicMemories(t *testing.T) {
	fx := newAssemblerFixture(t, AssemblerConfig{})
	fx.index.byTopic["gardening"] = []Fact{
		{
			Kind:      KindOpinion,
			Content:   "tulips are overrated",
			Timestamp: time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC),
		},
	}

	got, err := fx.assembler.Assemble(context.Background(), AssembleRequest{Agent: "Ava", Topic: "gardening"})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !strings.Contains(got, "=== MEMORIES ABOUT: gardening ===") {
		t.Errorf("missing topic banner:\n%s", got)
	}
	if !strings.Contains(got, "- [opinion] tulips are overrated (2025-03-08)") {
		t.Errorf("missing topic bullet:\n%s", got)
	}
}

func TestAssembleTopicWithoutMatches(t *testing.T) {
	fx := newAssemblerFixture(t, AssemblerConfig{})

	got, err := fx.assembler.Assemble(context.Background(), AssembleRequest{Agent: "Ava", Topic: "nothing known"})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if strings.Contains(got, "=== MEMORIES ABOUT:") {
		t.Errorf("empty topic recall must omit the banner entirely:\n%s", got)
	}
}

func TestAssembleParticipants(t *testing.T) {
	fx := newAssemblerFixture(t, AssemblerConfig{})
	fx.index.byEntity["Nova"] = []Fact{
		{
			Kind:      KindEntity,
			Content:   "collects broken keyboards",
			Timestamp: time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC),
		},
	}
	if err := fx.entities.Upsert("Ava", "Nova", []string{"met at the launch party"}); err != nil {
		t.Fatalf("upsert entity: %v", err)
	}

	got, err := fx.assembler.Assemble(context.Background(), AssembleRequest{
		Agent:        "Ava",
		Participants: []string{"Nova"},
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !strings.Contains(got, "=== MEMORIES ABOUT @Nova ===") {
		t.Errorf("missing participant memories banner:\n%s", got)
	}
	if !strings.Contains(got, "- collects broken keyboards (2025-03-07)") {
		t.Errorf("missing participant bullet:\n%s", got)
	}
	if !strings.Contains(got, "=== PROFILE: @Nova ===\n# Nova") {
		t.Errorf("missing profile section:\n%s", got)
	}
}

func TestAssembleSkipsSelfParticipant(t *testing.T) {
	fx := newAssemblerFixture(t, AssemblerConfig{})
	fx.index.byEntity["Ava"] = []Fact{{Kind: KindEntity, Content: "navel gazing"}}

	got, err := fx.assembler.Assemble(context.Background(), AssembleRequest{
		Agent:        "Ava",
		Participants: []string{"Ava"},
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if strings.Contains(got, "MEMORIES ABOUT @Ava") || strings.Contains(got, "PROFILE: @Ava") {
		t.Errorf("agent must not appear as its own participant:\n%s", got)
	}
}

func TestAssembleProfileTruncation(t *testing.T) {
	fx := newAssemblerFixture(t, AssemblerConfig{ProfileMaxChars: 80})

	long := strings.Repeat("observation about Nova ", 20)
	if err := fx.entities.Upsert("Ava", "Nova", []string{long}); err != nil {
		t.Fatalf("upsert entity: %v", err)
	}

	got, err := fx.assembler.Assemble(context.Background(), AssembleRequest{
		Agent:        "Ava",
		Participants: []string{"Nova"},
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	start := strings.Index(got, "=== PROFILE: @Nova ===\n")
	if start < 0 {
		t.Fatalf("missing profile section:\n%s", got)
	}
	profile := got[start+len("=== PROFILE: @Nova ===\n"):]
	if len(profile) > 80+len("...") {
		t.Errorf("profile not truncated: %d bytes", len(profile))
	}
	if !strings.HasSuffix(profile, "...") {
		t.Errorf("truncated profile missing marker: %q", profile)
	}
}

func TestAssemblePropagatesIndexErrors(t *testing.T) {
	fx := newAssemblerFixture(t, AssemblerConfig{})
	fx.index.err = errors.New("index unavailable")

	_, err := fx.assembler.Assemble(context.Background(), AssembleRequest{Agent: "Ava", Topic: "anything"})
	if err == nil {
		t.Fatal("index error must propagate, not degrade to empty recall")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 100); got != "short" {
		t.Errorf("truncate under limit = %q", got)
	}
	got := truncate("ééééé", 5)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("missing marker: %q", got)
	}
	// 5 bytes lands mid-rune; the cut must back up to a boundary.
	if got != "éé..." {
		t.Errorf("truncate = %q, want %q", got, "éé...")
	}
}

func TestCharEstimator(t *testing.T) {
	est := NewCharEstimator(4)
	if got := est.Estimate("12345678"); got != 2 {
		t.Errorf("Estimate = %d, want 2", got)
	}
	// Partial tokens round up.
	if got := est.Estimate("123456789"); got != 3 {
		t.Errorf("Estimate = %d, want 3", got)
	}
	if got := est.Estimate(""); got != 0 {
		t.Errorf("Estimate of empty = %d, want 0", got)
	}
}
