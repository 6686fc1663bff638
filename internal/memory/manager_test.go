package memory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tv7/C-Claw/internal/classifier"
	"github.com/tv7/C-Claw/internal/model"
	"github.com/tv7/C-Claw/internal/store"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T) (*store.SQLiteStore, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "memory.db"), store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// flakyStore fails selected operations of an otherwise real store.
type flakyStore struct {
	*store.SQLiteStore
	searchErr error
	recentErr error
	// gone simulates memories pruned between the read and the reinforcement.
	gone map[int64]bool
}

func (f *flakyStore) Reinforce(ctx context.Context, id int64) (*model.Memory, error) {
	if f.gone[id] {
		return nil, fmt.Errorf("%w: id %d", store.ErrNotFound, id)
	}
	return f.SQLiteStore.Reinforce(ctx, id)
}

func (f *flakyStore) SearchByKeywords(ctx context.Context, owner string, keywords []string, limit int) ([]model.Memory, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.SQLiteStore.SearchByKeywords(ctx, owner, keywords, limit)
}

func (f *flakyStore) Recent(ctx context.Context, owner string, limit int) ([]model.Memory, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	return f.SQLiteStore.Recent(ctx, owner, limit)
}

func TestFormatContext(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil))
	got := FormatContext([]model.Memory{
		{Content: "User likes Rust", Sector: model.SectorSemantic},
		{Content: "Asked about Austin weather", Sector: model.SectorEpisodic},
	})
	assert.Equal(t, "- User likes Rust (semantic)\n- Asked about Austin weather (episodic)", got)
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)
	m := NewManager(s, nil, Options{}, nil)

	block, err := m.BuildContext(ctx, "chat-1", "remember I use Go")
	require.NoError(t, err)
	assert.Equal(t, "", block)

	mem, err := m.RecordTurn(ctx, "chat-1", "remember I use Go", "Got it.")
	require.NoError(t, err)
	require.NotNil(t, mem)
	assert.Equal(t, model.SectorSemantic, mem.Sector)

	clock.Advance(10 * time.Minute)
	block, err = m.BuildContext(ctx, "chat-1", "what language do I use")
	require.NoError(t, err)
	assert.Contains(t, block, mem.Content)
	assert.Equal(t, 1, strings.Count(block, mem.Content))

	got, err := s.Get(ctx, mem.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.1, got.Salience, 1e-9)
	assert.True(t, got.AccessedAt.Equal(clock.Now()), "accessed_at %v, want %v", got.AccessedAt, clock.Now())

	other, err := m.BuildContext(ctx, "chat-2", "what language do I use")
	require.NoError(t, err)
	assert.Equal(t, "", other)
}

func TestRetrieve_KeywordHitsFirst(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)
	m := NewManager(s, nil, Options{RecentLimit: 2}, nil)

	rust, _ := s.Insert(ctx, store.InsertParams{Owner: "o", Content: "User likes Rust", Sector: model.SectorSemantic})
	for _, c := range []string{"Talked about dinner plans", "Planned a trip to Porto", "Reviewed a pull request"} {
		clock.Advance(time.Minute)
		_, err := s.Insert(ctx, store.InsertParams{Owner: "o", Content: c, Sector: model.SectorEpisodic})
		require.NoError(t, err)
	}

	got, err := m.Retrieve(ctx, "o", "any thoughts on rust?")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, rust.ID, got[0].ID)
	assert.Equal(t, "Reviewed a pull request", got[1].Content)
	assert.Equal(t, "Planned a trip to Porto", got[2].Content)
}

func TestRetrieve_DeduplicatesAndReinforcesOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	m := NewManager(s, nil, Options{}, nil)

	mem, err := s.Insert(ctx, store.InsertParams{Owner: "o", Content: "User likes Rust", Sector: model.SectorSemantic})
	require.NoError(t, err)

	block, err := m.BuildContext(ctx, "o", "rust question")
	require.NoError(t, err)
	assert.Equal(t, "- User likes Rust (semantic)", block)

	got, _ := s.Get(ctx, mem.ID)
	assert.InDelta(t, 1.1, got.Salience, 1e-9)
}

func TestRetrieve_ReturnsReinforcedValues(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)
	m := NewManager(s, nil, Options{}, nil)

	mem, err := s.Insert(ctx, store.InsertParams{Owner: "o", Content: "User likes Rust", Sector: model.SectorSemantic})
	require.NoError(t, err)
	clock.Advance(time.Hour)

	got, err := m.Retrieve(ctx, "o", "rust question")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.1, got[0].Salience, 1e-9)
	assert.True(t, got[0].AccessedAt.Equal(clock.Now()))
	assert.True(t, got[0].CreatedAt.Equal(mem.CreatedAt))
}

func TestRetrieve_SkipsMemoriesPrunedMeanwhile(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	pruned, err := s.Insert(ctx, store.InsertParams{Owner: "o", Content: "Talked about dinner plans", Sector: model.SectorEpisodic})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	kept, err := s.Insert(ctx, store.InsertParams{Owner: "o", Content: "Planned a trip to Porto", Sector: model.SectorEpisodic})
	require.NoError(t, err)

	m := NewManager(&flakyStore{SQLiteStore: s, gone: map[int64]bool{pruned.ID: true}}, nil, Options{}, nil)
	got, err := m.Retrieve(ctx, "o", "?!")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, kept.ID, got[0].ID)
}

func TestRetrieve_NoKeywordsUsesRecency(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	m := NewManager(s, nil, Options{}, nil)

	_, err := s.Insert(ctx, store.InsertParams{Owner: "o", Content: "Planned a trip to Porto", Sector: model.SectorEpisodic})
	require.NoError(t, err)

	block, err := m.BuildContext(ctx, "o", "?!")
	require.NoError(t, err)
	assert.Equal(t, "- Planned a trip to Porto (episodic)", block)
}

func TestRetrieve_SearchDegraded(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	core, logs := observer.New(zap.WarnLevel)
	fs := &flakyStore{SQLiteStore: s, searchErr: errors.New("fts5: malformed index")}
	m := NewManager(fs, nil, Options{}, zap.New(core))

	_, err := s.Insert(ctx, store.InsertParams{Owner: "o", Content: "Planned a trip to Porto", Sector: model.SectorEpisodic})
	require.NoError(t, err)

	block, err := m.BuildContext(ctx, "o", "tell me about porto")
	require.NoError(t, err)
	assert.Equal(t, "- Planned a trip to Porto (episodic)", block)

	entries := logs.FilterMessage("falling back to recent memories").All()
	require.Len(t, entries, 1)
	errField, ok := entries[0].ContextMap()["error"].(string)
	require.True(t, ok)
	assert.Contains(t, errField, ErrSearchDegraded.Error())
}

func TestRetrieve_RecentFailurePropagates(t *testing.T) {
	s, _ := newTestStore(t)
	boom := errors.New("disk I/O error")
	m := NewManager(&flakyStore{SQLiteStore: s, recentErr: boom}, nil, Options{}, nil)

	_, err := m.BuildContext(context.Background(), "o", "tell me about porto")
	assert.ErrorIs(t, err, boom)
}

func TestRecordTurn(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	m := NewManager(s, classifier.New(classifier.DefaultOptions()), Options{}, nil)

	mem, err := m.RecordTurn(ctx, "o", "hi", "Hello!")
	require.NoError(t, err)
	assert.Nil(t, mem)

	mem, err = m.RecordTurn(ctx, "o", "/voice on", "Voice mode enabled.")
	require.NoError(t, err)
	assert.Nil(t, mem)

	mem, err = m.RecordTurn(ctx, "o", "I always drink coffee before 9am and prefer dark roast", "Noted!")
	require.NoError(t, err)
	require.NotNil(t, mem)
	assert.Equal(t, model.SectorSemantic, mem.Sector)
	assert.Equal(t, "User: I always drink coffee before 9am and prefer dark roast\nAssistant: Noted!", mem.Content)

	mem, err = m.RecordTurn(ctx, "o", "What's the weather like today in Austin?", "Sunny and hot.")
	require.NoError(t, err)
	require.NotNil(t, mem)
	assert.Equal(t, model.SectorEpisodic, mem.Sector)

	all, err := m.ListMemories(ctx, "o", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	m := NewManager(s, nil, Options{}, nil)

	_, err := m.RecordTurn(ctx, "o", "remember my sister's birthday is in June", "Saved.")
	require.NoError(t, err)

	n, err := m.Forget(ctx, "o")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	block, err := m.BuildContext(ctx, "o", "when is my sister's birthday")
	require.NoError(t, err)
	assert.Empty(t, block)
}
