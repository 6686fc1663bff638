package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tv7/C-Claw/internal/model"
	"github.com/tv7/C-Claw/internal/salience"
)

func TestDecayAndPrune_GraceWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, WithClock(clock.Now))

	mem := mustInsert(t, s, "o", "fresh memory", model.SectorEpisodic)
	clock.Advance(23 * time.Hour)

	res, err := s.DecayAndPrune(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decayed != 0 {
		t.Errorf("expected nothing decayed inside grace window, got %d", res.Decayed)
	}
	got, _ := s.Get(ctx, mem.ID)
	if got.Salience != salience.Initial {
		t.Errorf("expected untouched salience, got %v", got.Salience)
	}

	clock.Advance(2 * time.Hour)
	if _, err := s.DecayAndPrune(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx, mem.ID)
	if d := got.Salience - 0.98; d > 1e-9 || d < -1e-9 {
		t.Errorf("expected 0.98 after one eligible sweep, got %v", got.Salience)
	}
}

func TestDecayAndPrune_RecentAccessExempt(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, WithClock(clock.Now))

	old := mustInsert(t, s, "o", "old untouched memory", model.SectorEpisodic)
	used := mustInsert(t, s, "o", "old but recently used memory", model.SectorEpisodic)
	clock.Advance(48 * time.Hour)
	s.Reinforce(ctx, used.ID)
	clock.Advance(time.Hour)

	res, err := s.DecayAndPrune(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decayed != 1 {
		t.Errorf("expected 1 decayed, got %d", res.Decayed)
	}
	gotOld, _ := s.Get(ctx, old.ID)
	gotUsed, _ := s.Get(ctx, used.ID)
	if gotOld.Salience >= salience.Initial {
		t.Errorf("expected old memory to decay, got %v", gotOld.Salience)
	}
	if d := gotUsed.Salience - 1.1; d > 1e-9 || d < -1e-9 {
		t.Errorf("expected reinforced memory untouched at 1.1, got %v", gotUsed.Salience)
	}
}

func TestDecayAndPrune_PrunesAfterDailySweeps(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, WithClock(clock.Now))

	mem := mustInsert(t, s, "o", "one-off exchange about Lisbon", model.SectorEpisodic)

	sweeps := salience.SweepsUntilPruned(salience.Initial)
	for i := 1; i < sweeps; i++ {
		clock.Advance(25 * time.Hour)
		if _, err := s.DecayAndPrune(ctx); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
		got, err := s.Get(ctx, mem.ID)
		if err != nil {
			t.Fatalf("memory gone early at sweep %d: %v", i, err)
		}
		if got.Salience < salience.Min || got.Salience > salience.Max {
			t.Fatalf("salience out of bounds: %v", got.Salience)
		}
	}

	clock.Advance(25 * time.Hour)
	res, err := s.DecayAndPrune(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pruned != 1 {
		t.Fatalf("expected 1 pruned on sweep %d, got %d", sweeps, res.Pruned)
	}

	if _, err := s.Get(ctx, mem.ID); err == nil {
		t.Error("expected memory to be gone")
	}
	found, _ := s.SearchByKeywords(ctx, "o", []string{"lisbon"}, 3)
	recent, _ := s.Recent(ctx, "o", 5)
	listed, _ := s.ForOwner(ctx, "o", 5)
	if len(found)+len(recent)+len(listed) != 0 {
		t.Errorf("pruned memory still retrievable: %d/%d/%d", len(found), len(recent), len(listed))
	}

	var indexed int
	s.db.QueryRow(`SELECT COUNT(*) FROM memories_fts`).Scan(&indexed)
	if indexed != 0 {
		t.Errorf("expected index row removed, got %d", indexed)
	}
}

func TestLastSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, WithClock(clock.Now))

	last, err := s.LastSweep(ctx)
	if err != nil || last != nil {
		t.Fatalf("expected no sweep yet, got %+v %v", last, err)
	}

	first, _ := s.DecayAndPrune(ctx)
	clock.Advance(24 * time.Hour)
	second, _ := s.DecayAndPrune(ctx)
	if first.ID == second.ID {
		t.Fatal("expected distinct sweep ids")
	}

	last, err = s.LastSweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last.ID != second.ID {
		t.Errorf("expected last sweep %s, got %s", second.ID, last.ID)
	}
}

func TestSweepArithmeticMatchesSalience(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, WithClock(clock.Now))

	mem := mustInsert(t, s, "o", "remember I use Go", model.SectorSemantic)
	idle := mustInsert(t, s, "o", "untouched memory", model.SectorEpisodic)

	want := salience.Initial
	for i := 0; i < 3; i++ {
		got, err := s.Reinforce(ctx, mem.ID)
		if err != nil {
			t.Fatal(err)
		}
		want = salience.Reinforce(want)
		if d := got.Salience - want; d > 1e-9 || d < -1e-9 {
			t.Fatalf("reinforce %d: store %v, salience.Reinforce %v", i+1, got.Salience, want)
		}
	}

	reinforcedAt := clock.Now()
	clock.Advance(salience.GraceWindow + time.Minute)
	if !salience.Eligible(reinforcedAt, clock.Now()) {
		t.Fatal("expected memory to be eligible after the grace window")
	}
	if _, err := s.DecayAndPrune(ctx); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		id   int64
		want float64
	}{
		{mem.ID, salience.Decay(want)},
		{idle.ID, salience.Decay(salience.Initial)},
	} {
		got, err := s.Get(ctx, tc.id)
		if err != nil {
			t.Fatal(err)
		}
		if d := got.Salience - tc.want; d > 1e-9 || d < -1e-9 {
			t.Errorf("memory %d: store %v, salience.Decay %v", tc.id, got.Salience, tc.want)
		}
	}
}

func TestReinforceMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Reinforce(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
