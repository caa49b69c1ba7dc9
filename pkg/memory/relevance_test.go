package memory

import (
	"context"
	"testing"
	"time"
)

func TestTextSimilarityFavorsOverlap(t *testing.T) {
	hint := "kubernetes deployment steps"
	high := textSimilarity(hint, "deployment steps for kubernetes clusters")
	low := textSimilarity(hint, "unrelated content about cooking recipes")
	if high <= low {
		t.Fatalf("expected overlapping content to score higher: high=%f low=%f", high, low)
	}
}

func TestTextSimilarityDropsStopWordsAndShortTokens(t *testing.T) {
	sim := textSimilarity("the a of to", "the a of to")
	if sim != 0 {
		t.Fatalf("expected pure stop-word hint to score 0, got %f", sim)
	}
}

func TestRecencyDecayMonotonicallyDecreasesWithAge(t *testing.T) {
	now := time.Now().UTC()
	recent := recencyDecay(now.Add(-1*time.Hour), now)
	oldWeek := recencyDecay(now.Add(-5*7*24*time.Hour), now)
	if recent <= oldWeek {
		t.Fatalf("expected recent factor > 5-week-old factor: recent=%f old=%f", recent, oldWeek)
	}
	if oldWeek <= 0 {
		t.Fatalf("expected nonzero decay for 5-week-old record, got %f", oldWeek)
	}
}

func TestClampRecencyWeightDefaultsOutOfRange(t *testing.T) {
	if got := clampRecencyWeight(1.5); got != 0.3 {
		t.Fatalf("expected default 0.3 for out-of-range weight, got %f", got)
	}
	if got := clampRecencyWeight(-1); got != 0.3 {
		t.Fatalf("expected default 0.3 for negative weight, got %f", got)
	}
	if got := clampRecencyWeight(0.6); got != 0.6 {
		t.Fatalf("expected in-range weight preserved, got %f", got)
	}
}

func TestGetContextRanksByRecency(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := NewAdapter(0)

	now := time.Now().UTC()
	ids := []string{"mem-w0", "mem-w1", "mem-w5"}
	ages := []time.Duration{0, 1 * 7 * 24 * time.Hour, 5 * 7 * 24 * time.Hour}
	for i, id := range ids {
		r := newFact(id, "sess", "deployment steps for kubernetes", 0.9)
		r.CreatedAt = now.Add(-ages[i])
		if _, err := a.Persist(ctx, store, r); err != nil {
			t.Fatalf("persist %s: %v", id, err)
		}
	}
	results, err := a.GetContext(ctx, store, "sess", "kubernetes deployment", ContextOptions{RecencyWeight: 0.6, Now: now})
	if err != nil {
		t.Fatalf("get_context: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected all three matching records, got %d", len(results))
	}
	if results[0].ID != "mem-w0" {
		t.Fatalf("expected most recent record to rank first, got %s", results[0].ID)
	}
	if results[len(results)-1].ID != "mem-w5" {
		t.Fatalf("expected oldest record to rank last, got %s", results[len(results)-1].ID)
	}
}

func TestGetContextDiscardsZeroScoreRecords(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := NewAdapter(0)

	now := time.Now().UTC()
	r := newFact("mem-stale", "sess", "zzz qqq xxx", 0)
	r.CreatedAt = now.Add(-2000 * 7 * 24 * time.Hour)
	if _, err := a.Persist(ctx, store, r); err != nil {
		t.Fatalf("persist: %v", err)
	}

	results, err := a.GetContext(ctx, store, "sess", "kubernetes deployment", ContextOptions{RecencyWeight: 0.3, Now: now})
	if err != nil {
		t.Fatalf("get_context: %v", err)
	}
	for _, got := range results {
		if got.ID == "mem-stale" {
			t.Fatal("expected a zero-confidence, zero-similarity, effectively-zero-recency record to be discarded")
		}
	}
}
