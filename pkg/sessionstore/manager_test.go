package sessionstore

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.BasePath == "" {
		cfg.BasePath = t.TempDir()
	}
	m := NewManager(cfg, nil)
	t.Cleanup(m.CloseAll)
	return m
}

func TestOpenOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{})

	h1, err := m.OpenOrCreate(ctx, "sess-a")
	if err != nil {
		t.Fatalf("open_or_create: %v", err)
	}
	h2, err := m.OpenOrCreate(ctx, "sess-a")
	if err != nil {
		t.Fatalf("open_or_create again: %v", err)
	}
	if h1.Store() != h2.Store() {
		t.Fatal("expected the same store handle to be returned for a second open of the same session")
	}
	if !m.IsOpen("sess-a") {
		t.Fatal("expected session to be open")
	}
}

func TestOpenOrCreateRejectsInvalidSessionID(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{})

	cases := []string{"has space", "has/slash", "../../etc", ""}
	for _, id := range cases {
		if _, err := m.OpenOrCreate(ctx, id); err == nil {
			t.Errorf("expected %q to be rejected as an invalid session id", id)
		}
	}
}

func TestGetReturnsNotFoundForUnopenedSession(t *testing.T) {
	m := newTestManager(t, Config{})
	if _, err := m.Get("never-opened"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestLRUEvictsOldestEntry covers B1/P7: once max_open_stores is reached,
// opening one more session evicts exactly the least-recently-accessed
// entry and the open set never exceeds the configured bound.
func TestLRUEvictsOldestEntry(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{MaxOpenStores: 2})

	if _, err := m.OpenOrCreate(ctx, "sess-1"); err != nil {
		t.Fatalf("open sess-1: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := m.OpenOrCreate(ctx, "sess-2"); err != nil {
		t.Fatalf("open sess-2: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	// Touch sess-1 so sess-2 becomes the least-recently-accessed entry.
	if _, err := m.Get("sess-1"); err != nil {
		t.Fatalf("get sess-1: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	if _, err := m.OpenOrCreate(ctx, "sess-3"); err != nil {
		t.Fatalf("open sess-3: %v", err)
	}

	if len(m.ListOpen()) != 2 {
		t.Fatalf("expected exactly 2 open sessions after eviction, got %d", len(m.ListOpen()))
	}
	if m.IsOpen("sess-2") {
		t.Fatal("expected sess-2 (least recently accessed) to have been evicted")
	}
	if !m.IsOpen("sess-1") || !m.IsOpen("sess-3") {
		t.Fatal("expected sess-1 and sess-3 to remain open")
	}
}

// TestIdleReaperClosesStaleEntries covers B2: entries past idle_timeout
// are closed by the background reaper even without explicit close calls.
func TestIdleReaperClosesStaleEntries(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{IdleTimeout: 1 * time.Millisecond})

	if _, err := m.OpenOrCreate(ctx, "sess-idle"); err != nil {
		t.Fatalf("open: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	m.reapIdle()

	if m.IsOpen("sess-idle") {
		t.Fatal("expected idle session to have been reaped")
	}
}

func TestCloseAndCloseAll(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{})

	for _, id := range []string{"s1", "s2", "s3"} {
		if _, err := m.OpenOrCreate(ctx, id); err != nil {
			t.Fatalf("open %s: %v", id, err)
		}
	}

	if err := m.Close("s1"); err != nil {
		t.Fatalf("close s1: %v", err)
	}
	if m.IsOpen("s1") {
		t.Fatal("expected s1 to be closed")
	}

	// Closing an already-closed or unknown session is a success.
	if err := m.Close("s1"); err != nil {
		t.Fatalf("re-close should be idempotent: %v", err)
	}
	if err := m.Close("never-existed"); err != nil {
		t.Fatalf("close of unknown session should succeed: %v", err)
	}

	m.CloseAll()
	if len(m.ListOpen()) != 0 {
		t.Fatalf("expected no open sessions after close_all, got %d", len(m.ListOpen()))
	}
}

// TestPathTraversalRejected covers B4: an id that would escape base_path
// once joined and re-expanded is rejected, while a normal id resolves.
func TestPathTraversalRejected(t *testing.T) {
	m := newTestManager(t, Config{})
	if _, err := m.storePath("legit-id"); err != nil {
		t.Fatalf("expected a normal id to resolve cleanly: %v", err)
	}
	if _, err := m.storePath("/../../escape"); err != ErrPathTraversal {
		t.Fatalf("expected ErrPathTraversal for an escaping id, got %v", err)
	}
}

func TestMetadataAndHealth(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{})

	if _, err := m.OpenOrCreate(ctx, "sess-meta"); err != nil {
		t.Fatalf("open: %v", err)
	}
	meta, err := m.Metadata("sess-meta")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.OpenedAt.IsZero() || !meta.OntologyLoaded {
		t.Fatalf("expected populated metadata, got %+v", meta)
	}
	if err := m.Health(ctx, "sess-meta"); err != nil {
		t.Fatalf("health: %v", err)
	}
}

// TestManySequentialSessionsStayWithinBound exercises S3 at a smaller
// scale: many distinct sessions are opened one after another past
// capacity, forcing evictions, and the open set never exceeds
// max_open_stores.
func TestManySequentialSessionsStayWithinBound(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{MaxOpenStores: 5})

	for i := 0; i < 20; i++ {
		id := "sess-" + string(rune('a'+i%26))
		if _, err := m.OpenOrCreate(ctx, id); err != nil {
			t.Fatalf("open %s: %v", id, err)
		}
		if got := len(m.ListOpen()); got > 5 {
			t.Fatalf("open set exceeded max_open_stores: %d > 5", got)
		}
	}
}

// TestConcurrentOpenOrCreateRespectsCapacity launches many distinct new
// sessions truly concurrently, covering the race the sequential S3 test
// above cannot: two OpenOrCreate calls for different session ids both
// observing the open set below max_open_stores before either finishes its
// store-open I/O. P7 requires the bound to hold regardless.
func TestConcurrentOpenOrCreateRespectsCapacity(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{MaxOpenStores: 5})

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "csess-" + strconv.Itoa(i)
			if _, err := m.OpenOrCreate(ctx, id); err != nil {
				t.Errorf("open %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(m.ListOpen()); got > 5 {
		t.Fatalf("open set exceeded max_open_stores under concurrency: %d > 5", got)
	}
}

// TestConcurrentOpenOrCreateSameSessionSharesOneStore launches many
// concurrent OpenOrCreate calls for the same session id and asserts they
// all observe the same underlying store rather than racing open duplicates.
func TestConcurrentOpenOrCreateSameSessionSharesOneStore(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{})

	const n = 20
	handles := make([]*Handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := m.OpenOrCreate(ctx, "shared-sess")
			if err != nil {
				t.Errorf("open: %v", err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	for i, h := range handles {
		if h == nil {
			continue
		}
		if h.Store() != handles[0].Store() {
			t.Fatalf("handle %d has a different store than handle 0; duplicate open occurred", i)
		}
	}
}
