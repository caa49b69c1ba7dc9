package ontology

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jido-ai/jido-memory/pkg/triplestore"
)

func openTestStore(t *testing.T) *triplestore.Store {
	t.Helper()
	store, err := triplestore.Open(t.TempDir(), true)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// loaderWithoutSearchPath exercises the embedded fallback in isolation:
// with no search directories, every document is read from the copy
// embedded at build time, even though the test's working directory has a
// data/ directory that NewLoader would find.
func loaderWithoutSearchPath() *Loader {
	return &Loader{}
}

func TestLoadedFalseBeforeLoad(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	l := loaderWithoutSearchPath()

	loaded, err := l.Loaded(ctx, store)
	if err != nil {
		t.Fatalf("Loaded: %v", err)
	}
	if loaded {
		t.Fatal("expected ontology to be unloaded on a fresh store")
	}
}

func TestLoadInsertsAllDocumentsInOrder(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	l := loaderWithoutSearchPath()

	count, err := l.Load(ctx, store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if count == 0 {
		t.Fatal("expected Load to insert triples")
	}

	loaded, err := l.Loaded(ctx, store)
	if err != nil {
		t.Fatalf("Loaded: %v", err)
	}
	if !loaded {
		t.Fatal("expected ontology to report loaded after Load")
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	l := loaderWithoutSearchPath()

	first, err := l.Load(ctx, store)
	if err != nil {
		t.Fatalf("first Load: %v", err)
	}
	second, err := l.Load(ctx, store)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if first != second {
		t.Fatalf("expected reload to insert the same triple count, got %d then %d", first, second)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalTriples != first {
		t.Fatalf("duplicate inserts leaked through: loaded %d distinct triples, store has %d", first, stats.TotalTriples)
	}
}

func TestReloadPurgesAndReloads(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	l := loaderWithoutSearchPath()

	if _, err := l.Load(ctx, store); err != nil {
		t.Fatalf("Load: %v", err)
	}

	count, err := l.Reload(ctx, store)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if count == 0 {
		t.Fatal("expected Reload to re-insert triples")
	}

	loaded, err := l.Loaded(ctx, store)
	if err != nil {
		t.Fatalf("Loaded: %v", err)
	}
	if !loaded {
		t.Fatal("expected ontology to report loaded after Reload")
	}
}

func TestClassesAndProperties(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	l := loaderWithoutSearchPath()

	if _, err := l.Load(ctx, store); err != nil {
		t.Fatalf("Load: %v", err)
	}

	classes, err := l.Classes(ctx, store)
	if err != nil {
		t.Fatalf("Classes: %v", err)
	}
	if len(classes) == 0 {
		t.Fatal("expected at least one owl:Class")
	}
	found := false
	for _, c := range classes {
		if c == "https://jido.ai/ontology#MemoryItem" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected MemoryItem among classes, got %v", classes)
	}

	props, err := l.Properties(ctx, store)
	if err != nil {
		t.Fatalf("Properties: %v", err)
	}
	if len(props) == 0 {
		t.Fatal("expected at least one property")
	}
}

func TestIndividuals(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	l := loaderWithoutSearchPath()

	if _, err := l.Load(ctx, store); err != nil {
		t.Fatalf("Load: %v", err)
	}

	individuals, err := l.Individuals(ctx, store)
	if err != nil {
		t.Fatalf("Individuals: %v", err)
	}

	want := map[string]bool{
		"https://jido.ai/ontology#HighConfidence": false,
		"https://jido.ai/ontology#UserSource":     false,
		"https://jido.ai/ontology#DeletedMarker":  false,
	}
	for _, i := range individuals {
		if _, ok := want[i]; ok {
			want[i] = true
		}
	}
	for iri, seen := range want {
		if !seen {
			t.Fatalf("expected %s among individuals, got %v", iri, individuals)
		}
	}

	classes, err := l.Classes(ctx, store)
	if err != nil {
		t.Fatalf("Classes: %v", err)
	}
	classSet := make(map[string]bool, len(classes))
	for _, c := range classes {
		classSet[c] = true
	}
	for _, i := range individuals {
		if classSet[i] {
			t.Fatalf("expected individuals and classes to be disjoint, %s appeared in both", i)
		}
	}
}

// TestLoadAggregatesAllDocumentFailures covers the requirement that a
// failing document never aborts the rest of the load set: every document
// is still attempted, and every failure is reflected in the returned error.
func TestLoadAggregatesAllDocumentFailures(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "01_core.ttl"), []byte("this is not valid turtle {{{"), 0o644); err != nil {
		t.Fatalf("write broken doc: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "05_errors.ttl"), []byte("also not valid turtle }}}"), 0o644); err != nil {
		t.Fatalf("write broken doc: %v", err)
	}
	l := &Loader{searchDirs: []string{dir}}

	_, err := l.Load(ctx, store)
	if err == nil {
		t.Fatal("expected Load to fail when documents are malformed")
	}
	msg := err.Error()
	if !strings.Contains(msg, "01_core.ttl") {
		t.Fatalf("expected aggregated error to mention 01_core.ttl, got %q", msg)
	}
	if !strings.Contains(msg, "05_errors.ttl") {
		t.Fatalf("expected aggregated error to mention 05_errors.ttl, got %q", msg)
	}

	classes, classErr := l.Classes(ctx, store)
	if classErr != nil {
		t.Fatalf("Classes: %v", classErr)
	}
	found := false
	for _, c := range classes {
		if c == "https://jido.ai/ontology#Session" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the unaffected 06_sessions.ttl document to have loaded despite earlier failures, classes=%v", classes)
	}
}
