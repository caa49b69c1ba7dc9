// Package ontology loads the fixed set of Turtle documents that describe
// the memory subsystem's class and property vocabulary into a session's
// triple store.
package ontology

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jido-ai/jido-memory/pkg/logging"
	"github.com/jido-ai/jido-memory/pkg/triplestore"
)

//go:embed data/*.ttl
var embeddedDocs embed.FS

// documentOrder is the fixed load order required for class hierarchies to
// resolve correctly: a subclass document always loads after the class it
// subclasses.
var documentOrder = []string{
	"01_core.ttl",
	"02_knowledge.ttl",
	"03_decisions.ttl",
	"04_conventions.ttl",
	"05_errors.ttl",
	"06_sessions.ttl",
	"07_agents.ttl",
	"08_projects.ttl",
	"09_tasks.ttl",
	"10_code.ttl",
}

// ontologyNamespace is the subject prefix every ontology term is minted
// under, used to scope purge-on-reload to ontology triples only.
const ontologyNamespace = "https://jido.ai/ontology#"

const askOntologyLoaded = `
PREFIX owl: <http://www.w3.org/2002/07/owl#>
PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
PREFIX : <https://jido.ai/ontology#>
ASK { :MemoryItem rdf:type owl:Class }
`

// Loader discovers and loads the fixed ontology documents into a store.
// It searches, in order, the current working directory, the directory the
// running executable lives in, and finally falls back to the copy embedded
// in the binary at build time — so a store can always be bootstrapped even
// when no data/ directory ships alongside the binary.
type Loader struct {
	searchDirs []string
	logger     *logging.Logger
}

// NewLoader builds a Loader with the default discovery search path.
func NewLoader() *Loader {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(cwd, "pkg", "ontology", "data"), filepath.Join(cwd, "data"))
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "data"))
	}
	return &Loader{searchDirs: dirs, logger: logging.NewLogger()}
}

// Loaded reports whether the ontology has already been loaded into store,
// by probing for the presence of the root MemoryItem class.
func (l *Loader) Loaded(ctx context.Context, store *triplestore.Store) (bool, error) {
	result, err := store.Query(ctx, askOntologyLoaded)
	if err != nil {
		return false, fmt.Errorf("ontology: probe load state: %w", err)
	}
	return result.Boolean != nil && *result.Boolean, nil
}

// Load inserts every ontology document into store in fixed order. It is
// safe to call on an already-loaded store: triples are inserted with
// INSERT OR IGNORE semantics by the underlying store, so re-loading is
// idempotent rather than duplicating data.
//
// Every document in documentOrder is attempted even after an earlier one
// fails, so one missing or malformed file never hides a second; all
// failures are aggregated into a single returned error.
func (l *Loader) Load(ctx context.Context, store *triplestore.Store) (int, error) {
	total := 0
	var errs []error
	for _, name := range documentOrder {
		src, err := l.readDocument(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("ontology: load %s: %w", name, err))
			continue
		}
		triples, err := triplestore.ParseTurtle(src)
		if err != nil {
			errs = append(errs, fmt.Errorf("ontology: parse %s: %w", name, err))
			continue
		}
		if err := store.InsertTriples(ctx, triples); err != nil {
			errs = append(errs, fmt.Errorf("ontology: insert %s: %w", name, err))
			continue
		}
		total += len(triples)
	}
	if len(errs) > 0 {
		return total, errors.Join(errs...)
	}
	return total, nil
}

// Reload purges every triple minted under the ontology namespace and
// re-loads the fixed document set from scratch. Memory records, whose
// subjects share the namespace under a "record_" prefix, are untouched. The
// before/after class and property counts are logged so an operator can
// see whether the reload actually changed anything, rather than trusting
// that purge-then-load was a no-op.
func (l *Loader) Reload(ctx context.Context, store *triplestore.Store) (int, error) {
	beforeClasses, _ := l.Classes(ctx, store)
	beforeProps, _ := l.Properties(ctx, store)

	all, err := store.AllTriples(ctx)
	if err != nil {
		return 0, fmt.Errorf("ontology: purge before reload: %w", err)
	}
	for _, t := range all {
		if !strings.HasPrefix(t.Subject, ontologyNamespace) || strings.HasPrefix(t.Subject, ontologyNamespace+"record_") {
			continue
		}
		if _, err := store.DeleteTriples(ctx, t); err != nil {
			return 0, fmt.Errorf("ontology: purge before reload: %w", err)
		}
	}
	n, err := l.Load(ctx, store)
	if err != nil {
		return n, err
	}

	afterClasses, _ := l.Classes(ctx, store)
	afterProps, _ := l.Properties(ctx, store)
	l.logDrift(len(beforeClasses), len(afterClasses), len(beforeProps), len(afterProps))

	return n, nil
}

func (l *Loader) logDrift(beforeClasses, afterClasses, beforeProps, afterProps int) {
	if l.logger == nil {
		return
	}
	l.logger.Info("ontology reload drift",
		logging.Int("classes_before", beforeClasses),
		logging.Int("classes_after", afterClasses),
		logging.Int("properties_before", beforeProps),
		logging.Int("properties_after", afterProps),
	)
}

// readDocument resolves a single document name through the search path,
// falling back to the build-time embedded copy.
func (l *Loader) readDocument(name string) (string, error) {
	for _, dir := range l.searchDirs {
		path := filepath.Join(dir, name)
		b, err := os.ReadFile(path)
		if err == nil {
			return string(b), nil
		}
	}
	b, err := fs.ReadFile(embeddedDocs, "data/"+name)
	if err != nil {
		return "", fmt.Errorf("document %q not found in search path or embedded fallback: %w", name, err)
	}
	return string(b), nil
}

const selectClasses = `
PREFIX owl: <http://www.w3.org/2002/07/owl#>
SELECT ?c WHERE { ?c a owl:Class }
`

const selectProperties = `
PREFIX owl: <http://www.w3.org/2002/07/owl#>
SELECT ?p WHERE { ?p a owl:DatatypeProperty }
`

const selectObjectProperties = `
PREFIX owl: <http://www.w3.org/2002/07/owl#>
SELECT ?p WHERE { ?p a owl:ObjectProperty }
`

// selectIndividuals matches subjects typed as an instance of a declared
// class (?c a owl:Class) rather than as a class or property itself: every
// class in the ontology subclasses via rdfs:subClassOf, never "a", so this
// alone separates named individuals like :HighConfidence from the classes
// and properties the other two queries return.
const selectIndividuals = `
PREFIX owl: <http://www.w3.org/2002/07/owl#>
SELECT ?i WHERE { ?i a ?c . ?c a owl:Class }
`

// Classes returns the IRI of every owl:Class declared across the loaded
// ontology documents.
func (l *Loader) Classes(ctx context.Context, store *triplestore.Store) ([]string, error) {
	return l.selectColumn(ctx, store, selectClasses, "c")
}

// Properties returns the IRI of every datatype and object property
// declared across the loaded ontology documents.
func (l *Loader) Properties(ctx context.Context, store *triplestore.Store) ([]string, error) {
	datatype, err := l.selectColumn(ctx, store, selectProperties, "p")
	if err != nil {
		return nil, err
	}
	object, err := l.selectColumn(ctx, store, selectObjectProperties, "p")
	if err != nil {
		return nil, err
	}
	return append(datatype, object...), nil
}

// Individuals returns the IRI of every named individual declared across the
// loaded ontology documents: subjects asserted as instances of a declared
// class, as opposed to classes or properties themselves. Memory records
// held in the same store are typed by declared classes too, so they are
// returned alongside the ontology's own individuals.
func (l *Loader) Individuals(ctx context.Context, store *triplestore.Store) ([]string, error) {
	return l.selectColumn(ctx, store, selectIndividuals, "i")
}

func (l *Loader) selectColumn(ctx context.Context, store *triplestore.Store, query, variable string) ([]string, error) {
	result, err := store.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ontology: query: %w", err)
	}
	values := make([]string, 0, len(result.Bindings))
	for _, row := range result.Bindings {
		if v, ok := row[variable]; ok {
			values = append(values, v.Value)
		}
	}
	return values, nil
}
