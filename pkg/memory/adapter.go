package memory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jido-ai/jido-memory/pkg/triplestore"
)

// Store is the subset of *triplestore.Store the adapter depends on,
// narrowed to ease substitution in tests.
type Store interface {
	InsertTriples(ctx context.Context, triples []triplestore.Triple) error
	DeleteTriples(ctx context.Context, pattern triplestore.Triple) (int, error)
	TriplesForSubject(ctx context.Context, subject string) ([]triplestore.Triple, error)
	AllTriples(ctx context.Context) ([]triplestore.Triple, error)
	Query(ctx context.Context, sparql string) (*triplestore.QueryResult, error)
	Update(ctx context.Context, sparql string) error
}

// QueryOptions bounds the result set returned by a listing query.
type QueryOptions struct {
	Limit             int
	MinConfidence     ConfidenceLevel
	IncludeSuperseded bool
}

// defaultListLimit is the engine-defined ceiling applied when the caller
// does not specify one.
const defaultListLimit = 50

// Adapter exposes the record-level API over a session's triple store. It
// is stateless aside from the store handle passed into every call.
type Adapter struct {
	// SessionMemoryLimit caps the number of active records a single
	// session's store may hold; zero means unbounded. The exact cap is a
	// caller policy, not a property of the core itself.
	SessionMemoryLimit int
}

// NewAdapter builds an Adapter with the given session memory cap (0 = unbounded).
func NewAdapter(sessionMemoryLimit int) *Adapter {
	return &Adapter{SessionMemoryLimit: sessionMemoryLimit}
}

// Persist validates and inserts a new memory record, returning its id.
func (a *Adapter) Persist(ctx context.Context, store Store, r *Record) (string, error) {
	if err := validateRecord(r); err != nil {
		return "", err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if a.SessionMemoryLimit > 0 {
		n, err := a.Count(ctx, store, r.SessionID, QueryOptions{})
		if err == nil && n >= a.SessionMemoryLimit {
			return "", ErrSessionMemoryLimit
		}
	}
	if err := store.InsertTriples(ctx, toTriples(r)); err != nil {
		return "", fmt.Errorf("memory: persist: %w", err)
	}
	return r.ID, nil
}

// QueryByID returns the record with the given id, regardless of owning
// session. Internal only — callers outside the adapter should use the
// session-checked form.
func (a *Adapter) QueryByID(ctx context.Context, store Store, memoryID string) (*Record, error) {
	if err := validateMemoryID(memoryID); err != nil {
		return nil, err
	}
	triples, err := store.TriplesForSubject(ctx, recordIRI(memoryID))
	if err != nil {
		return nil, fmt.Errorf("memory: query_by_id: %w", err)
	}
	r, ok := fromTriples(triples)
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// QueryByIDForSession returns the record with the given id, but only if it
// is owned by sessionID; otherwise not_found, whether or not the record
// exists under another session.
func (a *Adapter) QueryByIDForSession(ctx context.Context, store Store, sessionID, memoryID string) (*Record, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	r, err := a.QueryByID(ctx, store, memoryID)
	if err != nil {
		return nil, err
	}
	if r.SessionID != sessionID {
		return nil, ErrNotFound
	}
	return r, nil
}

// QueryBySession lists records owned by sessionID, most-recent-first.
func (a *Adapter) QueryBySession(ctx context.Context, store Store, sessionID string, opts QueryOptions) ([]*Record, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	return a.listBySubjectQuery(ctx, store, selectSubjectsBySession(sessionID, opts.IncludeSuperseded), opts)
}

// QueryByType lists records of memType owned by sessionID, most-recent-first.
func (a *Adapter) QueryByType(ctx context.Context, store Store, sessionID string, memType Type, opts QueryOptions) ([]*Record, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if !ValidType(memType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMemoryType, memType)
	}
	return a.listBySubjectQuery(ctx, store, selectSubjectsByType(sessionID, memType, opts.IncludeSuperseded), opts)
}

func (a *Adapter) listBySubjectQuery(ctx context.Context, store Store, sparql string, opts QueryOptions) ([]*Record, error) {
	result, err := store.Query(ctx, sparql)
	if err != nil {
		return nil, fmt.Errorf("memory: query: %w", err)
	}

	records := make([]*Record, 0, len(result.Bindings))
	for _, row := range result.Bindings {
		subj, ok := row["mem"]
		if !ok {
			continue
		}
		triples, err := store.TriplesForSubject(ctx, subj.Value)
		if err != nil {
			return nil, fmt.Errorf("memory: fetch record: %w", err)
		}
		r, ok := fromTriples(triples)
		if !ok {
			continue
		}
		if !passesMinConfidence(r, opts.MinConfidence) {
			continue
		}
		records = append(records, r)
	}

	sortMostRecentFirst(records)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func passesMinConfidence(r *Record, min ConfidenceLevel) bool {
	if min == "" {
		return true
	}
	rank := map[ConfidenceLevel]int{ConfidenceLow: 0, ConfidenceMedium: 1, ConfidenceHigh: 2}
	return rank[r.ConfidenceLevel()] >= rank[min]
}

func recordTimestamp(r *Record) time.Time {
	if !r.LastAccessed.IsZero() {
		return r.LastAccessed
	}
	return r.CreatedAt
}

func sortMostRecentFirst(records []*Record) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && recordTimestamp(records[j]).After(recordTimestamp(records[j-1])); j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}

// Supersede marks oldID terminal, pointing superseded_by at newID, or at
// the deletion sentinel if newID is empty. Superseding an already
// superseded record is a no-op success, per the terminal state invariant.
func (a *Adapter) Supersede(ctx context.Context, store Store, sessionID, oldID, newID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	existing, err := a.QueryByIDForSession(ctx, store, sessionID, oldID)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	if !existing.Active() {
		return nil
	}
	if newID != "" {
		if err := validateMemoryID(newID); err != nil {
			return err
		}
	}
	sentinelOrID := newID
	if sentinelOrID == "" {
		sentinelOrID = DeletedSentinel
	}
	sparql := deleteAndInsertSupersededBy(recordIRI(oldID), supersessorIRI(sentinelOrID))
	if err := store.Update(ctx, sparql); err != nil {
		return fmt.Errorf("memory: supersede: %w", err)
	}
	return nil
}

// Delete soft-deletes a record via supersession by the deletion sentinel.
// Deleting a nonexistent record is success.
func (a *Adapter) Delete(ctx context.Context, store Store, sessionID, memoryID string) error {
	return a.Supersede(ctx, store, sessionID, memoryID, "")
}

// RecordAccess advances last_accessed to now and increments access_count.
// Best-effort: a missing record is silently ignored.
func (a *Adapter) RecordAccess(ctx context.Context, store Store, sessionID, memoryID string) error {
	r, err := a.QueryByIDForSession(ctx, store, sessionID, memoryID)
	if err != nil {
		return nil
	}
	subj := recordIRI(memoryID)
	if _, err := store.DeleteTriples(ctx, triplestore.Triple{Subject: subj, Predicate: predAccessCount}); err != nil {
		return fmt.Errorf("memory: record_access: %w", err)
	}
	if _, err := store.DeleteTriples(ctx, triplestore.Triple{Subject: subj, Predicate: predLastAccessed}); err != nil {
		return fmt.Errorf("memory: record_access: %w", err)
	}
	r.AccessCount++
	r.LastAccessed = time.Now().UTC()
	triples := []triplestore.Triple{
		{Subject: subj, Predicate: predAccessCount, Object: fmt.Sprintf("%d", r.AccessCount), ObjectKind: triplestore.TermLiteral, Datatype: xsdInteger},
		{Subject: subj, Predicate: predLastAccessed, Object: formatTime(r.LastAccessed), ObjectKind: triplestore.TermLiteral, Datatype: xsdDateTime},
	}
	if err := store.InsertTriples(ctx, triples); err != nil {
		return fmt.Errorf("memory: record_access: %w", err)
	}
	return nil
}

// Count returns the number of records owned by sessionID matching opts,
// or 0 on any backend error rather than propagating it.
func (a *Adapter) Count(ctx context.Context, store Store, sessionID string, opts QueryOptions) (int, error) {
	if err := validateSessionID(sessionID); err != nil {
		return 0, err
	}
	result, err := store.Query(ctx, countBySession(sessionID, opts.IncludeSuperseded))
	if err != nil {
		return 0, nil
	}
	if len(result.Bindings) == 0 {
		return 0, nil
	}
	row := result.Bindings[0]
	v, ok := row["n"]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Stats aggregates per-session counts used by get_stats: totals by type and
// confidence bucket, with-evidence/with-rationale counts, and the
// active/superseded split. The RDF-backed path is canonical; an
// in-memory-scan alternative once existed in the source this was
// distilled from and has been deliberately dropped in favor of this path.
func (a *Adapter) Stats(ctx context.Context, store Store, sessionID string) (*triplestore.GraphStats, error) {
	records, err := a.QueryBySession(ctx, store, sessionID, QueryOptions{Limit: 1 << 30, IncludeSuperseded: true})
	if err != nil {
		return nil, fmt.Errorf("memory: get_stats: %w", err)
	}

	gs := &triplestore.GraphStats{ByType: map[string]int{}, ByConfidence: map[string]int{}}
	for _, r := range records {
		gs.TotalTriples += len(toTriples(r))
		gs.ByType[string(r.MemoryType)]++
		gs.ByConfidence[string(r.ConfidenceLevel())]++
		if len(r.EvidenceRefs) > 0 {
			gs.WithEvidence++
		}
		if r.Rationale != "" {
			gs.WithRationale++
		}
		if r.Active() {
			gs.Active++
		} else {
			gs.Superseded++
		}
	}
	gs.DistinctSubjects = len(records)
	return gs, nil
}
