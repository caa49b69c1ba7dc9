package memory

import (
	"context"
	"fmt"
	"strings"
)

// Relationship is one of the fixed relationship tags query_related
// understands.
type Relationship string

const (
	RelationDerivedFrom  Relationship = "derived_from"
	RelationSupersededBy Relationship = "superseded_by"
	RelationSupersedes   Relationship = "supersedes"
	RelationSameType     Relationship = "same_type"
	RelationSameProject  Relationship = "same_project"
)

var validRelationships = map[Relationship]bool{
	RelationDerivedFrom: true, RelationSupersededBy: true, RelationSupersedes: true,
	RelationSameType: true, RelationSameProject: true,
}

// ValidRelationship reports whether tag is one of the supported relationship kinds.
func ValidRelationship(tag Relationship) bool {
	return validRelationships[tag]
}

// RelatedOptions bounds a relationship traversal.
type RelatedOptions struct {
	Depth             int
	Limit             int
	IncludeSuperseded bool
}

const (
	minDepth        = 1
	maxDepth        = 5
	defaultPerLevel = 10
	maxPerLevel     = 100
)

func clampDepth(d int) int {
	if d < minDepth {
		return minDepth
	}
	if d > maxDepth {
		return maxDepth
	}
	return d
}

func clampPerLevelLimit(l int) int {
	if l <= 0 {
		return defaultPerLevel
	}
	if l > maxPerLevel {
		return maxPerLevel
	}
	return l
}

// QueryRelated performs a bounded, cycle-safe breadth-first walk of the
// knowledge graph starting at startID, following a single relationship
// tag. Results are deduplicated across levels via a visited set and never
// include the start id itself.
func (a *Adapter) QueryRelated(ctx context.Context, store Store, sessionID, startID string, tag Relationship, opts RelatedOptions) ([]*Record, error) {
	if !ValidRelationship(tag) {
		return nil, fmt.Errorf("memory: unsupported relationship %q", tag)
	}
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if err := validateMemoryID(startID); err != nil {
		return nil, err
	}

	depth := clampDepth(opts.Depth)
	perLevel := clampPerLevelLimit(opts.Limit)

	start, err := a.QueryByIDForSession(ctx, store, sessionID, startID)
	if err != nil {
		return nil, err
	}

	// same_type/same_project/supersedes require an O(n) scan of the
	// session's records; fetched once and reused across every BFS level.
	var sessionRecords []*Record
	if tag == RelationSameType || tag == RelationSameProject || tag == RelationSupersedes {
		sessionRecords, err = a.QueryBySession(ctx, store, sessionID, QueryOptions{Limit: 1 << 20, IncludeSuperseded: true})
		if err != nil {
			return nil, err
		}
	}

	visited := map[string]bool{startID: true}
	frontier := []*Record{start}
	var result []*Record

	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []*Record
		var levelNeighbors []*Record

		for _, r := range frontier {
			neighbors, err := a.neighbors(ctx, store, r, tag, sessionRecords, opts.IncludeSuperseded)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				if visited[n.ID] {
					continue
				}
				visited[n.ID] = true
				levelNeighbors = append(levelNeighbors, n)
				next = append(next, n)
				if len(levelNeighbors) >= perLevel {
					break
				}
			}
			if len(levelNeighbors) >= perLevel {
				break
			}
		}

		result = append(result, levelNeighbors...)
		frontier = next
	}

	return result, nil
}

// neighbors expands a single record along tag, relying on sessionRecords
// (pre-fetched once per call) for the relationships that require a full
// session scan.
func (a *Adapter) neighbors(ctx context.Context, store Store, r *Record, tag Relationship, sessionRecords []*Record, includeSuperseded bool) ([]*Record, error) {
	switch tag {
	case RelationDerivedFrom:
		var out []*Record
		for _, ref := range r.EvidenceRefs {
			if !strings.HasPrefix(ref, "mem-") || !ValidID(ref) {
				continue
			}
			neighbor, err := a.QueryByIDForSession(ctx, store, r.SessionID, ref)
			if err != nil {
				continue
			}
			out = append(out, neighbor)
		}
		return out, nil

	case RelationSupersededBy:
		if r.SupersededBy == "" || r.SupersededBy == DeletedSentinel {
			return nil, nil
		}
		neighbor, err := a.QueryByIDForSession(ctx, store, r.SessionID, r.SupersededBy)
		if err != nil {
			return nil, nil
		}
		return []*Record{neighbor}, nil

	case RelationSupersedes:
		var out []*Record
		for _, candidate := range sessionRecords {
			if candidate.SupersededBy == r.ID {
				out = append(out, candidate)
			}
		}
		return out, nil

	case RelationSameType:
		var out []*Record
		for _, candidate := range sessionRecords {
			if candidate.ID == r.ID {
				continue
			}
			if !includeSuperseded && !candidate.Active() {
				continue
			}
			if candidate.MemoryType == r.MemoryType {
				out = append(out, candidate)
			}
		}
		return out, nil

	case RelationSameProject:
		if r.ProjectID == "" {
			return nil, nil
		}
		var out []*Record
		for _, candidate := range sessionRecords {
			if candidate.ID == r.ID {
				continue
			}
			if !includeSuperseded && !candidate.Active() {
				continue
			}
			if candidate.ProjectID == r.ProjectID {
				out = append(out, candidate)
			}
		}
		return out, nil
	}
	return nil, nil
}
