package memory

import "context"

// GraphNode is one record rendered as a visualization node.
type GraphNode struct {
	ID         string                 `json:"id"`
	Label      string                 `json:"label"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// GraphEdge is one relationship rendered as a visualization edge.
type GraphEdge struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Predicate string `json:"predicate"`
}

// GraphVisualization is a read-only subgraph view of a session's active
// records, suitable for handing to a UI. It carries no new invariants of
// its own; it is a projection over data QueryBySession already returns.
type GraphVisualization struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Export renders sessionID's records as a GraphVisualization. Only active
// records become nodes, since superseded ones are not part of the active
// knowledge surface a caller would want to render. Edges are drawn from
// every record of the session, superseded ones included: a derived_from
// edge to each evidence ref that is itself a record of the session, and a
// superseded_by edge from a superseded record to its replacement. An
// edge's source can therefore be a record that has no node of its own.
func (a *Adapter) Export(ctx context.Context, store Store, sessionID string) (*GraphVisualization, error) {
	records, err := a.QueryBySession(ctx, store, sessionID, QueryOptions{Limit: 1 << 20, IncludeSuperseded: true})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	viz := &GraphVisualization{}
	for _, r := range records {
		if r.Active() {
			viz.Nodes = append(viz.Nodes, GraphNode{
				ID:    r.ID,
				Label: r.Content,
				Type:  string(r.MemoryType),
				Properties: map[string]interface{}{
					"confidence": r.Confidence,
					"source":     string(r.SourceType),
				},
			})
		}
		for _, ref := range r.EvidenceRefs {
			if _, ok := byID[ref]; ok {
				viz.Edges = append(viz.Edges, GraphEdge{Source: r.ID, Target: ref, Predicate: string(RelationDerivedFrom)})
			}
		}
		if r.SupersededBy != "" && r.SupersededBy != DeletedSentinel {
			if _, ok := byID[r.SupersededBy]; ok {
				viz.Edges = append(viz.Edges, GraphEdge{Source: r.ID, Target: r.SupersededBy, Predicate: string(RelationSupersededBy)})
			}
		}
	}
	return viz, nil
}
