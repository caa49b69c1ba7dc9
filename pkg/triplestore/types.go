// Package triplestore implements a small, embedded RDF triple store backed
// by SQLite, plus a SPARQL-subset query/update engine sized to exactly the
// clause shapes the memory adapter composes (PREFIX blocks, basic graph
// patterns, FILTER NOT EXISTS, STRSTARTS scoping, INSERT DATA / DELETE
// DATA / DELETE WHERE, ORDER BY / LIMIT, COUNT(*)). It does not implement full
// SPARQL 1.1.
package triplestore

import "time"

// TermKind distinguishes the three RDF term shapes a triple position can hold.
type TermKind string

const (
	TermIRI     TermKind = "uri"
	TermLiteral TermKind = "literal"
	TermBlank   TermKind = "bnode"
)

// Triple is one RDF statement. Subject and Predicate are always IRIs.
// Object may be an IRI or a literal; Datatype/Lang only apply to literals.
type Triple struct {
	Subject     string
	Predicate   string
	Object      string
	ObjectKind  TermKind
	Datatype    string
	Lang        string
	Graph       string
}

// QueryResult is the outcome of a SPARQL SELECT or ASK query.
type QueryResult struct {
	Variables []string
	Bindings  []BindingRow
	QueryType string // SELECT, ASK
	Boolean   *bool  // set for ASK queries
	Duration  time.Duration
}

// BindingRow maps a SPARQL variable name (without '?') to its bound value.
type BindingRow map[string]BindingValue

// BindingValue is a single bound term in a result row.
type BindingValue struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

// GraphStats aggregates store-wide counts used by get_stats.
type GraphStats struct {
	TotalTriples       int
	DistinctSubjects   int
	DistinctPredicates int
	DistinctObjects    int
	ByType             map[string]int
	ByConfidence       map[string]int
	WithEvidence       int
	WithRationale      int
	Active             int
	Superseded         int
}
