package triplestore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// binding is one partial or complete set of variable->term assignments
// produced while evaluating a basic graph pattern.
type binding map[string]term

func (b binding) clone() binding {
	c := make(binding, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

// Query executes a SPARQL SELECT or ASK query against the full triple set
// currently persisted in the store.
func (s *Store) Query(ctx context.Context, sparql string) (*QueryResult, error) {
	start := time.Now()

	pq, err := ParseQuery(sparql)
	if err != nil {
		return nil, fmt.Errorf("triplestore: parse query: %w", err)
	}

	triples, err := s.AllTriples(ctx)
	if err != nil {
		return nil, fmt.Errorf("triplestore: load triples: %w", err)
	}

	bindings, err := evalGroupGraphPattern(pq.Where, triples, []binding{{}})
	if err != nil {
		return nil, err
	}

	result := &QueryResult{QueryType: pq.Form}

	if pq.Form == "ASK" {
		ok := len(bindings) > 0
		result.Boolean = &ok
		result.Duration = time.Since(start)
		return result, nil
	}

	if pq.CountAs != "" {
		result.Variables = []string{pq.CountAs}
		result.Bindings = []BindingRow{{
			pq.CountAs: BindingValue{Kind: TermLiteral, Value: fmt.Sprintf("%d", len(bindings)), Datatype: "http://www.w3.org/2001/XMLSchema#integer"},
		}}
		result.Duration = time.Since(start)
		return result, nil
	}

	if pq.OrderVar != "" {
		sort.SliceStable(bindings, func(i, j int) bool {
			vi, vj := bindings[i][pq.OrderVar], bindings[j][pq.OrderVar]
			if pq.OrderDesc {
				return vi.value > vj.value
			}
			return vi.value < vj.value
		})
	}

	if pq.HasLimit && pq.Limit >= 0 && len(bindings) > pq.Limit {
		bindings = bindings[:pq.Limit]
	}

	result.Variables = pq.Vars
	for _, b := range bindings {
		row := BindingRow{}
		for _, v := range pq.Vars {
			t, ok := b[v]
			if !ok {
				continue
			}
			row[v] = BindingValue{Kind: t.kind, Value: t.value, Datatype: t.datatype, Lang: t.lang}
		}
		result.Bindings = append(result.Bindings, row)
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Update executes a SPARQL Update request (INSERT DATA / DELETE DATA /
// DELETE WHERE, optionally ';'-separated).
func (s *Store) Update(ctx context.Context, sparql string) error {
	ops, err := ParseUpdate(sparql)
	if err != nil {
		return fmt.Errorf("triplestore: parse update: %w", err)
	}

	for _, op := range ops {
		switch op.Op {
		case "INSERT_DATA":
			triples, err := groundTriples(op.Where)
			if err != nil {
				return err
			}
			if err := s.InsertTriples(ctx, triples); err != nil {
				return fmt.Errorf("triplestore: insert: %w", err)
			}
		case "DELETE_DATA":
			triples, err := groundTriples(op.Where)
			if err != nil {
				return err
			}
			for _, t := range triples {
				if _, err := s.DeleteTriples(ctx, t); err != nil {
					return fmt.Errorf("triplestore: delete: %w", err)
				}
			}
		case "DELETE_WHERE":
			all, err := s.AllTriples(ctx)
			if err != nil {
				return err
			}
			bindings, err := evalGroupGraphPattern(op.Where, all, []binding{{}})
			if err != nil {
				return err
			}
			for _, b := range bindings {
				for _, elem := range op.Where {
					tp, ok := elem.(triplePattern)
					if !ok {
						continue
					}
					concrete := Triple{
						Subject:   resolveTermValue(tp.Subject, b),
						Predicate: resolveTermValue(tp.Predicate, b),
						Object:    resolveTermValue(tp.Object, b),
					}
					if _, err := s.DeleteTriples(ctx, concrete); err != nil {
						return fmt.Errorf("triplestore: delete-where: %w", err)
					}
				}
			}
		default:
			return fmt.Errorf("triplestore: unsupported update operation %q", op.Op)
		}
	}
	return nil
}

func resolveTermValue(t term, b binding) string {
	if t.isVar {
		return b[t.varName].value
	}
	return t.value
}

// groundTriples converts triple patterns with no variables into concrete
// Triple values, erroring if any variable is present (as required for
// INSERT DATA / DELETE DATA, which operate on ground terms only).
func groundTriples(elems []groupElem) ([]Triple, error) {
	var out []Triple
	for _, elem := range elems {
		tp, ok := elem.(triplePattern)
		if !ok {
			continue
		}
		if tp.Subject.isVar || tp.Predicate.isVar || tp.Object.isVar {
			return nil, fmt.Errorf("triplestore: DATA operations require ground terms, got variable")
		}
		out = append(out, Triple{
			Subject:    tp.Subject.value,
			Predicate:  tp.Predicate.value,
			Object:     tp.Object.value,
			ObjectKind: tp.Object.kind,
			Datatype:   tp.Object.datatype,
			Lang:       tp.Object.lang,
		})
	}
	return out, nil
}

// evalGroupGraphPattern threads a set of candidate bindings through each
// element of a basic graph pattern: triple patterns narrow/extend
// bindings via nested-loop join, FILTER NOT EXISTS drops bindings that
// have an extension, and FILTER evaluates a boolean expression per binding.
func evalGroupGraphPattern(elems []groupElem, triples []Triple, bindings []binding) ([]binding, error) {
	for _, elem := range elems {
		var err error
		switch e := elem.(type) {
		case triplePattern:
			bindings = joinTriplePattern(bindings, e, triples)
		case filterNotExists:
			bindings = filterByNotExists(bindings, e, triples)
		case filterExpr:
			bindings, err = filterByExpr(bindings, e)
			if err != nil {
				return nil, err
			}
		}
		if len(bindings) == 0 {
			return bindings, nil
		}
	}
	return bindings, nil
}

func joinTriplePattern(in []binding, pat triplePattern, triples []Triple) []binding {
	var out []binding
	for _, b := range in {
		for _, t := range triples {
			nb, ok := matchTriple(b, pat, t)
			if ok {
				out = append(out, nb)
			}
		}
	}
	return out
}

func matchTriple(b binding, pat triplePattern, t Triple) (binding, bool) {
	nb := b.clone()
	if !matchTerm(nb, pat.Subject, t.Subject, TermIRI, "", "") {
		return nil, false
	}
	if !matchTerm(nb, pat.Predicate, t.Predicate, TermIRI, "", "") {
		return nil, false
	}
	if !matchTerm(nb, pat.Object, t.Object, t.ObjectKind, t.Datatype, t.Lang) {
		return nil, false
	}
	return nb, true
}

func matchTerm(b binding, pat term, value string, kind TermKind, datatype, lang string) bool {
	if pat.isVar {
		if existing, ok := b[pat.varName]; ok {
			return existing.value == value
		}
		b[pat.varName] = term{value: value, kind: kind, datatype: datatype, lang: lang}
		return true
	}
	return pat.value == value
}

// filterByNotExists removes bindings for which the nested pattern set has
// at least one extension consistent with the current binding.
func filterByNotExists(in []binding, f filterNotExists, triples []Triple) []binding {
	var out []binding
	for _, b := range in {
		extended := evalGroupGraphPatternSimple(f.Patterns, triples, []binding{b.clone()})
		if len(extended) == 0 {
			out = append(out, b)
		}
	}
	return out
}

func evalGroupGraphPatternSimple(patterns []triplePattern, triples []Triple, bindings []binding) []binding {
	for _, pat := range patterns {
		bindings = joinTriplePattern(bindings, pat, triples)
		if len(bindings) == 0 {
			return bindings
		}
	}
	return bindings
}

var strstartsRe = regexp.MustCompile(`(?i)^STRSTARTS\s*\(\s*STR\s*\(\s*\?(\w+)\s*\)\s*,\s*"((?:[^"\\]|\\.)*)"\s*\)$`)
var eqRe = regexp.MustCompile(`(?i)^\?(\w+)\s*=\s*"((?:[^"\\]|\\.)*)"$`)

// filterByExpr evaluates the small set of filter expression shapes the
// adapter emits: STRSTARTS(STR(?v), "prefix") and ?v = "literal".
func filterByExpr(in []binding, f filterExpr) ([]binding, error) {
	expr := strings.TrimSpace(f.Expr)

	if m := strstartsRe.FindStringSubmatch(expr); m != nil {
		varName, prefix := m[1], unescapeSPARQLString(m[2])
		var out []binding
		for _, b := range in {
			if v, ok := b[varName]; ok && strings.HasPrefix(v.value, prefix) {
				out = append(out, b)
			}
		}
		return out, nil
	}

	if m := eqRe.FindStringSubmatch(expr); m != nil {
		varName, want := m[1], unescapeSPARQLString(m[2])
		var out []binding
		for _, b := range in {
			if v, ok := b[varName]; ok && v.value == want {
				out = append(out, b)
			}
		}
		return out, nil
	}

	return nil, fmt.Errorf("triplestore: unsupported filter expression %q", expr)
}

func unescapeSPARQLString(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}
