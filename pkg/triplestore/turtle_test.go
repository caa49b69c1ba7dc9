package triplestore

import "testing"

func TestParseTurtleBasic(t *testing.T) {
	src := `
@prefix : <https://jido.ai/ontology#> .
@prefix owl: <http://www.w3.org/2002/07/owl#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .

:MemoryItem a owl:Class ;
    rdfs:label "Memory Item" .

:hasContent a owl:DatatypeProperty ;
    rdfs:domain :MemoryItem ;
    rdfs:range xsd:string .
`
	triples, err := ParseTurtle(src)
	if err != nil {
		t.Fatalf("ParseTurtle failed: %v", err)
	}

	const ns = "https://jido.ai/ontology#"
	want := map[string]bool{
		ns + "MemoryItem|http://www.w3.org/1999/02/22-rdf-syntax-ns#type|http://www.w3.org/2002/07/owl#Class": false,
		ns + "MemoryItem|http://www.w3.org/2000/01/rdf-schema#label|Memory Item":                              false,
		ns + "hasContent|http://www.w3.org/1999/02/22-rdf-syntax-ns#type|http://www.w3.org/2002/07/owl#DatatypeProperty": false,
		ns + "hasContent|http://www.w3.org/2000/01/rdf-schema#domain|" + ns + "MemoryItem":                     false,
		ns + "hasContent|http://www.w3.org/2000/01/rdf-schema#range|http://www.w3.org/2001/XMLSchema#string":   false,
	}

	if len(triples) != len(want) {
		t.Fatalf("expected %d triples, got %d: %+v", len(want), len(triples), triples)
	}
	for _, tr := range triples {
		key := tr.Subject + "|" + tr.Predicate + "|" + tr.Object
		if _, ok := want[key]; !ok {
			t.Errorf("unexpected triple %q", key)
		}
	}
}

func TestParseTurtleTypedLiteral(t *testing.T) {
	src := `
@prefix : <https://jido.ai/ontology#> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .

:HighConfidence :hasValue "0.9"^^xsd:double .
`
	triples, err := ParseTurtle(src)
	if err != nil {
		t.Fatalf("ParseTurtle failed: %v", err)
	}
	if len(triples) != 1 {
		t.Fatalf("expected 1 triple, got %d", len(triples))
	}
	tr := triples[0]
	if tr.Object != "0.9" {
		t.Errorf("expected object 0.9, got %q", tr.Object)
	}
	if tr.Datatype != "http://www.w3.org/2001/XMLSchema#double" {
		t.Errorf("expected xsd:double datatype, got %q", tr.Datatype)
	}
}

func TestParseTurtleUnknownPrefix(t *testing.T) {
	_, err := ParseTurtle(`foo:Bar a owl:Class .`)
	if err == nil {
		t.Fatal("expected error for unknown prefix")
	}
}
