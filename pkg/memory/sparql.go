package memory

import "fmt"

// prefixBlock is prepended to every composed query and update. It binds
// the ontology namespace plus RDF, OWL, and XSD, the only namespaces the
// adapter's queries ever reference.
const prefixBlock = `
PREFIX : <https://jido.ai/ontology#>
PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
PREFIX owl: <http://www.w3.org/2002/07/owl#>
PREFIX xsd: <http://www.w3.org/2001/XMLSchema#>
`

// notSupersededFilter excludes any ?mem bound to a record carrying a
// supersededBy edge, unless includeSuperseded asks to keep it.
func notSupersededFilter(includeSuperseded bool) string {
	if includeSuperseded {
		return ""
	}
	return "FILTER NOT EXISTS { ?mem :supersededBy ?supersessor }"
}

// selectSubjectsBySession composes a SELECT listing every record subject
// owned by sessionID, scoped to the ontology namespace. sessionID must
// already have passed the safe-identifier predicate.
func selectSubjectsBySession(sessionID string, includeSuperseded bool) string {
	return fmt.Sprintf(`%s
SELECT ?mem WHERE {
  ?mem :hasSessionId "%s" .
  FILTER STRSTARTS(STR(?mem), "%s")
  %s
}`, prefixBlock, sessionID, Namespace, notSupersededFilter(includeSuperseded))
}

// selectSubjectsByType composes a SELECT listing every record subject of
// the given memory type owned by sessionID.
func selectSubjectsByType(sessionID string, memType Type, includeSuperseded bool) string {
	return fmt.Sprintf(`%s
SELECT ?mem WHERE {
  ?mem :hasSessionId "%s" .
  ?mem rdf:type <%s> .
  FILTER STRSTARTS(STR(?mem), "%s")
  %s
}`, prefixBlock, sessionID, memoryTypeIRI(memType), Namespace, notSupersededFilter(includeSuperseded))
}

// countBySession composes a SPARQL COUNT(*) over every record owned by
// sessionID.
func countBySession(sessionID string, includeSuperseded bool) string {
	return fmt.Sprintf(`%s
SELECT (COUNT(*) AS ?n) WHERE {
  ?mem :hasSessionId "%s" .
  FILTER STRSTARTS(STR(?mem), "%s")
  %s
}`, prefixBlock, sessionID, Namespace, notSupersededFilter(includeSuperseded))
}

// deleteAndInsertSupersededBy composes the two-statement update that marks
// a record terminal: remove any prior supersededBy edge, then assert the
// new one.
func deleteAndInsertSupersededBy(recordSubject, replacementObjectIRI string) string {
	return fmt.Sprintf(`%s
DELETE WHERE { <%s> :supersededBy ?old } ;
INSERT DATA { <%s> :supersededBy <%s> }`, prefixBlock, recordSubject, recordSubject, replacementObjectIRI)
}

