package memory

import (
	"strconv"
	"strings"
	"time"

	"github.com/jido-ai/jido-memory/pkg/triplestore"
)

// timeLayout is a fixed-width RFC 3339 variant (always UTC, always nine
// fractional digits) chosen so that the engine's lexicographic ORDER BY
// sort agrees with chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	xsdString   = "http://www.w3.org/2001/XMLSchema#string"
	xsdDouble   = "http://www.w3.org/2001/XMLSchema#double"
	xsdInteger  = "http://www.w3.org/2001/XMLSchema#integer"
	xsdDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// toTriples maps a validated record onto the set of RDF triples its
// persistence emits: the rdf:type assertion, the confidence and source
// individuals, and every literal-valued attribute.
func toTriples(r *Record) []Triple {
	subj := recordIRI(r.ID)
	triples := []Triple{
		{Subject: subj, Predicate: predType, Object: memoryTypeIRI(r.MemoryType), ObjectKind: triplestore.TermIRI},
		{Subject: subj, Predicate: predMemoryID, Object: r.ID, ObjectKind: triplestore.TermLiteral, Datatype: xsdString},
		{Subject: subj, Predicate: predSessionID, Object: r.SessionID, ObjectKind: triplestore.TermLiteral, Datatype: xsdString},
		{Subject: subj, Predicate: predContent, Object: r.Content, ObjectKind: triplestore.TermLiteral, Datatype: xsdString},
		{Subject: subj, Predicate: predConfidenceScore, Object: strconv.FormatFloat(r.Confidence, 'f', -1, 64), ObjectKind: triplestore.TermLiteral, Datatype: xsdDouble},
		{Subject: subj, Predicate: predConfidenceLevel, Object: confidenceIndividualIRI(r.ConfidenceLevel()), ObjectKind: triplestore.TermIRI},
		{Subject: subj, Predicate: predSourceType, Object: sourceIndividualIRI(r.SourceType), ObjectKind: triplestore.TermIRI},
		{Subject: subj, Predicate: predCreatedAt, Object: formatTime(r.CreatedAt), ObjectKind: triplestore.TermLiteral, Datatype: xsdDateTime},
		{Subject: subj, Predicate: predAccessCount, Object: strconv.Itoa(r.AccessCount), ObjectKind: triplestore.TermLiteral, Datatype: xsdInteger},
	}
	if r.Rationale != "" {
		triples = append(triples, Triple{Subject: subj, Predicate: predRationale, Object: r.Rationale, ObjectKind: triplestore.TermLiteral, Datatype: xsdString})
	}
	if r.ProjectID != "" {
		triples = append(triples, Triple{Subject: subj, Predicate: predHasProject, Object: r.ProjectID, ObjectKind: triplestore.TermLiteral, Datatype: xsdString})
	}
	if !r.LastAccessed.IsZero() {
		triples = append(triples, Triple{Subject: subj, Predicate: predLastAccessed, Object: formatTime(r.LastAccessed), ObjectKind: triplestore.TermLiteral, Datatype: xsdDateTime})
	}
	for _, ref := range r.EvidenceRefs {
		triples = append(triples, Triple{Subject: subj, Predicate: predEvidenceRef, Object: ref, ObjectKind: triplestore.TermLiteral, Datatype: xsdString})
	}
	if r.SupersededBy != "" {
		triples = append(triples, Triple{Subject: subj, Predicate: predSupersededBy, Object: supersessorIRI(r.SupersededBy), ObjectKind: triplestore.TermIRI})
	}
	return triples
}

// Triple is a local alias so mapping.go reads naturally against the
// adapter's own vocabulary while still being the triplestore package type.
type Triple = triplestore.Triple

// supersessorIRI mints the object IRI for a supersededBy edge, handling
// the deletion sentinel specially since it names a fixed individual rather
// than a record subject.
func supersessorIRI(idOrSentinel string) string {
	if idOrSentinel == DeletedSentinel {
		return deletedMarkerIRI
	}
	return recordIRI(idOrSentinel)
}

// idFromSupersessorIRI is the inverse of supersessorIRI.
func idFromSupersessorIRI(iri string) string {
	if iri == deletedMarkerIRI {
		return DeletedSentinel
	}
	return strings.TrimPrefix(iri, Namespace+"record_")
}

// fromTriples reconstructs a Record from every triple sharing one record
// subject. It returns ok=false if the subject carries no recognizable
// memory record triples at all.
func fromTriples(triples []Triple) (*Record, bool) {
	if len(triples) == 0 {
		return nil, false
	}
	r := &Record{}
	haveID := false
	for _, t := range triples {
		switch t.Predicate {
		case predType:
			if mt, ok := typeFromClassName(strings.TrimPrefix(t.Object, Namespace)); ok {
				r.MemoryType = mt
			}
		case predMemoryID:
			r.ID = t.Object
			haveID = true
		case predSessionID:
			r.SessionID = t.Object
		case predContent:
			r.Content = t.Object
		case predRationale:
			r.Rationale = t.Object
		case predEvidenceRef:
			r.EvidenceRefs = append(r.EvidenceRefs, t.Object)
		case predConfidenceScore:
			if v, err := strconv.ParseFloat(t.Object, 64); err == nil {
				r.Confidence = v
			}
		case predSourceType:
			r.SourceType = sourceTypeFromIRI(t.Object)
		case predCreatedAt:
			r.CreatedAt = parseTime(t.Object)
		case predLastAccessed:
			r.LastAccessed = parseTime(t.Object)
		case predAccessCount:
			if v, err := strconv.Atoi(t.Object); err == nil {
				r.AccessCount = v
			}
		case predSupersededBy:
			r.SupersededBy = idFromSupersessorIRI(t.Object)
		case predHasProject:
			r.ProjectID = t.Object
		}
	}
	if !haveID {
		return nil, false
	}
	return r, true
}

func sourceTypeFromIRI(iri string) SourceType {
	switch iri {
	case Namespace + "UserSource":
		return SourceUser
	case Namespace + "ToolSource":
		return SourceTool
	case Namespace + "ExternalDocumentSource":
		return SourceExternalDocument
	default:
		return SourceAgent
	}
}
