package memory

// Namespace is the single ontology namespace IRI every memory term and
// record subject is minted under.
const Namespace = "https://jido.ai/ontology#"

// Predicate and class IRIs, all within Namespace except rdf:type, mirroring the vocabulary
// declared by the ontology documents in pkg/ontology/data.
const (
	predType            = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	predMemoryID        = Namespace + "hasMemoryId"
	predSessionID       = Namespace + "hasSessionId"
	predContent         = Namespace + "hasContent"
	predRationale       = Namespace + "hasRationale"
	predEvidenceRef     = Namespace + "hasEvidenceRef"
	predConfidenceScore = Namespace + "hasConfidenceScore"
	predConfidenceLevel = Namespace + "hasConfidenceLevel"
	predSourceType      = Namespace + "hasSourceType"
	predCreatedAt       = Namespace + "hasCreatedAt"
	predLastAccessed    = Namespace + "hasLastAccessed"
	predAccessCount     = Namespace + "hasAccessCount"
	predSupersededBy    = Namespace + "supersededBy"
	predHasProject      = Namespace + "hasProject"

	classMemoryItem  = Namespace + "MemoryItem"
	deletedMarkerIRI = Namespace + "DeletedMarker"
)

// recordIRI mints the subject IRI for a memory record. id has already been
// validated by the safe-identifier predicate by the time this is called.
func recordIRI(id string) string {
	return Namespace + "record_" + id
}

// memoryTypeIRI mints the class IRI a record's rdf:type triple points at.
func memoryTypeIRI(t Type) string {
	return Namespace + memoryTypeClassName(t)
}

var memoryTypeClassNames = map[Type]string{
	TypeFact:                   "Fact",
	TypeAssumption:             "Assumption",
	TypeHypothesis:             "Hypothesis",
	TypeDiscovery:              "Discovery",
	TypeRisk:                   "Risk",
	TypeDecision:               "Decision",
	TypeArchitecturalDecision:  "ArchitecturalDecision",
	TypeImplementationDecision: "ImplementationDecision",
	TypeConvention:             "Convention",
	TypeCodingStandard:         "CodingStandard",
	TypeAlternative:            "Alternative",
	TypeLessonLearned:          "LessonLearned",
}

func memoryTypeClassName(t Type) string {
	if name, ok := memoryTypeClassNames[t]; ok {
		return name
	}
	return "MemoryItem"
}

func typeFromClassName(name string) (Type, bool) {
	for t, n := range memoryTypeClassNames {
		if n == name {
			return t, true
		}
	}
	return "", false
}

func confidenceIndividualIRI(level ConfidenceLevel) string {
	switch level {
	case ConfidenceHigh:
		return Namespace + "HighConfidence"
	case ConfidenceMedium:
		return Namespace + "MediumConfidence"
	default:
		return Namespace + "LowConfidence"
	}
}

func sourceIndividualIRI(s SourceType) string {
	switch s {
	case SourceUser:
		return Namespace + "UserSource"
	case SourceAgent:
		return Namespace + "AgentSource"
	case SourceTool:
		return Namespace + "ToolSource"
	case SourceExternalDocument:
		return Namespace + "ExternalDocumentSource"
	default:
		return Namespace + "AgentSource"
	}
}
