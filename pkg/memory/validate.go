package memory

import (
	"fmt"
	"regexp"
)

// safeIdentifier is the sole SPARQL injection defense: every identifier
// interpolated into a query or update must match this pattern before it
// is used to build SPARQL text. Never bypass it.
var safeIdentifier = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidID reports whether id is safe to interpolate into SPARQL text.
func ValidID(id string) bool {
	return safeIdentifier.MatchString(id)
}

// validateMemoryID returns ErrInvalidMemoryID wrapped with context if id
// fails the safe-identifier predicate.
func validateMemoryID(id string) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidMemoryID, id)
	}
	return nil
}

// validateSessionID returns ErrInvalidSessionID wrapped with context if id
// fails the safe-identifier predicate.
func validateSessionID(id string) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

// validateRecord checks the domain invariants a record must satisfy
// before it is persisted: memory type and source type membership,
// confidence bounds, and the size caps on content/rationale/evidence.
func validateRecord(r *Record) error {
	if err := validateMemoryID(r.ID); err != nil {
		return err
	}
	if err := validateSessionID(r.SessionID); err != nil {
		return err
	}
	if !ValidType(r.MemoryType) {
		return fmt.Errorf("%w: %q", ErrInvalidMemoryType, r.MemoryType)
	}
	if r.SourceType != "" && !ValidSourceType(r.SourceType) {
		return fmt.Errorf("%w: %q", ErrInvalidSourceType, r.SourceType)
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return fmt.Errorf("%w: %f", ErrInvalidConfidence, r.Confidence)
	}
	if len(r.Content) > maxContentBytes {
		return ErrContentTooLong
	}
	if len(r.Rationale) > maxRationaleBytes {
		return ErrRationaleTooLong
	}
	if len(r.EvidenceRefs) > maxEvidenceRefs {
		return ErrEvidenceRefsTooLong
	}
	return nil
}
