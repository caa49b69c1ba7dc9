package memory

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jido-ai/jido-memory/pkg/triplestore"
)

// UpdateOptions bounds a record's disciplined field update: a new
// confidence score, additional evidence references, and/or appended
// rationale text. Zero-value fields are left untouched.
type UpdateOptions struct {
	Confidence         *float64
	AppendEvidenceRefs []string
	AppendRationale    string
}

// Update applies a bounded field update to an active record: confidence,
// appended evidence, and appended rationale are the only mutable fields
// once a record exists. It is the ACTIVE -> ACTIVE transition in the
// record state machine; a superseded record cannot be updated, since
// supersession is terminal. At least one field must actually change.
func (a *Adapter) Update(ctx context.Context, store Store, sessionID, memoryID string, opts UpdateOptions) error {
	if opts.Confidence == nil && len(opts.AppendEvidenceRefs) == 0 && opts.AppendRationale == "" {
		return ErrNoFieldChanged
	}

	r, err := a.QueryByIDForSession(ctx, store, sessionID, memoryID)
	if err != nil {
		return err
	}
	if !r.Active() {
		return ErrNotFound
	}

	changed := false
	if opts.Confidence != nil {
		if *opts.Confidence < 0.0 || *opts.Confidence > 1.0 {
			return fmt.Errorf("%w: %f", ErrInvalidConfidence, *opts.Confidence)
		}
		if *opts.Confidence != r.Confidence {
			r.Confidence = *opts.Confidence
			changed = true
		}
	}
	if len(opts.AppendEvidenceRefs) > 0 {
		if len(r.EvidenceRefs)+len(opts.AppendEvidenceRefs) > maxEvidenceRefs {
			return ErrEvidenceRefsTooLong
		}
		r.EvidenceRefs = append(r.EvidenceRefs, opts.AppendEvidenceRefs...)
		changed = true
	}
	if opts.AppendRationale != "" {
		joined := opts.AppendRationale
		if r.Rationale != "" {
			joined = r.Rationale + "\n\n" + opts.AppendRationale
		}
		if len(joined) > maxRationaleBytes {
			return ErrRationaleTooLong
		}
		r.Rationale = joined
		changed = true
	}
	if !changed {
		return ErrNoFieldChanged
	}

	subj := recordIRI(memoryID)
	for _, pred := range []string{predConfidenceScore, predConfidenceLevel, predEvidenceRef, predRationale} {
		if _, err := store.DeleteTriples(ctx, triplestore.Triple{Subject: subj, Predicate: pred}); err != nil {
			return fmt.Errorf("memory: update: %w", err)
		}
	}

	triples := []triplestore.Triple{
		{Subject: subj, Predicate: predConfidenceScore, Object: strconv.FormatFloat(r.Confidence, 'f', -1, 64), ObjectKind: triplestore.TermLiteral, Datatype: xsdDouble},
		{Subject: subj, Predicate: predConfidenceLevel, Object: confidenceIndividualIRI(r.ConfidenceLevel()), ObjectKind: triplestore.TermIRI},
	}
	for _, ref := range r.EvidenceRefs {
		triples = append(triples, triplestore.Triple{Subject: subj, Predicate: predEvidenceRef, Object: ref, ObjectKind: triplestore.TermLiteral, Datatype: xsdString})
	}
	if r.Rationale != "" {
		triples = append(triples, triplestore.Triple{Subject: subj, Predicate: predRationale, Object: r.Rationale, ObjectKind: triplestore.TermLiteral, Datatype: xsdString})
	}
	if err := store.InsertTriples(ctx, triples); err != nil {
		return fmt.Errorf("memory: update: %w", err)
	}
	return nil
}
