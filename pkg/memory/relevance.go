package memory

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

// maxHintTokens bounds the per-call tokenisation cost: a hint longer than
// this is truncated before scoring.
const maxHintTokens = 500

// recencyHalfLifeSeconds is the one-week half-life analogue recency_decay
// uses.
const recencyHalfLifeSeconds = 7 * 24 * 60 * 60

var tokenBoundary = regexp.MustCompile(`[^a-z0-9]+`)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"of": true, "to": true, "in": true, "on": true, "for": true, "is": true,
	"are": true, "was": true, "were": true, "be": true, "been": true,
	"it": true, "this": true, "that": true, "with": true, "as": true,
	"at": true, "by": true, "from": true, "into": true, "its": true,
}

// tokenize lowercases, strips punctuation, drops stop-words and tokens
// shorter than two characters, and caps the result at maxHintTokens.
func tokenize(s string) []string {
	lower := strings.ToLower(s)
	raw := tokenBoundary.Split(lower, -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) < 2 || stopWords[tok] {
			continue
		}
		out = append(out, tok)
		if len(out) >= maxHintTokens {
			break
		}
	}
	return out
}

func tokenSet(toks []string) map[string]bool {
	set := make(map[string]bool, len(toks))
	for _, t := range toks {
		set[t] = true
	}
	return set
}

// textSimilarity blends coverage of the hint's vocabulary by the memory's
// vocabulary and vice versa: 0.7 * coverage_of_hint + 0.3 * coverage_of_memory.
func textSimilarity(hint, memoryText string) float64 {
	hintToks := tokenSet(tokenize(hint))
	memToks := tokenSet(tokenize(memoryText))
	if len(hintToks) == 0 || len(memToks) == 0 {
		return 0
	}

	overlap := 0
	for t := range hintToks {
		if memToks[t] {
			overlap++
		}
	}

	coverageOfHint := float64(overlap) / float64(len(hintToks))
	coverageOfMemory := float64(overlap) / float64(len(memToks))
	return 0.7*coverageOfHint + 0.3*coverageOfMemory
}

// recencyDecay implements exp(-Δt/604800), a one-week half-life analogue.
func recencyDecay(t time.Time, now time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	delta := now.Sub(t).Seconds()
	if delta < 0 {
		delta = 0
	}
	return math.Exp(-delta / recencyHalfLifeSeconds)
}

// clampRecencyWeight coerces an out-of-range recency weight to the default.
func clampRecencyWeight(r float64) float64 {
	if r < 0 || r > 1 {
		return 0.3
	}
	return r
}

// ContextOptions configures get_context's scoring and filtering behaviour.
type ContextOptions struct {
	Limit         int
	MinConfidence ConfidenceLevel
	IncludeTypes  []Type
	RecencyWeight float64
	Now           time.Time
}

// scored pairs a record with its computed relevance score.
type scored struct {
	record *Record
	score  float64
}

// GetContext scores and ranks active records against hint, returning the
// top-N by descending score with ties broken toward higher recency.
func (a *Adapter) GetContext(ctx context.Context, store Store, sessionID, hint string, opts ContextOptions) ([]*Record, error) {
	records, err := a.QueryBySession(ctx, store, sessionID, QueryOptions{
		Limit:             1 << 20,
		MinConfidence:     opts.MinConfidence,
		IncludeSuperseded: false,
	})
	if err != nil {
		return nil, err
	}

	if len(opts.IncludeTypes) > 0 {
		allowed := make(map[Type]bool, len(opts.IncludeTypes))
		for _, t := range opts.IncludeTypes {
			allowed[t] = true
		}
		filtered := records[:0]
		for _, r := range records {
			if allowed[r.MemoryType] {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	r := clampRecencyWeight(opts.RecencyWeight)
	textWeight := 0.4 - (r - 0.3)
	if textWeight < 0 {
		textWeight = 0
	}
	const confWeight = 0.2
	const accessWeight = 0.1

	maxAccess := 1
	for _, rec := range records {
		if rec.AccessCount > maxAccess {
			maxAccess = rec.AccessCount
		}
	}

	scoredRecords := make([]scored, 0, len(records))
	for _, rec := range records {
		sim := textSimilarity(hint, rec.Content+" "+rec.Rationale)
		rec := rec
		ts := recordTimestamp(rec)
		decay := recencyDecay(ts, now)
		score := textWeight*sim + r*decay + confWeight*rec.Confidence + accessWeight*float64(rec.AccessCount)/float64(maxAccess)
		if score <= 0 {
			continue
		}
		scoredRecords = append(scoredRecords, scored{record: rec, score: score})
	}

	sort.SliceStable(scoredRecords, func(i, j int) bool {
		if scoredRecords[i].score != scoredRecords[j].score {
			return scoredRecords[i].score > scoredRecords[j].score
		}
		return recordTimestamp(scoredRecords[i].record).After(recordTimestamp(scoredRecords[j].record))
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(scoredRecords) > limit {
		scoredRecords = scoredRecords[:limit]
	}

	out := make([]*Record, len(scoredRecords))
	for i, s := range scoredRecords {
		out[i] = s.record
	}
	return out, nil
}
