package memory

import "testing"

func TestValidIDRejectsUnsafeCharacters(t *testing.T) {
	cases := []string{
		"has space", `has"quote`, "has%percent", "has<bracket", "has>bracket",
		"has;semicolon", "has\nnewline", "",
	}
	for _, id := range cases {
		if ValidID(id) {
			t.Errorf("expected %q to be rejected", id)
		}
	}
}

func TestValidIDAcceptsSafeCharacters(t *testing.T) {
	cases := []string{"mem-001", "mem_001", "a", "ABC123", "mem-aBc_123"}
	for _, id := range cases {
		if !ValidID(id) {
			t.Errorf("expected %q to be accepted", id)
		}
	}
}

func TestValidIDRejectsOverlength(t *testing.T) {
	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	if ValidID(string(long)) {
		t.Fatal("expected 129-character id to be rejected")
	}
}

func TestValidateRecordEnforcesEvidenceRefsCap(t *testing.T) {
	r := newFact("mem-x", "sess", "content", 0.5)
	refs := make([]string, maxEvidenceRefs+1)
	for i := range refs {
		refs[i] = "mem-y"
	}
	r.EvidenceRefs = refs
	if err := validateRecord(r); err != ErrEvidenceRefsTooLong {
		t.Fatalf("expected ErrEvidenceRefsTooLong, got %v", err)
	}
}

func TestLevelOfBuckets(t *testing.T) {
	cases := []struct {
		confidence float64
		want       ConfidenceLevel
	}{
		{0.9, ConfidenceHigh},
		{0.8, ConfidenceHigh},
		{0.6, ConfidenceMedium},
		{0.5, ConfidenceMedium},
		{0.4, ConfidenceLow},
		{0.0, ConfidenceLow},
	}
	for _, c := range cases {
		if got := LevelOf(c.confidence); got != c.want {
			t.Errorf("LevelOf(%f) = %q, want %q", c.confidence, got, c.want)
		}
	}
}
