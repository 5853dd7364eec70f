package validate

import (
	"testing"

	"github.com/platewatch-data/platewatch/internal/vision"
)

func candidate(text string, conf float64) vision.TextCandidate {
	return vision.TextCandidate{Text: text, Confidence: conf}
}

func TestValidateHighConfidence(t *testing.T) {
	got := Validate([]vision.TextCandidate{candidate("AB1234CD", 0.92)}, DefaultRules())
	if got.Status != vision.StatusValid {
		t.Errorf("status = %s, want valid", got.Status)
	}
	if got.Text != "AB1234CD" || got.Confidence != 0.92 {
		t.Errorf("result = %+v", got)
	}
}

func TestValidateUncertainBand(t *testing.T) {
	got := Validate([]vision.TextCandidate{candidate("AB1234CD", 0.55)}, DefaultRules())
	if got.Status != vision.StatusUncertain {
		t.Errorf("status = %s, want uncertain", got.Status)
	}
}

func TestValidateBelowLowConfidence(t *testing.T) {
	got := Validate([]vision.TextCandidate{candidate("AB1234CD", 0.2)}, DefaultRules())
	if got.Status != vision.StatusRejected {
		t.Errorf("status = %s, want rejected", got.Status)
	}
}

func TestValidateDisallowedCharacterKeepsText(t *testing.T) {
	got := Validate([]vision.TextCandidate{candidate("AB#234", 0.95)}, DefaultRules())
	if got.Status != vision.StatusRejected {
		t.Errorf("status = %s, want rejected", got.Status)
	}
	if got.Text != "AB#234" {
		t.Errorf("offending text not preserved verbatim: %q", got.Text)
	}
}

func TestValidateLengthBand(t *testing.T) {
	rules := DefaultRules()
	for _, tc := range []struct {
		text string
		want vision.ValidationStatus
	}{
		{"AB1", vision.StatusRejected},       // too short
		{"AB12", vision.StatusValid},         // lower bound
		{"AB12345678", vision.StatusValid},   // upper bound
		{"AB123456789", vision.StatusRejected}, // too long
	} {
		got := Validate([]vision.TextCandidate{candidate(tc.text, 0.9)}, rules)
		if got.Status != tc.want {
			t.Errorf("Validate(%q) status = %s, want %s", tc.text, got.Status, tc.want)
		}
	}
}

func TestValidateSeparatorsDoNotCountTowardLength(t *testing.T) {
	// Three significant characters plus separators stays below MinLength.
	got := Validate([]vision.TextCandidate{candidate("A-B 1", 0.9)}, DefaultRules())
	if got.Status != vision.StatusRejected {
		t.Errorf("separators counted toward length: %+v", got)
	}

	got = Validate([]vision.TextCandidate{candidate("AB-1234", 0.9)}, DefaultRules())
	if got.Status != vision.StatusValid || got.Text != "AB-1234" {
		t.Errorf("separator inside valid plate: %+v", got)
	}
}

func TestValidatePicksHighestConfidenceSurvivor(t *testing.T) {
	got := Validate([]vision.TextCandidate{
		candidate("AB1234", 0.70),
		candidate("A81234", 0.85),
		candidate("AB!234", 0.99), // disallowed, never wins
	}, DefaultRules())
	if got.Text != "A81234" || got.Confidence != 0.85 {
		t.Errorf("result = %+v, want A81234 at 0.85", got)
	}
	if got.Status != vision.StatusValid {
		t.Errorf("status = %s, want valid", got.Status)
	}
}

func TestValidateNormalizesCase(t *testing.T) {
	got := Validate([]vision.TextCandidate{candidate(" ab1234cd ", 0.9)}, DefaultRules())
	if got.Text != "AB1234CD" {
		t.Errorf("text = %q, want uppercased trimmed AB1234CD", got.Text)
	}
}

func TestValidateNoCandidates(t *testing.T) {
	got := Validate(nil, DefaultRules())
	if got.Status != vision.StatusRejected || got.Text != "" || got.Confidence != 0 {
		t.Errorf("empty input result = %+v", got)
	}
}

// A candidate with allowed characters, allowed length, and confidence at or
// above the high threshold must never come back rejected.
func TestValidateNeverRejectsQualifyingCandidate(t *testing.T) {
	got := Validate([]vision.TextCandidate{
		candidate("###", 0.99),
		candidate("GOOD123", 0.81),
	}, DefaultRules())
	if got.Status != vision.StatusValid {
		t.Errorf("qualifying candidate rejected: %+v", got)
	}
}
