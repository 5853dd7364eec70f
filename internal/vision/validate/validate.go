// Package validate applies plate-format rules to OCR candidates and
// settles on a final text, status, and confidence for a region.
package validate

import (
	"strings"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// Rules holds the runtime-adjustable plate-format policy. Rules are read
// once per pipeline invocation; a zero value is not usable, call
// DefaultRules and override fields as needed.
type Rules struct {
	// Alphabet is the set of allowed plate characters. Matching is done
	// after uppercasing the candidate.
	Alphabet string `json:"alphabet"`
	// Separators are allowed inside the text but do not count toward
	// the length band.
	Separators string `json:"separators"`
	MinLength  int    `json:"min_length"`
	MaxLength  int    `json:"max_length"`
	// Confidence bands: >= High is valid, [Low, High) is uncertain,
	// below Low is rejected.
	LowConfidence  float64 `json:"low_confidence"`
	HighConfidence float64 `json:"high_confidence"`
}

// DefaultRules returns the stock policy for Latin-alphabet plates.
func DefaultRules() Rules {
	return Rules{
		Alphabet:       "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
		Separators:     "- ",
		MinLength:      4,
		MaxLength:      10,
		LowConfidence:  0.4,
		HighConfidence: 0.8,
	}
}

// Result is the validator's verdict for one region.
type Result struct {
	// Text is the normalized winning text, or the best rejected
	// candidate's text verbatim so rejections stay auditable.
	Text       string
	Status     vision.ValidationStatus
	Confidence float64
}

// Validate applies the format rules per candidate, then picks the
// highest-confidence survivor. With no survivors the result is rejected,
// carrying the highest-confidence offending text unmodified. Zero
// candidates also reject, with empty text.
func Validate(candidates []vision.TextCandidate, rules Rules) Result {
	var (
		best        *vision.TextCandidate
		bestText    string
		bestOffense *vision.TextCandidate
	)
	for i := range candidates {
		c := &candidates[i]
		normalized, ok := conforms(c.Text, rules)
		if !ok {
			if bestOffense == nil || c.Confidence > bestOffense.Confidence {
				bestOffense = c
			}
			continue
		}
		if best == nil || c.Confidence > best.Confidence {
			best = c
			bestText = normalized
		}
	}

	if best == nil {
		r := Result{Status: vision.StatusRejected}
		if bestOffense != nil {
			r.Text = bestOffense.Text
			r.Confidence = bestOffense.Confidence
		}
		return r
	}

	status := vision.StatusRejected
	switch {
	case best.Confidence >= rules.HighConfidence:
		status = vision.StatusValid
	case best.Confidence >= rules.LowConfidence:
		status = vision.StatusUncertain
	}
	return Result{Text: bestText, Status: status, Confidence: best.Confidence}
}

// conforms checks one candidate against the alphabet and length band and
// returns the normalized (uppercased, trimmed) text on success.
func conforms(text string, rules Rules) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	if normalized == "" {
		return "", false
	}
	significant := 0
	for _, r := range normalized {
		switch {
		case strings.ContainsRune(rules.Alphabet, r):
			significant++
		case strings.ContainsRune(rules.Separators, r):
		default:
			return "", false
		}
	}
	if significant < rules.MinLength || significant > rules.MaxLength {
		return "", false
	}
	return normalized, true
}
