package conversation

import (
	"regexp"
	"strings"
)

// Fixed multilingual deny-list of profanity and test-noise tokens. Matched
// against the case-folded, trimmed message; single tokens match as whole
// words only.
var denyListTokens = map[string]struct{}{
	"pendejo": {}, "pendeja": {}, "pinche": {}, "cabrón": {}, "cabron": {},
	"mierda": {}, "puta": {}, "puto": {}, "chinga": {}, "chingada": {},
	"imbécil": {}, "imbecil": {}, "estúpido": {}, "estupido": {},
	"fuck": {}, "shit": {}, "bitch": {}, "asshole": {}, "bastard": {},
	"asdf": {}, "qwerty": {}, "asdfgh": {},
}

var denyListPhrases = []string{
	"vete a la verga", "hijo de puta", "test test",
}

// nonsenseLocationPatterns flag answers that pretend to be a table but
// cannot be one, e.g. letters where digits are expected.
var nonsenseLocationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*mesa\s+[a-záéíóúñ]+\s*$`),
	regexp.MustCompile(`(?i)^\s*table\s+[a-z]+\s*$`),
	regexp.MustCompile(`(?i)^\s*mesa\s+-?\d{4,}\s*$`),
}

var safetyWordSplit = regexp.MustCompile(`[^\p{L}]+`)

// SafetyFilter flags inappropriate or nonsensical input before any AI call.
// The tables are package-level constants; the filter itself holds no state.
type SafetyFilter struct{}

// NewSafetyFilter returns the content safety filter.
func NewSafetyFilter() *SafetyFilter {
	return &SafetyFilter{}
}

// IsFlagged reports whether the message should short-circuit the pipeline.
func (f *SafetyFilter) IsFlagged(message string) bool {
	folded := strings.ToLower(strings.TrimSpace(message))
	if folded == "" {
		return false
	}

	for _, word := range safetyWordSplit.Split(folded, -1) {
		if word == "" {
			continue
		}
		if _, ok := denyListTokens[word]; ok {
			return true
		}
	}

	for _, phrase := range denyListPhrases {
		if strings.Contains(folded, phrase) {
			return true
		}
	}

	for _, pattern := range nonsenseLocationPatterns {
		if pattern.MatchString(folded) {
			return true
		}
	}

	return false
}
