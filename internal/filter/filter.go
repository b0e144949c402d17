// Package filter provides the lexical content filter applied to display
// names and message text. It is a deliberately permissive case-insensitive
// substring match against a fixed phrase list: no tokenization and no word
// boundaries, so embedded matches ("xxxtreme") are caught at the cost of
// known false positives.
package filter

import "strings"

// defaultPhrases is the process-wide profanity list. It is never mutated
// after init.
var defaultPhrases = []string{
	"damn",
	"porn", "nsfw", "xxx", "onlyfans",
	"child abuse", "cp", "pedophile", "pedo",
}

// Filter matches text against a phrase list. The zero value matches nothing;
// construct with New or NewWithPhrases. Safe for concurrent use.
type Filter struct {
	phrases []string
}

// New returns a Filter over the default profanity list.
func New() *Filter {
	return NewWithPhrases(defaultPhrases)
}

// NewWithPhrases returns a Filter over the given phrases. Phrases are
// lower-cased; empty or whitespace-only entries are dropped.
func NewWithPhrases(phrases []string) *Filter {
	f := &Filter{phrases: make([]string, 0, len(phrases))}
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		f.phrases = append(f.phrases, p)
	}
	return f
}

// Matches reports whether any configured phrase is a case-insensitive
// substring of text. Empty text never matches.
func (f *Filter) Matches(text string) bool {
	return f.Match(text) != ""
}

// Match returns the first configured phrase found in text, or "" when the
// text is clean. The phrase is used as the reason on audit records.
func (f *Filter) Match(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	for _, p := range f.phrases {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}
