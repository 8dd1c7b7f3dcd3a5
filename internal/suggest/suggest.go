// Package suggest proposes vocabulary keywords for question words the
// compiler did not recognize.
package suggest

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
)

// minWordLen skips short words ("me", "our") that fuzzy-match everything.
const minWordLen = 4

// Suggester ranks a fixed keyword list against free text. It is immutable
// and safe for concurrent use.
type Suggester struct {
	keywords []string
	known    map[string]bool
}

// New creates a Suggester over keywords.
func New(keywords []string) *Suggester {
	known := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		known[kw] = true
	}
	return &Suggester{keywords: keywords, known: known}
}

type candidate struct {
	keyword string
	score   int
}

// For returns up to limit keywords that look like misspellings of words in
// text, best match first. The result is deterministic for a given input.
func (s *Suggester) For(text string, limit int) []string {
	if s == nil || limit <= 0 {
		return nil
	}

	best := make(map[string]int)
	for _, word := range words(text) {
		if len(word) < minWordLen || s.known[word] {
			continue
		}
		matches := fuzzy.Find(word, s.keywords)
		if len(matches) == 0 {
			continue
		}
		m := matches[0]
		if score, ok := best[m.Str]; !ok || m.Score > score {
			best[m.Str] = m.Score
		}
	}

	cands := make([]candidate, 0, len(best))
	for kw, score := range best {
		cands = append(cands, candidate{kw, score})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].keyword < cands[j].keyword
	})

	if len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.keyword
	}
	return out
}

// words splits text into lowercase letter/digit runs.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
