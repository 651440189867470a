// Package intent implements deterministic pattern-table intent detection.
// No generative component participates: candidates come from substring
// matches against per-domain pattern tables, scored, ranked and deduplicated.
package intent

import (
	"sort"
	"strings"
)

// maxCandidates caps the ranked result list.
const maxCandidates = 5

// Intent is one scored candidate. Confidence is in [0,1].
type Intent struct {
	Spine          string  `json:"spine"`
	Name           string  `json:"name"`
	Confidence     float64 `json:"confidence"`
	MatchedPattern string  `json:"matched_pattern"`
}

// Pattern is one row of a spine's pattern table. Base is the pattern's base
// confidence; longer matches earn up to 0.2 on top, rewarding specificity
// without letting length dominate.
type Pattern struct {
	Spine  string
	Intent string
	Match  string
	Base   float64
}

// Table is an ordered pattern list. Order breaks confidence ties, so put the
// more specific patterns first.
type Table []Pattern

// Normalize lowercases text and strips punctuation, collapsing whitespace.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ', r == '$', r == '@', r == '_', r == '.', r == '/', r == ':', r == '-', r == '+':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Detect matches normalized text against the table and returns ranked,
// deduplicated candidates, at most five. No match yields an empty list;
// callers must handle "no intent" explicitly rather than defaulting to an
// action.
func Detect(text string, table Table) []Intent {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	type scored struct {
		Intent
		order int
	}
	best := make(map[string]scored)
	var keys []string

	for i, p := range table {
		if !strings.Contains(normalized, p.Match) {
			continue
		}
		confidence := lengthBonus(len(p.Match)) + p.Base
		if confidence > 1 {
			confidence = 1
		}
		if confidence < 0 {
			confidence = 0
		}
		key := p.Spine + "/" + p.Intent
		prev, seen := best[key]
		if !seen {
			keys = append(keys, key)
		}
		if !seen || confidence > prev.Confidence {
			best[key] = scored{
				Intent: Intent{
					Spine:          p.Spine,
					Name:           p.Intent,
					Confidence:     confidence,
					MatchedPattern: p.Match,
				},
				order: i,
			}
		}
	}

	if len(keys) == 0 {
		return nil
	}

	candidates := make([]scored, 0, len(keys))
	for _, k := range keys {
		candidates = append(candidates, best[k])
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].order < candidates[j].order
	})

	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	out := make([]Intent, len(candidates))
	for i, c := range candidates {
		out[i] = c.Intent
	}
	return out
}

// lengthBonus is min(0.2, matchLength/100).
func lengthBonus(length int) float64 {
	bonus := float64(length) / 100
	if bonus > 0.2 {
		return 0.2
	}
	return bonus
}
