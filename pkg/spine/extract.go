package spine

import (
	"regexp"
	"strings"
)

var clientQueryRe = regexp.MustCompile(`\b(?:for|find|about|named?)\s+([a-z][a-z]+)\b`)

var queryStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "my": true, "me": true,
	"them": true, "him": true, "her": true, "usd": true, "dollars": true,
}

// clientQuery pulls a bare name following "for"/"find"/"named" from
// normalized text, skipping stopwords and amounts. Best effort: "" when
// nothing plausible is present.
func clientQuery(normalized string) string {
	for _, m := range clientQueryRe.FindAllStringSubmatch(normalized, -1) {
		candidate := m[1]
		if !queryStopwords[candidate] {
			return candidate
		}
	}
	return ""
}

// keyword returns the first entry of vocab present as a whole word.
func keyword(normalized string, vocab []string) string {
	for _, v := range vocab {
		if containsWord(normalized, v) {
			return v
		}
	}
	return ""
}

// afterMarker returns the trimmed remainder of normalized text following the
// first occurrence of marker, or "".
func afterMarker(normalized, marker string) string {
	idx := strings.Index(normalized, marker)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(normalized[idx+len(marker):])
}

func containsWord(haystack, word string) bool {
	idx := strings.Index(haystack, word)
	for idx >= 0 {
		before := idx == 0 || haystack[idx-1] == ' '
		end := idx + len(word)
		after := end == len(haystack) || haystack[end] == ' '
		if before && after {
			return true
		}
		next := strings.Index(haystack[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}
