package tailor

import (
	"sort"
	"strings"
	"unicode"
)

// keywordStopWords filters common English words that add noise to keyword matching.
var keywordStopWords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "you": true,
	"are": true, "have": true, "will": true, "this": true, "that": true,
	"from": true, "our": true, "your": true, "their": true, "they": true,
	"work": true, "team": true, "role": true, "job": true, "join": true,
	"about": true, "which": true, "what": true, "who": true, "how": true,
	"can": true, "not": true, "but": true, "all": true, "also": true,
	"more": true, "than": true, "into": true, "has": true, "its": true,
	"was": true, "were": true, "been": true, "each": true, "new": true,
	"use": true, "using": true, "used": true, "well": true, "high": true,
	"good": true, "able": true, "get": true, "set": true, "such": true,
	"must": true, "should": true, "would": true, "years": true, "experience": true,
}

// tokenize splits lowercased text into words. Keeps tech suffixes like
// "c++", "c#", "node.js" by treating + # . as word chars.
func tokenize(text string, emit func(string)) {
	var word strings.Builder
	flush := func() {
		w := strings.TrimRight(word.String(), ".") // drop trailing dots
		word.Reset()
		if w != "" {
			emit(w)
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
}

// ExtractKeywords tokenizes text into a keyword set (>= 3 chars, lowercased, no stop words).
func ExtractKeywords(text string) map[string]bool {
	kw := make(map[string]bool)
	tokenize(text, func(w string) {
		if len([]rune(w)) >= 3 && !keywordStopWords[w] {
			kw[w] = true
		}
	})
	return kw
}

// KeywordList returns the keywords of text sorted alphabetically, capped at limit (0 = no cap).
func KeywordList(text string, limit int) []string {
	kw := ExtractKeywords(text)
	out := make([]string, 0, len(kw))
	for k := range kw {
		out = append(out, k)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MatchKeywords checks which of keywords appear in content.
// Keywords are compared lowercased against every word of content, so short
// ones like "go" still match; multi-word keywords match by substring.
func MatchKeywords(content string, keywords []string) (matched, missing []string) {
	words := make(map[string]bool)
	tokenize(content, func(w string) { words[w] = true })
	lower := strings.ToLower(content)
	seen := make(map[string]bool)
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if words[k] || (strings.ContainsRune(k, ' ') && strings.Contains(lower, k)) {
			matched = append(matched, k)
		} else {
			missing = append(missing, k)
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)
	return matched, missing
}

// OverlapScore computes a Jaccard keyword overlap score (0–100) between
// content and target text.
//
// Returns:
//   - score: 0–100 (Jaccard similarity × 100, rounded to 1 decimal)
//   - matching: keywords present in both
//   - missing: target keywords absent from content (top 20 max)
func OverlapScore(content, target string) (score float64, matching, missing []string) {
	contentKW := ExtractKeywords(content)
	targetKW := ExtractKeywords(target)

	inter := 0
	for kw := range contentKW {
		if targetKW[kw] {
			inter++
			matching = append(matching, kw)
		}
	}
	for kw := range targetKW {
		if !contentKW[kw] {
			missing = append(missing, kw)
		}
	}

	union := len(contentKW) + len(targetKW) - inter
	if union > 0 {
		raw := float64(inter) / float64(union) * 100
		score = float64(int(raw*10+0.5)) / 10
	}

	sort.Strings(matching)
	sort.Strings(missing)
	if len(missing) > 20 {
		missing = missing[:20]
	}
	return score, matching, missing
}
