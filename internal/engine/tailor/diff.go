// Package tailor implements the human-in-the-loop content tailoring core:
// word diffs between story variants, variant ranking, gap lifecycle tracking,
// draft autosave and the review workflow state machine.
package tailor

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffKind tags a word in a diff.
type DiffKind string

const (
	DiffUnchanged DiffKind = "unchanged"
	DiffAdded     DiffKind = "added"
	DiffRemoved   DiffKind = "removed"
)

// DiffToken is a single word of a diff and how it changed.
type DiffToken struct {
	Text string   `json:"text"`
	Kind DiffKind `json:"kind"`
}

// DiffFunc computes a word-level diff. Implementations must emit every word
// of original as unchanged or removed, and every word of modified as
// unchanged or added, each in source order.
type DiffFunc func(original, modified string) []DiffToken

// Diff aligns original and modified word by word with a greedy two-pointer walk.
// It runs in linear time; reordered words show up as additions followed by removals.
// Comparison is exact: case and punctuation matter.
func Diff(original, modified string) []DiffToken {
	a := strings.Fields(original)
	b := strings.Fields(modified)
	out := make([]DiffToken, 0, max(len(a), len(b)))

	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case i < len(a) && j < len(b) && a[i] == b[j]:
			out = append(out, DiffToken{Text: a[i], Kind: DiffUnchanged})
			i++
			j++
		case j < len(b):
			out = append(out, DiffToken{Text: b[j], Kind: DiffAdded})
			j++
		default:
			out = append(out, DiffToken{Text: a[i], Kind: DiffRemoved})
			i++
		}
	}
	return out
}

// LCSDiff computes a minimal word diff using diff-match-patch over a
// word-to-rune encoding of both texts. Same tagging contract as Diff.
func LCSDiff(original, modified string) []DiffToken {
	a := strings.Fields(original)
	b := strings.Fields(modified)
	if len(a) == 0 || len(b) == 0 {
		return Diff(original, modified)
	}

	enc := newWordEncoder()
	ra := enc.encode(a)
	rb := enc.encode(b)

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(ra, rb, false)

	out := make([]DiffToken, 0, max(len(a), len(b)))
	for _, d := range diffs {
		kind := DiffUnchanged
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			kind = DiffAdded
		case diffmatchpatch.DiffDelete:
			kind = DiffRemoved
		}
		for _, r := range d.Text {
			out = append(out, DiffToken{Text: enc.decode(r), Kind: kind})
		}
	}
	return out
}

// wordEncoder maps each distinct word to a rune outside the surrogate range,
// so the rune diff survives diff-match-patch's string round trips.
type wordEncoder struct {
	ids   map[string]rune
	words []string
}

func newWordEncoder() *wordEncoder {
	return &wordEncoder{ids: make(map[string]rune)}
}

func (e *wordEncoder) encode(words []string) []rune {
	out := make([]rune, len(words))
	for i, w := range words {
		r, ok := e.ids[w]
		if !ok {
			r = indexRune(len(e.words))
			e.ids[w] = r
			e.words = append(e.words, w)
		}
		out[i] = r
	}
	return out
}

func (e *wordEncoder) decode(r rune) string {
	idx := runeIndex(r)
	if idx < 0 || idx >= len(e.words) {
		return ""
	}
	return e.words[idx]
}

const (
	runeBase       = 0x100
	surrogateStart = 0xD800
	surrogateSpan  = 0x800
)

func indexRune(i int) rune {
	r := rune(runeBase + i)
	if r >= surrogateStart {
		r += surrogateSpan
	}
	return r
}

func runeIndex(r rune) int {
	if r >= surrogateStart+surrogateSpan {
		r -= surrogateSpan
	}
	return int(r) - runeBase
}

// DiffSummary counts tokens per kind.
type DiffSummary struct {
	Unchanged int `json:"unchanged"`
	Added     int `json:"added"`
	Removed   int `json:"removed"`
}

// Summarize counts the tokens of a diff by kind.
func Summarize(tokens []DiffToken) DiffSummary {
	var s DiffSummary
	for _, t := range tokens {
		switch t.Kind {
		case DiffUnchanged:
			s.Unchanged++
		case DiffAdded:
			s.Added++
		case DiffRemoved:
			s.Removed++
		}
	}
	return s
}

// DiffFuncFor returns the diff implementation for a configured mode name.
// Unknown modes fall back to the greedy diff.
func DiffFuncFor(mode string) DiffFunc {
	if strings.EqualFold(mode, "lcs") {
		return LCSDiff
	}
	return Diff
}
