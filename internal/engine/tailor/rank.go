package tailor

import "slices"

// Classification is the derived display category of a variant.
type Classification string

const (
	ClassGapFill   Classification = "gap-fill"
	ClassJobTarget Classification = "job-target"
	ClassFallback  Classification = "fallback"
)

// Priority returns the sort rank of a classification; lower sorts first.
func (c Classification) Priority() int {
	switch c {
	case ClassGapFill:
		return 1
	case ClassJobTarget:
		return 2
	default:
		return 3
	}
}

// Classify derives a variant's classification from which references it carries.
// A filled gap wins over a target label.
func Classify(v Variant) Classification {
	switch {
	case v.FilledGapRef != "":
		return ClassGapFill
	case v.TargetLabel != "":
		return ClassJobTarget
	default:
		return ClassFallback
	}
}

// Rank returns a copy of variants stably sorted by classification priority.
// Variants of equal priority keep their input order.
func Rank(variants []Variant) []Variant {
	out := slices.Clone(variants)
	slices.SortStableFunc(out, func(a, b Variant) int {
		return Classify(a).Priority() - Classify(b).Priority()
	})
	return out
}
