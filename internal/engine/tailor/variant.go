package tailor

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Creator records who produced a variant.
type Creator string

const (
	CreatedByAI            Creator = "ai"
	CreatedByHuman         Creator = "human"
	CreatedByHumanEditedAI Creator = "human-edited-ai"
)

// ErrDuplicateVariant is returned when a variant id is already in the store.
var ErrDuplicateVariant = errors.New("variant: duplicate id")

// ContentBlock is the canonical base text of a reusable story or paragraph.
type ContentBlock struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Variant is an alternate phrasing of a content block.
// Its classification is derived on demand, see Classify.
type Variant struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	FilledGapRef string    `json:"filled_gap_ref,omitempty"`
	TargetLabel  string    `json:"target_label,omitempty"`
	CreatedBy    Creator   `json:"created_by"`
	Tags         []string  `json:"tags,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasTag reports whether the variant carries tag.
func (v Variant) HasTag(tag string) bool {
	return slices.Contains(v.Tags, tag)
}

// VariantStore holds one content block and its variants in insertion order.
// Display order is computed on demand by Rank.
type VariantStore struct {
	mu       sync.RWMutex
	base     ContentBlock
	variants []Variant
	diff     DiffFunc
}

// NewVariantStore creates a store over base. A nil diff uses the greedy Diff.
func NewVariantStore(base ContentBlock, diff DiffFunc) *VariantStore {
	if diff == nil {
		diff = Diff
	}
	return &VariantStore{base: base, diff: diff}
}

// Base returns the current base content block.
func (s *VariantStore) Base() ContentBlock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// UpdateBase replaces the base text. This is the only way the block changes.
func (s *VariantStore) UpdateBase(content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base.Content = content
	s.base.UpdatedAt = at
}

// AddVariant appends v. Ids must be unique within the store.
func (s *VariantStore) AddVariant(v Variant) error {
	if v.ID == "" {
		return errors.New("variant: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.variants {
		if existing.ID == v.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateVariant, v.ID)
		}
	}
	v.Tags = slices.Clone(v.Tags)
	s.variants = append(s.variants, v)
	return nil
}

// RemoveVariant deletes the variant with id. Unknown ids are ignored.
func (s *VariantStore) RemoveVariant(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants = slices.DeleteFunc(s.variants, func(v Variant) bool { return v.ID == id })
}

// Get returns the variant with id.
func (s *VariantStore) Get(id string) (Variant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// Len returns the number of variants.
func (s *VariantStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.variants)
}

// Variants returns the variants in insertion order.
func (s *VariantStore) Variants() []Variant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.variants)
}

// OrderedVariants returns the variants in display order.
func (s *VariantStore) OrderedVariants() []Variant {
	return Rank(s.Variants())
}

// Filter returns the ordered variants for which keep returns true.
func (s *VariantStore) Filter(keep func(Variant) bool) []Variant {
	var out []Variant
	for _, v := range s.OrderedVariants() {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// ByClassification returns the ordered variants of one classification.
func (s *VariantStore) ByClassification(c Classification) []Variant {
	return s.Filter(func(v Variant) bool { return Classify(v) == c })
}

// ByTag returns the ordered variants carrying tag.
func (s *VariantStore) ByTag(tag string) []Variant {
	return s.Filter(func(v Variant) bool { return v.HasTag(tag) })
}

// ByCreator returns the ordered variants produced by c.
func (s *VariantStore) ByCreator(c Creator) []Variant {
	return s.Filter(func(v Variant) bool { return v.CreatedBy == c })
}

// DiffAgainstBase diffs the base text against the variant with id.
func (s *VariantStore) DiffAgainstBase(id string) ([]DiffToken, bool) {
	s.mu.RLock()
	base := s.base.Content
	diff := s.diff
	s.mu.RUnlock()

	v, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return diff(base, v.Content), true
}
