package extract

import (
	"sort"
	"strings"

	"mailnerd/internal/config"
	"mailnerd/internal/entity"
)

// Merge is the resolver: it deduplicates the merged candidate list and
// resolves same-type span conflicts, producing a canonical entity list
// with fully deterministic ordering. Input entities are never mutated;
// the result is a fresh slice.
//
// Steps:
//  1. drop invalid candidates (blank value, malformed span)
//  2. exact dedup on (type, lowercased value, span), keeping the
//     representative from the highest-priority source
//  3. conflict resolution between overlapping spans of the same type
//  4. stable sort by (span.start, type, source)
//
// Overlapping spans of different types are deliberately both kept.
func Merge(candidates []entity.Entity, cfg *config.Pipeline) []entity.Entity {
	type indexed struct {
		entity.Entity
		order int
	}

	valid := make([]indexed, 0, len(candidates))
	for i, c := range candidates {
		if c.IsValid() {
			valid = append(valid, indexed{Entity: c, order: i})
		}
	}
	if len(valid) == 0 {
		return []entity.Entity{}
	}

	// Exact dedup. The representative of each (type, value, span) group is
	// picked by source priority, then confidence, then stable input order.
	type dedupKey struct {
		typ        string
		value      string
		start, end int
	}
	groups := map[dedupKey]int{}
	deduped := make([]indexed, 0, len(valid))
	for _, c := range valid {
		key := dedupKey{c.Type, strings.ToLower(c.Value), c.Span.Start, c.Span.End}
		at, seen := groups[key]
		if !seen {
			groups[key] = len(deduped)
			deduped = append(deduped, c)
			continue
		}
		if beats(c.Entity, deduped[at].Entity, cfg) {
			deduped[at] = c
		}
	}

	// Deterministic resolution order: position, longest span first, then
	// priority, confidence and input order.
	sort.SliceStable(deduped, func(i, j int) bool {
		a, b := deduped[i], deduped[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Span.End != b.Span.End {
			return a.Span.End > b.Span.End
		}
		ra, rb := cfg.PriorityRank(string(a.Source)), cfg.PriorityRank(string(b.Source))
		if ra != rb {
			return ra < rb
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.order < b.order
	})

	// Same-type overlap conflicts: a candidate either displaces every
	// overlapping survivor it beats, or is dropped on the first one that
	// beats it.
	var kept []indexed
	for _, cand := range deduped {
		drop := false
		filtered := kept[:0]
		for _, existing := range kept {
			if drop || existing.Type != cand.Type || !existing.Overlaps(cand.Entity) {
				filtered = append(filtered, existing)
				continue
			}
			if beats(cand.Entity, existing.Entity, cfg) {
				continue // displaced
			}
			drop = true
			filtered = append(filtered, existing)
		}
		kept = filtered
		if !drop {
			kept = append(kept, cand)
		}
	}

	out := make([]entity.Entity, 0, len(kept))
	for _, c := range kept {
		out = append(out, c.Entity)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Span.End < b.Span.End
	})
	return out
}

// beats reports whether a wins a conflict against b: higher source
// priority, then higher confidence, then longer span, then earlier start.
func beats(a, b entity.Entity, cfg *config.Pipeline) bool {
	ra, rb := cfg.PriorityRank(string(a.Source)), cfg.PriorityRank(string(b.Source))
	if ra != rb {
		return ra < rb
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Span.Len() != b.Span.Len() {
		return a.Span.Len() > b.Span.Len()
	}
	return a.Span.Start < b.Span.Start
}
