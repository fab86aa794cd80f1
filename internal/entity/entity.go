// Package entity defines the immutable value type shared by every
// extraction engine and the resolver. An Entity is created once by an
// engine and never mutated afterwards; the resolver and the post-filters
// build new instances instead of editing in place.
package entity

// Source identifies which engine produced an entity.
type Source string

const (
	SourceRegex   Source = "regex"
	SourceNER     Source = "ner"
	SourceLexicon Source = "lexicon"
)

// Span is a half-open [Start, End) byte range into the normalized text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether two spans share at least one position.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Entity is a single extracted entity with full provenance.
type Entity struct {
	// Type is the canonical tag (EMAIL, CODICEFISCALE, PARTITAIVA, IBAN,
	// TELEFONO, DATA, IMPORTO, NUMERO_PRATICA, AZIENDA, ...).
	Type string `json:"type"`

	// Value is the matched (later: canonicalized) surface form.
	Value string `json:"value"`

	// Span locates the original match in the normalized text. It keeps
	// pointing at the original substring even after canonicalization
	// rewrites Value.
	Span Span `json:"span"`

	// Confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Source is the producing engine.
	Source Source `json:"source"`

	// Version identifies the producing rule set or model
	// (e.g. "regex-v1.0", "lexicon-v1.0", "it_core_news_lg").
	Version string `json:"version"`
}

// IsValid reports whether the entity may enter the resolver: a non-empty,
// non-whitespace value and a well-formed span. Engines drop invalid
// candidates at the source; the resolver re-checks as a safety net.
func (e Entity) IsValid() bool {
	if e.Span.Start < 0 || e.Span.End <= e.Span.Start {
		return false
	}
	return !isBlank(e.Value)
}

// Overlaps reports whether this entity's span overlaps other's.
func (e Entity) Overlaps(other Entity) bool {
	return e.Span.Overlaps(other.Span)
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
