package extract

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"mailnerd/internal/config"
	"mailnerd/internal/entity"
)

// LexiconEntry is one gazetteer entry: a lemma, the entity class it maps
// to, and optional extra surface forms matched the same way as the lemma.
type LexiconEntry struct {
	Lemma        string   `yaml:"lemma" json:"lemma"`
	Label        string   `yaml:"label" json:"label"`
	SurfaceForms []string `yaml:"surface_forms,omitempty" json:"surface_forms,omitempty"`
}

// Lexicon is an ordered gazetteer. Order matters for output determinism,
// so constructors sort their entries.
type Lexicon []LexiconEntry

// LexiconFromMap builds a Lexicon from the plain {lemma: entity label}
// form, sorted by lemma for deterministic candidate order.
func LexiconFromMap(m map[string]string) Lexicon {
	lemmas := make([]string, 0, len(m))
	for lemma := range m {
		lemmas = append(lemmas, lemma)
	}
	sort.Strings(lemmas)

	lex := make(Lexicon, 0, len(lemmas))
	for _, lemma := range lemmas {
		lex = append(lex, LexiconEntry{Lemma: lemma, Label: m[lemma]})
	}
	return lex
}

// LexiconEngine performs lemma-based dictionary lookup over the normalized
// text. Matched entities carry the entry's entity class as their type —
// never the lemma itself.
type LexiconEngine struct {
	cfg *config.Pipeline
	lex Lexicon
}

// NewLexiconEngine builds an engine over lex (may be empty).
func NewLexiconEngine(cfg *config.Pipeline, lex Lexicon) *LexiconEngine {
	return &LexiconEngine{cfg: cfg, lex: lex}
}

// Extract finds every word-bounded, case-insensitive occurrence of each
// surface form. Value preserves the original casing from the text;
// type is the entry label; source=lexicon. Matching runs over a folded
// copy whose byte offsets are mapped back to the original text, so case
// mappings that change rune width cannot misalign spans.
func (e *LexiconEngine) Extract(text string) []entity.Entity {
	var out []entity.Entity
	folded, offsets := foldText(text)

	for _, entry := range e.lex {
		if entry.Label == "" || !e.cfg.IsEntityTypeEnabled(entry.Label) {
			continue
		}

		forms := append([]string{entry.Lemma}, entry.SurfaceForms...)
		for _, form := range forms {
			if form == "" {
				continue
			}
			lowerForm := strings.ToLower(form)

			for pos := 0; pos < len(folded); {
				idx := strings.Index(folded[pos:], lowerForm)
				if idx < 0 {
					break
				}
				start := pos + idx
				end := start + len(lowerForm)

				if wordBounded(folded, start, end) {
					origStart, origEnd := offsets[start], offsets[end]
					cand := entity.Entity{
						Type:       entry.Label,
						Value:      text[origStart:origEnd],
						Span:       entity.Span{Start: origStart, End: origEnd},
						Confidence: e.cfg.LexiconConfidence,
						Source:     entity.SourceLexicon,
						Version:    e.cfg.LexiconVersion,
					}
					if cand.IsValid() {
						out = append(out, cand)
					}
				}
				pos = start + 1
			}
		}
	}

	return out
}

// foldText lowercases text rune by rune and records, for every byte of
// the folded string, the originating byte offset in text. Some case
// mappings change rune width (U+0130 'İ' lowers to a 1-byte 'i'), so
// folded offsets cannot be used on the original text directly. The
// table carries one trailing entry mapping len(folded) to len(text).
func foldText(text string) (string, []int) {
	var b strings.Builder
	b.Grow(len(text))
	offsets := make([]int, 0, len(text)+1)
	for i, r := range text {
		lr := unicode.ToLower(r)
		for n := utf8.RuneLen(lr); n > 0; n-- {
			offsets = append(offsets, i)
		}
		b.WriteRune(lr)
	}
	offsets = append(offsets, len(text))
	return b.String(), offsets
}

// wordBounded reports whether text[start:end] is not glued to adjacent
// letters or digits.
func wordBounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
