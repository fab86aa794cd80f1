package extract

import (
	"regexp"

	"mailnerd/internal/config"
	"mailnerd/internal/entity"
)

// Rule is a single curated pattern. Group selects the submatch emitted as
// the entity (0 = whole match); rules with a context anchor use it so the
// anchor text never leaks into the entity value.
type Rule struct {
	Type    string
	Pattern *regexp.Regexp
	Group   int
}

// DefaultRules is the curated pattern set for Italian business email.
//
// PARTITAIVA is anchored on purpose: either the IT country prefix or a
// nearby P.IVA label. Bare 11-digit runs must not match. TELEFONO is
// likewise restricted to the three Italian shapes (+39 international,
// 0-prefixed landline, 3-prefixed mobile) so arbitrary digit runs never
// become phone numbers.
func DefaultRules() []Rule {
	return []Rule{
		{Type: "EMAIL", Pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},

		// 16-char fiscal code: 6 letters, 2 digits, month letter, 2 digits,
		// municipality letter + 3 digits, control letter.
		{Type: "CODICEFISCALE", Pattern: regexp.MustCompile(`(?i)\b[A-Z]{6}\d{2}[A-Z]\d{2}[A-Z]\d{3}[A-Z]\b`)},

		{Type: "PARTITAIVA", Pattern: regexp.MustCompile(`(?i)\bIT ?\d{11}\b`)},
		{Type: "PARTITAIVA", Pattern: regexp.MustCompile(`(?i)(?:P\.? ?IVA|partita iva)[ :]*(\d{11})\b`), Group: 1},

		{Type: "IBAN", Pattern: regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)},

		{Type: "TELEFONO", Pattern: regexp.MustCompile(`\+39 ?\d{9,10}\b`)},
		{Type: "TELEFONO", Pattern: regexp.MustCompile(`\b0\d{1,3} ?\d{5,8}\b`)},
		{Type: "TELEFONO", Pattern: regexp.MustCompile(`\b3\d{2} ?\d{7}\b`)},

		{Type: "DATA", Pattern: regexp.MustCompile(`\b(?:0?[1-9]|[12]\d|3[01])[/\-](?:0?[1-9]|1[0-2])[/\-]\d{4}\b`)},

		{Type: "IMPORTO", Pattern: regexp.MustCompile(`€ ?\d{1,3}(?:\.\d{3})*(?:[.,]\d{1,2})?|\d{1,3}(?:\.\d{3})*(?:[.,]\d{1,2})? ?€`)},

		{Type: "NUMERO_PRATICA", Pattern: regexp.MustCompile(`(?i)\bPRAT(?:ICA)?[ ./\-:]*[A-Z0-9][A-Z0-9\-/]{2,}\b`)},
		{Type: "NUMERO_PRATICA", Pattern: regexp.MustCompile(`(?i)\bN\. ?[A-Z0-9][A-Z0-9\-/]{2,}\b`)},
	}
}

// RegexEngine produces candidate entities from a curated pattern set.
type RegexEngine struct {
	cfg   *config.Pipeline
	rules []Rule
}

// NewRegexEngine builds an engine over rules; nil rules means DefaultRules.
func NewRegexEngine(cfg *config.Pipeline, rules []Rule) *RegexEngine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &RegexEngine{cfg: cfg, rules: rules}
}

// Extract applies every rule to the normalized text. Candidates carry
// source=regex, the configured confidence, and the rule-set version.
// Empty or whitespace-only matches are dropped.
func (e *RegexEngine) Extract(text string) []entity.Entity {
	var out []entity.Entity

	for _, rule := range e.rules {
		if !e.cfg.IsEntityTypeEnabled(rule.Type) {
			continue
		}

		for _, idx := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := idx[0], idx[1]
			if rule.Group > 0 && 2*rule.Group+1 < len(idx) && idx[2*rule.Group] >= 0 {
				start, end = idx[2*rule.Group], idx[2*rule.Group+1]
			}
			if start < 0 || end <= start {
				continue
			}

			cand := entity.Entity{
				Type:       rule.Type,
				Value:      text[start:end],
				Span:       entity.Span{Start: start, End: end},
				Confidence: e.cfg.RegexConfidence,
				Source:     entity.SourceRegex,
				Version:    e.cfg.RegexRuleVersion,
			}
			if cand.IsValid() {
				out = append(out, cand)
			}
		}
	}

	return out
}
