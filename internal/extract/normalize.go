// Package extract implements the three extraction engines (regex, NER,
// lexicon), the deterministic text normalizer that feeds them, the
// resolver that merges their candidates, and the post-extraction filters.
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizationStep records one deterministic transformation applied to
// the text, so the same normalization can be replayed offline.
type NormalizationStep struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CharsBefore int    `json:"chars_before"`
	CharsAfter  int    `json:"chars_after"`
}

// NormalizationLog is the ordered list of transformations of one run.
// It lives only for the duration of that run and is used for audit logging.
type NormalizationLog struct {
	Steps []NormalizationStep
}

func (l *NormalizationLog) add(name, description string, before, after int) {
	l.Steps = append(l.Steps, NormalizationStep{
		Name:        name,
		Description: description,
		CharsBefore: before,
		CharsAfter:  after,
	})
}

var (
	multiSpaceRe   = regexp.MustCompile(`[ \t]+`)
	multiNewlineRe = regexp.MustCompile(`\n{2,}`)
)

// Normalize applies the four deterministic canonicalization steps, always
// in the same order: NFKC, trim, collapse spaces/tabs, collapse newlines.
// The transformation is idempotent: Normalize(Normalize(t)) == Normalize(t).
func Normalize(text string) (string, *NormalizationLog) {
	log := &NormalizationLog{}
	cur := text

	before := len(cur)
	cur = norm.NFKC.String(cur)
	log.add("unicode_nfkc", "Unicode NFKC normalization (ligatures, full-width chars, compatibility forms)", before, len(cur))

	before = len(cur)
	cur = strings.TrimSpace(cur)
	log.add("strip", "Stripped leading and trailing whitespace", before, len(cur))

	before = len(cur)
	cur = multiSpaceRe.ReplaceAllString(cur, " ")
	log.add("dedup_spaces", "Collapsed runs of spaces and tabs to a single space", before, len(cur))

	before = len(cur)
	cur = multiNewlineRe.ReplaceAllString(cur, "\n")
	log.add("dedup_newlines", "Collapsed runs of newlines to a single newline", before, len(cur))

	return cur, log
}
