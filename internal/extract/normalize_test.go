package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  ciao  ", "ciao"},
		{"collapses spaces and tabs", "uno \t  due", "uno due"},
		{"collapses newline runs", "riga1\n\n\n\nriga2", "riga1\nriga2"},
		{"single newline untouched", "riga1\nriga2", "riga1\nriga2"},
		{"nfkc ligature", "ﬁnanza", "finanza"},
		{"nfkc fullwidth digits", "１２３", "123"},
		{"empty input", "", ""},
		{"whitespace only", " \t \n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"  Gentile cliente,\n\n\nla sua pratica  PRAT-2024/001 è pronta.  ",
		"ﬁrma\t\tqui",
		"testo già normalizzato\nsenza doppioni",
	}
	for _, in := range inputs {
		once, _ := Normalize(in)
		twice, _ := Normalize(once)
		assert.Equal(t, once, twice)
	}
}

func TestNormalizeLogsEveryStep(t *testing.T) {
	_, log := Normalize("  a   b  ")
	require.Len(t, log.Steps, 4)

	names := make([]string, 0, len(log.Steps))
	for _, s := range log.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"unicode_nfkc", "strip", "dedup_spaces", "dedup_newlines"}, names)

	// Char counts chain: each step's before equals the previous step's after.
	for i := 1; i < len(log.Steps); i++ {
		assert.Equal(t, log.Steps[i-1].CharsAfter, log.Steps[i].CharsBefore)
	}
}
