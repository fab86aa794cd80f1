package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Span
		want bool
	}{
		{"identical", Span{0, 5}, Span{0, 5}, true},
		{"partial", Span{0, 5}, Span{3, 8}, true},
		{"contained", Span{0, 10}, Span{2, 4}, true},
		{"adjacent", Span{0, 5}, Span{5, 10}, false},
		{"disjoint", Span{0, 3}, Span{7, 9}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap must be symmetric")
		})
	}
}

func TestSpanLen(t *testing.T) {
	assert.Equal(t, 5, Span{Start: 3, End: 8}.Len())
}

func TestEntityIsValid(t *testing.T) {
	valid := Entity{Type: "EMAIL", Value: "a@b.it", Span: Span{0, 6}, Confidence: 0.95, Source: SourceRegex}
	assert.True(t, valid.IsValid())

	t.Run("empty value", func(t *testing.T) {
		e := valid
		e.Value = ""
		assert.False(t, e.IsValid())
	})
	t.Run("whitespace value", func(t *testing.T) {
		e := valid
		e.Value = " \t\n"
		assert.False(t, e.IsValid())
	})
	t.Run("negative start", func(t *testing.T) {
		e := valid
		e.Span = Span{-1, 4}
		assert.False(t, e.IsValid())
	})
	t.Run("empty span", func(t *testing.T) {
		e := valid
		e.Span = Span{4, 4}
		assert.False(t, e.IsValid())
	})
	t.Run("inverted span", func(t *testing.T) {
		e := valid
		e.Span = Span{6, 2}
		assert.False(t, e.IsValid())
	})
}
