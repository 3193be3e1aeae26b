package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSet(t *testing.T) {
	set := tokenSet("The Fire, downtown! The Fire.")
	_, hasThe := set["the"]
	_, hasFire := set["fire"]
	_, hasDowntown := set["downtown"]
	assert.True(t, hasThe)
	assert.True(t, hasFire)
	assert.True(t, hasDowntown)
	assert.Len(t, set, 3)
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical text", "fire downtown warehouse", "fire downtown warehouse", 1.0},
		{"disjoint text", "fire downtown", "flood uptown", 0.0},
		{"both empty", "", "", 0.0},
		{"one empty", "fire", "", 0.0},
		{"partial overlap", "fire downtown warehouse", "fire downtown depot", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jaccardSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestJaccardSimilarityIgnoresPunctuationAndCase(t *testing.T) {
	got := jaccardSimilarity("Fire, Downtown!", "fire downtown")
	assert.InDelta(t, 1.0, got, 0.001)
}
