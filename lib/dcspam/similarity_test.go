package dcspam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "free nitro now", "free nitro now", 1},
		{"same words different order", "nitro free now", "free nitro now", 1},
		{"duplicates counted once", "spam spam spam eggs", "eggs spam", 1},
		{"half overlap", "a b c", "a b d", 0.5},
		{"disjoint", "hello there", "buy coins", 0},
		{"one of four", "a b", "a c d", 0.25},
		{"first empty", "", "a b", 0},
		{"second empty", "a b", "", 0},
		{"both empty", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 0.0001)
		})
	}
}

func TestSimilarity_SymmetricAndBounded(t *testing.T) {
	texts := []string{"", "a", "a b c", "a b c d e", "x y z", "a x", "b c d e f g"}
	for _, a := range texts {
		for _, b := range texts {
			s1, s2 := Similarity(a, b), Similarity(b, a)
			assert.InDelta(t, s1, s2, 0.0000001, "%q vs %q", a, b)
			assert.GreaterOrEqual(t, s1, 0.0)
			assert.LessOrEqual(t, s1, 1.0)
		}
	}
}
