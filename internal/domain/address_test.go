package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"suffix and unit marker", "123 Example Street Apt #2", "123 example st 2"},
		{"already short suffix", "123 Example St", "123 example st"},
		{"avenue folds", "45 Oak Avenue", "45 oak ave"},
		{"road folds", "9 Mill Road", "9 mill rd"},
		{"boulevard folds", "70 Grand Boulevard", "70 grand blvd"},
		{"place folds", "8 Bay Place", "8 bay pl"},
		{"court folds", "3 Elm Court", "3 elm ct"},
		{"punctuation stripped", "123 Main St., Apt 4", "123 main st 4"},
		{"unit keeps number", "55 Pine St Unit 12", "55 pine st 12"},
		{"floor keeps number", "55 Pine St Floor 3", "55 pine st 3"},
		{"hash becomes space", "55 Pine St #7", "55 pine st 7"},
		{"case and whitespace", "  55  PINE  STREET ", "55 pine st"},
		{"empty", "", ""},
		{"punctuation only", "#.,-", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeAddress(tt.input))
		})
	}
}

func TestNormalizeAddressVariantsConverge(t *testing.T) {
	variants := []string{
		"205 Campus Avenue Apt #3",
		"205 Campus Ave 3",
		"205 campus avenue unit 3",
		"205 CAMPUS AVE., APT 3",
	}
	want := NormalizeAddress(variants[0])
	for _, v := range variants[1:] {
		assert.Equal(t, want, NormalizeAddress(v), "variant %q", v)
	}
}

func TestPropertyKeyFromAddress(t *testing.T) {
	key := PropertyKeyFromAddress("123 example st 2")
	assert.True(t, len(key) > len("prop-"))
	assert.Equal(t, "prop-", key[:5])

	// Same normalized address always yields the same key.
	assert.Equal(t, key, PropertyKeyFromAddress("123 example st 2"))
	assert.NotEqual(t, key, PropertyKeyFromAddress("124 example st 2"))
}

func TestSyntheticKeyNamespaces(t *testing.T) {
	// Identical native ids in different sources must never collide.
	samKey := SyntheticKey(SourceSAM, "1001")
	assessKey := SyntheticKey(SourceAssessment, "1001")
	assert.NotEqual(t, samKey, assessKey)
	assert.Contains(t, samKey, "sam-")
	assert.Contains(t, assessKey, "assessment-")
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical", "123 main st", "123 main st", 1.0},
		{"disjoint", "123 main st", "45 oak ave", 0.0},
		{"partial overlap", "123 main st", "123 main st 2", 0.75},
		{"empty side", "", "123 main st", 0.0},
		{"both empty", "", "", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, JaccardSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestBestAddressMatch(t *testing.T) {
	candidates := []string{"123 main st", "123 main st 2", "45 oak ave"}

	t.Run("picks highest similarity", func(t *testing.T) {
		best, score := bestAddressMatch("123 main st 2", candidates, 0.6)
		assert.Equal(t, "123 main st 2", best)
		assert.Equal(t, 1.0, score)
	})

	t.Run("below threshold returns nothing", func(t *testing.T) {
		best, _ := bestAddressMatch("999 elm ct", candidates, 0.6)
		assert.Empty(t, best)
	})

	t.Run("no candidates", func(t *testing.T) {
		best, score := bestAddressMatch("123 main st", nil, 0.6)
		assert.Empty(t, best)
		assert.Zero(t, score)
	})
}
