package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	// nonAlnumRe clears punctuation so "123 Main St., Apt 4" and
	// "123 Main St Apt 4" compare equal.
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)

	// suffixRes folds street suffixes to their short form in both directions,
	// so "street" and "st" land on the same token. Order is not significant;
	// the patterns are disjoint.
	suffixRes = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`\b(street|st)\b`), " st "},
		{regexp.MustCompile(`\b(avenue|ave)\b`), " ave "},
		{regexp.MustCompile(`\b(road|rd)\b`), " rd "},
		{regexp.MustCompile(`\b(boulevard|blvd)\b`), " blvd "},
		{regexp.MustCompile(`\b(place|pl)\b`), " pl "},
		{regexp.MustCompile(`\b(court|ct)\b`), " ct "},
	}

	// unitMarkerRe drops apartment/unit/floor markers but keeps the unit
	// number itself: "apt 4" → "4".
	unitMarkerRe = regexp.MustCompile(`\b(apartment|apt|unit|floor|fl)\b`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeAddress reduces an address to its canonical comparison form.
// Returns "" for empty or punctuation-only input.
func NormalizeAddress(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "#", " ")
	value = nonAlnumRe.ReplaceAllString(value, " ")
	for _, s := range suffixRes {
		value = s.re.ReplaceAllString(value, s.repl)
	}
	value = unitMarkerRe.ReplaceAllString(value, " ")
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(value), " ")
}

// PropertyKeyFromAddress derives the canonical key for a property linked
// across sources. Input must already be normalized.
func PropertyKeyFromAddress(normalized string) string {
	return "prop-" + shortHash(normalized)
}

// SyntheticKey derives the fallback key for a property seen in a single
// source. The source prefix keeps key namespaces disjoint: two sources can
// never produce the same key even if their native ids collide as strings.
func SyntheticKey(source Source, nativeID string) string {
	return string(source) + "-" + shortHash(nativeID)
}

func shortHash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:8])
}

// tokenSet splits a normalized address into its unique tokens.
func tokenSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		set[tok] = struct{}{}
	}
	return set
}

// JaccardSimilarity scores token overlap between two normalized addresses in
// [0, 1]. Used by the fuzzy linking strategy; 1.0 means identical token sets.
func JaccardSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	overlap := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			overlap++
		}
	}
	union := len(ta) + len(tb) - overlap
	return float64(overlap) / float64(union)
}

// bestAddressMatch returns the candidate most similar to addr, or "" when no
// candidate reaches the threshold. Candidates must be pre-sorted for
// deterministic tie-breaking.
func bestAddressMatch(addr string, candidates []string, threshold float64) (string, float64) {
	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		if score := JaccardSimilarity(addr, c); score > bestScore {
			bestScore = score
			best = c
		}
	}
	if bestScore < threshold {
		return "", bestScore
	}
	return best, bestScore
}
