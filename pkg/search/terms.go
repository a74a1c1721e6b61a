package search

import (
	"sort"
	"strings"
	"unicode"
)

// Tokenize splits s into lower-cased runs of letters and digits, sorted and
// without duplicates. "Q3 Report-final.PDF" yields [final pdf q3 report].
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return mergeTerms(nil, fields)
}

// mergeTerms returns the sorted union of a and b.
func mergeTerms(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, term := range list {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			out = append(out, term)
		}
	}
	sort.Strings(out)
	return out
}
