// Package identity turns noisy per-race player names into stable team names.
//
// Names are grouped by their upper-cased first letter and each group gets a
// canonical team name: an already established multi-letter name if one
// exists, otherwise the group's longest common prefix, otherwise the bare
// letter. Established names are never downgraded; single-letter placeholders
// are upgraded once a longer prefix shows up.
package identity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// invisible lists formatting code points that OCR output carries around
// without rendering anything.
var invisible = map[rune]bool{
	'\u00AD': true, // soft hyphen
	'\u200B': true, // zero width space
	'\u200C': true, // zero width non-joiner
	'\u200D': true, // zero width joiner
	'\u2060': true, // word joiner
	'\uFEFF': true, // byte order mark
}

// Normalize strips control and invisible characters from name and trims
// surrounding whitespace. The result is the only form used as a mapping key.
func Normalize(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || invisible[r] {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}

// LongestCommonPrefix returns the longest prefix shared by every name.
// A single name is returned unchanged and an empty set yields "".
// Comparison is case-sensitive and rune-wise; invalid UTF-8 bytes are
// compared as single bytes, so the result is always a prefix of every name.
func LongestCommonPrefix(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}

	first := names[0]
	n := 0
	for n < len(first) {
		_, size := utf8.DecodeRuneInString(first[n:])
		unit := first[n : n+size]
		for _, other := range names[1:] {
			if !strings.HasPrefix(other[n:], unit) {
				return first[:n]
			}
		}
		n += size
	}
	return first
}

// upper returns the canonical casing of a team name.
func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

// Canonical is the ledger form of a manually entered team name: normalized
// and upper-cased like the names the resolver assigns.
func Canonical(name string) string {
	return upper(Normalize(name))
}

// Initial is the upper-cased first letter of a normalized name. Names with
// the same Initial belong to the same team group.
func Initial(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 {
		return ""
	}
	return upper(string(r))
}
