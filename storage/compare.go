package storage

import (
	"strings"

	"golang.org/x/text/cases"
)

// fold returns the case-folded form of s used for title ordering and
// case-insensitive search. A Caser is not safe for concurrent use, so one
// is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// CompareTitles orders books by case-folded title. Books whose folded
// titles are equal compare equal.
func CompareTitles(a, b Book) int {
	return strings.Compare(fold(a.Title), fold(b.Title))
}

// containsFold reports whether needle occurs in haystack ignoring case.
// needle must already be folded.
func containsFold(haystack, needle string) bool {
	return strings.Contains(fold(haystack), needle)
}
