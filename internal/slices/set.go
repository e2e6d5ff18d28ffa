package slices

import "golang.org/x/exp/slices"

// Subset reports whether every element of a occurs in b.
func Subset[L ~[]E, E comparable](a, b L) bool {
	for _, x := range a {
		if !slices.Contains(b, x) {
			return false
		}
	}

	return true
}
