// Package normalize holds canonicalization helpers for user identifiers.
package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Phone returns a normalized form of a phone number: surrounding
// whitespace, inner spaces, dashes and parentheses are stripped so
// "+1 (555) 123-4567" and "+15551234567" compare equal. A leading "+"
// is preserved.
func Phone(p string) string {
	p = strings.TrimSpace(p)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, p)
}
