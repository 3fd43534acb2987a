package text

import (
	"strings"
	"unicode"
)

// IsCyrillic reports whether r belongs to the Cyrillic script.
func IsCyrillic(r rune) bool {
	return unicode.Is(unicode.Cyrillic, r)
}

// IsBasicLatin reports whether r is an ASCII letter.
func IsBasicLatin(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// KeepLettersAndSpaces drops every rune that is neither a letter nor whitespace.
func KeepLettersAndSpaces(content string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, content)
}

// KeepLetters drops every rune that is not a letter.
func KeepLetters(content string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, content)
}

// CollapseSpaces replaces whitespace runs with a single space and trims the ends.
func CollapseSpaces(content string) string {
	return strings.Join(strings.Fields(content), " ")
}
