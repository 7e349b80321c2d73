package util

import (
	"regexp"
	"strings"
	"unicode"
)

var reSpaces = regexp.MustCompile(`\s+`)

// NormalizeKey lower-cases and drops everything that is not a letter or digit.
// "# Ctns Sent" and "ctns_sent" both become "ctnssent".
func NormalizeKey(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range strings.ToLower(input) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokenize splits on anything that is not a letter or digit and lower-cases the parts.
func Tokenize(input string) []string {
	return strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func DigitsOnly(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func HasDigit(input string) bool {
	return strings.IndexFunc(input, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

// LastFourDigits is the loose join key between load and sales references.
// Fewer than four digits yields whatever is there; no digits yields "".
func LastFourDigits(reference string) string {
	digits := DigitsOnly(reference)
	if len(digits) > 4 {
		return digits[len(digits)-4:]
	}
	return digits
}
