package util

import (
	"regexp"
	"strings"
)

var (
	e164Re     = regexp.MustCompile(`^\+[1-9]\d{10,14}$`)
	nonDigitRe = regexp.MustCompile(`[^\d\+]+`)
)

// ValidE164 reports whether phone is strict E.164: a leading "+" followed
// by 11-15 digits, no separators.
func ValidE164(phone string) bool {
	return e164Re.MatchString(phone)
}

// NormalizePhone strips separators and rewrites a 00 international prefix
// to "+". It never guesses country codes; validation stays strict.
func NormalizePhone(raw string) string {
	s := nonDigitRe.ReplaceAllString(strings.TrimSpace(raw), "")

	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}

	return s
}
