package engine

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhone reduces a typed number to digits with the 255 country code.
func NormalizePhone(p string) string {
	d := nonDigits.ReplaceAllString(p, "")
	switch {
	case strings.HasPrefix(d, "0"):
		return "255" + d[1:]
	case d != "" && !strings.HasPrefix(d, "255"):
		return "255" + d
	}
	return d
}

// PhoneMatches compares two numbers by their trailing nine digits, which
// survive any combination of country code and leading zero.
func PhoneMatches(a, b string) bool {
	da := nonDigits.ReplaceAllString(a, "")
	db := nonDigits.ReplaceAllString(b, "")
	if len(da) < 9 || len(db) < 9 {
		return da != "" && da == db
	}
	return da[len(da)-9:] == db[len(db)-9:]
}

// ValidPayPhone accepts anything that normalizes to a plausible MSISDN.
func ValidPayPhone(p string) bool {
	d := NormalizePhone(p)
	return len(d) >= 11 && len(d) <= 15
}
