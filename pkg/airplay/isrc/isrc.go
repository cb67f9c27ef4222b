// Package isrc validates, normalizes and formats International Standard Recording Codes.
//
// A code is CC-XXX-YY-NNNNN: a 2-letter country code, a 3-character alphanumeric
// registrant, a 2-digit year and a 5-digit designation. Input is case-insensitive
// and may contain hyphen, space, dot or underscore separators.
package isrc

import (
	"regexp"
	"strings"
)

// Length is the number of significant characters in a normalized code.
const Length = 12

var (
	canonical  = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}[0-9]{2}[0-9]{5}$`)
	separators = strings.NewReplacer("-", "", " ", "", ".", "", "_", "", "\t", "")
)

// Normalize strips separators and upper-cases the code. It does not validate.
func Normalize(code string) string {
	return strings.ToUpper(separators.Replace(strings.TrimSpace(code)))
}

// Validate reports whether code is a structurally valid ISRC.
func Validate(code string) bool {
	return canonical.MatchString(Normalize(code))
}

// Format returns the hyphenated display form (CC-XXX-YY-NNNNN).
// Invalid codes are returned normalized but unhyphenated.
func Format(code string) string {
	n := Normalize(code)
	if !canonical.MatchString(n) {
		return n
	}
	return n[0:2] + "-" + n[2:5] + "-" + n[5:7] + "-" + n[7:12]
}

// Candidates normalizes codes, drops invalid ones and removes duplicates,
// preserving first-seen order.
func Candidates(codes ...string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		n := Normalize(c)
		if !canonical.MatchString(n) {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Canonical returns the first valid code among codes, or "".
func Canonical(codes ...string) string {
	for _, c := range codes {
		if n := Normalize(c); canonical.MatchString(n) {
			return n
		}
	}
	return ""
}
