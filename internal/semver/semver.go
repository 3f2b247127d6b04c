package semver

import (
	"strings"
	"unicode"
)

// Parse splits a version string into its alphanumeric segments.
// A leading "v" or "V" is dropped and any run of other characters separates
// segments, so "v1.2-beta_3" yields ["1" "2" "beta" "3"].
func Parse(v string) []string {
	v = strings.TrimSpace(v)
	if len(v) > 0 && (v[0] == 'v' || v[0] == 'V') {
		v = v[1:]
	}
	return strings.FieldsFunc(v, func(r rune) bool {
		return r > unicode.MaxASCII || !isAlnum(byte(r))
	})
}

// Compare compares two version strings segment by segment.
// Returns -1 if a < b, 0 if a == b, +1 if a > b.
// Missing segments count as "0". Numeric segments compare by value and sort
// above non-numeric ones; two non-numeric segments compare case-insensitively.
// A blank version on either side compares equal.
func Compare(a, b string) int {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}

	aParts := Parse(a)
	bParts := Parse(b)
	for i, n := 0, max(len(aParts), len(bParts)); i < n; i++ {
		av, bv := "0", "0"
		if i < len(aParts) {
			av = aParts[i]
		}
		if i < len(bParts) {
			bv = bParts[i]
		}
		if cmp := compareSegment(av, bv); cmp != 0 {
			return cmp
		}
	}
	return 0
}

func compareSegment(a, b string) int {
	aNum, bNum := isNumeric(a), isNumeric(b)
	switch {
	case aNum && bNum:
		return compareNumericRuns(a, b)
	case aNum:
		return 1
	case bNum:
		return -1
	}
	return sign(strings.Compare(strings.ToLower(a), strings.ToLower(b)))
}

// compareNumericRuns compares digit strings of any length by value.
func compareNumericRuns(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return sign(strings.Compare(a, b))
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
