package core

import "golang.org/x/text/cases"

var foldCaser = cases.Fold()

// SameDN compares two X.509 oneline distinguished names the way RFC 5280
// requires for name-matching: case-insensitively, modulo surrounding
// whitespace. golang.org/x/text/cases.Fold implements Unicode case folding,
// which is a closer match to RFC 5280's DirectoryString comparison rules
// than strings.EqualFold for the non-ASCII subject names this directory
// actually carries.
func SameDN(a, b string) bool {
	return foldCaser.String(trimDN(a)) == foldCaser.String(trimDN(b))
}

func trimDN(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

// CountryFromDN extracts the C= RDN from a oneline DN, falling back to
// "XX" (ICAO's own placeholder for unknown) when absent. Shared by every
// package that derives a certificate's country from its subject DN rather
// than a separately-supplied value.
func CountryFromDN(dn string) string {
	const marker = "/C="
	idx := indexOfSubstr(dn, marker)
	if idx < 0 {
		return "XX"
	}
	rest := dn[idx+len(marker):]
	if slash := indexOfSubstr(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	if rest == "" {
		return "XX"
	}
	return rest
}

func indexOfSubstr(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
