package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlugChars    = regexp.MustCompile(`[^a-z0-9-]+`)
	repeatedHyphens = regexp.MustCompile(`-{2,}`)
)

// CanonicalizeName converts a data set name into its canonical URL-safe slug:
// lowercase, accents stripped, non-alphanumerics collapsed to single hyphens,
// hyphens trimmed from both ends. A name that canonicalizes to an empty
// string is invalid.
func CanonicalizeName(name string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, name)

	result = strings.ToLower(result)
	result = nonSlugChars.ReplaceAllString(result, "-")
	result = repeatedHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if result == "" {
		return "", NewValidationError("name", "canonicalizes to an empty slug")
	}
	return result, nil
}
