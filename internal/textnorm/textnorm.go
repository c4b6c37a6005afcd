// Package textnorm folds Turkish text for case- and accent-insensitive
// matching of names, commands and date words.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Lower lower-cases s with Turkish rules (I→ı, İ→i).
func Lower(s string) string {
	return cases.Lower(language.Turkish).String(s)
}

// Fold lower-cases s and strips diacritics so "Ayşe", "AYŞE" and "ayse"
// compare equal. Dotless ı folds to i.
func Fold(s string) string {
	lowered := strings.ReplaceAll(Lower(strings.TrimSpace(s)), "ı", "i")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lowered)
	if err != nil {
		return lowered
	}
	return out
}

// Contains reports whether needle occurs in haystack after folding both.
func Contains(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// Fields splits s on whitespace and drops empty tokens.
func Fields(s string) []string {
	return strings.Fields(s)
}

// EscapeLike escapes SQL LIKE wildcards using backslash.
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// LikeFolded folds s and escapes it for a LIKE '%' || $n || '%' pattern.
func LikeFolded(s string) string {
	return EscapeLike(Fold(s))
}
