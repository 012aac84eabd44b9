package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PhaseKey folds a phase name for comparison: accents stripped, NFC, case-folded.
// Phases are stored as plain strings, so "Preparacion" and "preparación" must
// land on the same key.
func PhaseKey(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.TrimSpace(name))
	if err != nil {
		stripped = norm.NFC.String(strings.TrimSpace(name))
	}
	return cases.Fold().String(strings.Join(strings.Fields(stripped), " "))
}
