// Package rubros indexes the cost taxonomy and resolves free-text or coded
// references to canonical rubro ids.
package rubros

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeKey folds a label into its lookup key: lowercase, diacritics
// removed, every run of non-alphanumeric characters collapsed to a single
// hyphen, no leading or trailing hyphen.
//
//	NormalizeKey("Ingeniero Líder")                 -> "ingeniero-lider"
//	NormalizeKey("Service Delivery Manager (SDM)")  -> "service-delivery-manager-sdm"
//	NormalizeKey("  --MOD/SDM--  ")                  -> "mod-sdm"
//
// The function is pure and idempotent.
func NormalizeKey(s string) string {
	if s == "" {
		return ""
	}
	// Transformers carry state, so the chain is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}

	var b strings.Builder
	b.Grow(len(folded))
	pending := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pending = true
	}
	return b.String()
}
