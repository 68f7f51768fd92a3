/*
normalize.go - Free-text comparison keys

PURPOSE:
  Turns arbitrary upstream text into a stable comparison key so that
  "Gestión de Proyecto", "gestion  de proyecto" and "GESTION DE PROYECTO."
  all land on the same lookup slot.

PIPELINE:
  1. Unicode NFD decomposition, combining marks removed (accent strip)
  2. Everything except letters/digits/whitespace/hyphen/underscore removed
  3. Whitespace runs collapsed to a single space
  4. Trimmed and lower-cased

NormalizeKey never fails: nil and empty inputs produce "".

SEE ALSO:
  - index.go: Seeds description and alias lookup tables from these keys
*/
package taxonomy

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes diacritics: NFD decomposition, drop combining marks,
// recompose. Declared at package level so every lookup-table seeder and
// every request-time caller shares the same transformer.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey converts any value into a comparison key.
func NormalizeKey(input any) string {
	if input == nil {
		return ""
	}
	s, ok := input.(string)
	if !ok {
		s = fmt.Sprint(input)
	}
	if s == "" {
		return ""
	}

	if stripped, _, err := transform.String(stripMarks, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(unicode.ToLower(r))
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastSpace = true
		default:
			// Punctuation and symbols are dropped entirely.
		}
	}
	return strings.TrimRight(b.String(), " ")
}
