package resolver

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/medleyfm/medley/internal/models"
)

// stripMarks decomposes to NFD, drops combining marks, and recomposes,
// turning "Beyoncé" into "Beyonce".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a name field for comparison: lowercase, diacritics
// stripped, bracketed suffixes removed ("(Remastered)", "[Live]"), whitespace
// collapsed.
func Normalize(s string) string {
	s = strings.ToLower(s)

	if stripped, _, err := transform.String(stripMarks, s); err == nil {
		s = stripped
	}

	s = stripBrackets(s)

	return strings.Join(strings.Fields(s), " ")
}

// stripBrackets removes parenthesized and square-bracketed segments.
// Unbalanced brackets leave the remainder untouched.
func stripBrackets(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// Key builds the primary lookup key for a record from its normalized artist,
// normalized name, and kind. Records sharing a key are merge candidates.
func Key(artist, name string, kind models.Kind) string {
	return Normalize(artist) + "|" + Normalize(name) + "|" + string(kind)
}

// RecordKey returns the lookup key for a provider record.
func RecordKey(rec models.ProviderRecord) string {
	return Key(rec.Artist, rec.Name, rec.Kind)
}

// EntityKey returns the lookup key for a canonical entity.
func EntityKey(e *models.CanonicalEntity) string {
	return Key(e.Artist, e.Name, e.Kind)
}
