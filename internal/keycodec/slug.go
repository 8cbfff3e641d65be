package keycodec

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLen bounds the length of a track id.
const MaxSlugLen = 80

// apostrophes are dropped rather than turned into separators, so
// "Love's" becomes "loves" and not "love-s".
var apostrophes = strings.NewReplacer("'", "", "’", "", "‘", "", "`", "")

// Slugify turns free text into a track id: lowercase ASCII letters and digits
// separated by single hyphens, diacritics stripped, at most MaxSlugLen chars.
func Slugify(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	folded = apostrophes.Replace(strings.ToLower(folded))

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if len(slug) > MaxSlugLen {
		slug = strings.TrimRight(slug[:MaxSlugLen], "-")
	}
	return slug
}

// IsSlug reports whether s is a well-formed track id.
func IsSlug(s string) bool {
	return len(s) <= MaxSlugLen && slugRe.MatchString(s)
}
