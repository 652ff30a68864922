package content

import (
	"regexp"
	"strings"

	"github.com/tinynewsco/docpub/internal/document"
)

// CleanContent trims surrounding whitespace from run text.
func CleanContent(s string) string {
	return strings.TrimSpace(s)
}

// CleanFormatted cleans text inside a FORMAT START/END block. Leading
// whitespace and the paragraph's trailing line break are removed; trailing
// spaces are kept. Indentation is not preserved, so the first line of an
// indented block loses its leading spaces.
func CleanFormatted(s string) string {
	s = strings.TrimLeft(s, " \t\r\n\v\f")
	return strings.TrimRight(s, "\r\n\v")
}

// CleanStyle reduces a run style to bold/italic/underline.
func CleanStyle(s document.TextStyle) Style {
	return Style{
		Bold:      s.Bold,
		Italic:    s.Italic,
		Underline: s.Underline,
	}
}

var slugTransliterator = strings.NewReplacer(
	"à", "a", "á", "a", "ä", "a", "â", "a",
	"è", "e", "é", "e", "ë", "e", "ê", "e",
	"ì", "i", "í", "i", "ï", "i", "î", "i",
	"ò", "o", "ó", "o", "ö", "o", "ô", "o",
	"ù", "u", "ú", "u", "ü", "u", "û", "u",
	"ñ", "n", "ç", "c",
	"·", "-", "/", "-", "_", "-", ",", "-", ":", "-", ";", "-",
)

var (
	slugInvalid    = regexp.MustCompile(`[^a-z0-9 -]`)
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugDashes     = regexp.MustCompile(`-+`)
)

// Slugify turns a headline or user-entered slug into a URL path segment.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugTransliterator.Replace(s)
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(s, "-")
	return slugDashes.ReplaceAllString(s, "-")
}
