// Package document models the source document a conversion pass reads:
// paragraph nodes, their inline runs, and the side tables (inline objects and
// list glyphs) the runs refer to. The shape follows the Google Docs API v1
// document resource, reduced to what the converter consumes.
package document

import "strings"

// Document is a loaded source document.
type Document struct {
	DocumentID    string
	Title         string
	Body          []Node
	InlineObjects map[string]ImageMetadata
	Lists         map[string]List
}

// Node is one structural element of the document body.
// Only paragraph nodes carry content; other element kinds (tables, section
// breaks, tables of contents) keep Paragraph nil and are counted but ignored.
type Node struct {
	EndIndex  int
	Paragraph *Paragraph
}

// Paragraph is a paragraph node's content.
type Paragraph struct {
	Bullet   *Bullet
	Style    ParagraphStyle
	Elements []Run
}

// Bullet marks a paragraph as a list item.
type Bullet struct {
	ListID       string
	NestingLevel int
}

// ParagraphStyle holds the paragraph-level styling the converter looks at.
type ParagraphStyle struct {
	NamedStyleType  string
	IndentStart     bool
	IndentFirstLine bool
}

// Indented reports whether either indentation flag is set.
func (s ParagraphStyle) Indented() bool {
	return s.IndentStart || s.IndentFirstLine
}

// Run is an inline fragment of a paragraph. Exactly one of Text,
// InlineObjectID or HorizontalRule is set for a well-formed run.
type Run struct {
	EndIndex       int
	Text           *TextRun
	InlineObjectID string
	HorizontalRule bool
}

// IsImage reports whether the run references an inline object.
func (r Run) IsImage() bool {
	return r.InlineObjectID != ""
}

// Content returns the run's raw text, or "" for non-text runs.
func (r Run) Content() string {
	if r.Text == nil {
		return ""
	}
	return r.Text.Content
}

// IsBlank reports whether the run has no visible text.
func (r Run) IsBlank() bool {
	return strings.TrimSpace(r.Content()) == ""
}

// LinkURL returns the run's hyperlink target, or "".
func (r Run) LinkURL() string {
	if r.Text == nil || r.Text.Style.Link == nil {
		return ""
	}
	return r.Text.Style.Link.URL
}

// TextRun is the text payload of a run.
type TextRun struct {
	Content string
	Style   TextStyle
}

// TextStyle is the inline style of a text run. Everything other than the
// three emphasis flags and the link is dropped while decoding.
type TextStyle struct {
	Bold      bool
	Italic    bool
	Underline bool
	Link      *Link
}

// Link is a hyperlink attached to a text run.
type Link struct {
	URL string
}

// ImageMetadata describes an embedded image.
type ImageMetadata struct {
	ContentURI string
	Width      float64
	Height     float64
	Title      string
}

// List describes one list's glyph.
type List struct {
	GlyphType   string
	GlyphSymbol string
}

// ImageMetadata looks up an inline object by ID.
func (d *Document) ImageMetadata(id string) (ImageMetadata, bool) {
	if d == nil || d.InlineObjects == nil {
		return ImageMetadata{}, false
	}
	meta, ok := d.InlineObjects[id]
	return meta, ok
}

// DefaultGlyph is used for lists whose glyph is unknown.
const DefaultGlyph = "BULLET"

var orderedGlyphs = map[string]string{
	"DECIMAL":      "NUMBER",
	"ZERO_DECIMAL": "NUMBER",
	"ALPHA":        "LATIN_LOWER",
	"UPPER_ALPHA":  "LATIN_UPPER",
	"ROMAN":        "ROMAN_LOWER",
	"UPPER_ROMAN":  "ROMAN_UPPER",
}

var symbolGlyphs = map[string]string{
	"●": "BULLET",
	"•": "BULLET",
	"○": "HOLLOW_BULLET",
	"■": "SQUARE_BULLET",
}

// Glyph returns the output glyph tag for the list.
func (l List) Glyph() string {
	if g, ok := orderedGlyphs[l.GlyphType]; ok {
		return g
	}
	if g, ok := symbolGlyphs[l.GlyphSymbol]; ok {
		return g
	}
	return DefaultGlyph
}

// GlyphTable returns list-id -> glyph tag for every list in the document.
func (d *Document) GlyphTable() map[string]string {
	table := make(map[string]string, len(d.Lists))
	for id, l := range d.Lists {
		table[id] = l.Glyph()
	}
	return table
}

// ImageRuns returns the inline object IDs referenced by the body, in
// document order. An ID appears once per occurrence.
func (d *Document) ImageRuns() []string {
	var ids []string
	for _, node := range d.Body {
		if node.Paragraph == nil || node.Paragraph.Bullet != nil {
			continue
		}
		for _, run := range node.Paragraph.Elements {
			if run.IsImage() {
				ids = append(ids, run.InlineObjectID)
			}
		}
	}
	return ids
}
