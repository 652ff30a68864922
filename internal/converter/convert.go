// Package converter turns a document's body into the typed block sequence
// that gets published. Convert is a pure single pass over the nodes; Runner
// wraps it with image resolution and cache persistence.
package converter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tinynewsco/docpub/internal/content"
	"github.com/tinynewsco/docpub/internal/document"
)

// ErrCountMismatch is returned when a pass did not visit every node of the
// document. No blocks are returned and the image cache must not be saved.
var ErrCountMismatch = errors.New("content processing failed: node count mismatch")

// Format-mode sentinels. A run whose trimmed text is one of these toggles
// format mode and is never emitted.
const (
	FormatStart = "FORMAT START"
	FormatEnd   = "FORMAT END"
)

// DefaultEmbedPattern matches links to media hosts the site can embed.
var DefaultEmbedPattern = regexp.MustCompile(`(?i)twitter\.com|youtube\.com|youtu\.be|instagram\.com|facebook\.com|spotify\.com|vimeo\.com|apple\.com|tiktok\.com`)

var headingPattern = regexp.MustCompile(`(?i)^HEADING`)

// Options tunes a conversion. The zero value uses the document's own list
// table and DefaultEmbedPattern.
type Options struct {
	// Glyphs maps list IDs to list types. Nil means doc.GlyphTable().
	Glyphs map[string]string
	// EmbedPattern decides which single-link paragraphs become embeds.
	EmbedPattern *regexp.Regexp

	// beforeNode runs ahead of each node's handling.
	beforeNode func(document.Node)
}

// Result is the output of Convert. Blocks are in emission order; use
// content.Format to order them.
type Result struct {
	Blocks   []content.Block
	Visited  int
	Expected int
	// MainImageID is the inline object ID of the main image, if any.
	MainImageID string
}

// Convert walks doc.Body once and classifies every paragraph into blocks.
// images maps inline object IDs to resolved URLs; image runs with no entry
// are skipped. A panic while handling a node is recovered and reported as
// ErrCountMismatch.
func Convert(doc *document.Document, images map[string]string, opts Options) (res *Result, err error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}
	if opts.Glyphs == nil {
		opts.Glyphs = doc.GlyphTable()
	}
	if opts.EmbedPattern == nil {
		opts.EmbedPattern = DefaultEmbedPattern
	}

	c := &pass{
		doc:    doc,
		images: images,
		opts:   opts,
		lists:  make(map[string]int),
	}
	expected := len(doc.Body)

	defer func() {
		if r := recover(); r != nil {
			res = &Result{Visited: c.visited, Expected: expected}
			err = fmt.Errorf("%w: visited %d of %d nodes: %v", ErrCountMismatch, c.visited, expected, r)
		}
	}()

	for _, node := range doc.Body {
		c.node(node)
		c.visited++
	}

	if c.mainImage != nil && !c.mainImageEmitted {
		c.blocks = append(c.blocks, *c.mainImage)
	}

	res = &Result{Visited: c.visited, Expected: expected, MainImageID: c.mainImageID}
	if c.visited != expected {
		return res, fmt.Errorf("%w: visited %d of %d nodes", ErrCountMismatch, c.visited, expected)
	}
	res.Blocks = c.blocks
	return res, nil
}

// pass holds the running state of one Convert call.
type pass struct {
	doc    *document.Document
	images map[string]string
	opts   Options

	blocks []content.Block
	// lists maps list IDs to the index of their block in blocks.
	lists map[string]int

	formatMode       bool
	mainImage        *content.Block
	mainImageID      string
	mainImageEmitted bool

	visited int
}

func (c *pass) node(node document.Node) {
	if c.opts.beforeNode != nil {
		c.opts.beforeNode(node)
	}
	p := node.Paragraph
	if p == nil {
		return
	}

	if p.Bullet != nil {
		c.listItem(node)
		return
	}
	if c.embed(node) {
		return
	}
	c.runs(node)
}

// listItem appends the paragraph to the block for its list, creating the
// block on first sight. List IDs are looked up across the whole pass so a
// list interrupted by other content still merges into one block.
func (c *pass) listItem(node document.Node) {
	p := node.Paragraph
	// An empty bullet line still publishes as an item with no children.
	item := content.ListItem{NestingLevel: p.Bullet.NestingLevel, Children: []content.TextChild{}}
	for _, run := range p.Elements {
		if run.IsBlank() {
			continue
		}
		item.Children = append(item.Children, *textChild(run, content.CleanContent(run.Content())))
	}

	if i, ok := c.lists[p.Bullet.ListID]; ok {
		c.blocks[i].Items = append(c.blocks[i].Items, item)
		return
	}

	listType, ok := c.opts.Glyphs[p.Bullet.ListID]
	if !ok || listType == "" {
		listType = document.DefaultGlyph
	}
	c.lists[p.Bullet.ListID] = len(c.blocks)
	c.blocks = append(c.blocks, content.Block{
		Type:     content.TypeList,
		Position: node.EndIndex,
		ListID:   p.Bullet.ListID,
		ListType: listType,
		Items:    []content.ListItem{item},
	})
}

// embed emits an embed block for a paragraph holding a single link to an
// embeddable host.
func (c *pass) embed(node document.Node) bool {
	var only *document.Run
	for i, run := range node.Paragraph.Elements {
		if run.Text == nil || run.IsBlank() {
			continue
		}
		if only != nil {
			return false
		}
		only = &node.Paragraph.Elements[i]
	}
	if only == nil {
		return false
	}

	link := only.LinkURL()
	if link == "" {
		link = strings.TrimSpace(only.Content())
	}
	if !c.opts.EmbedPattern.MatchString(link) {
		return false
	}

	c.blocks = append(c.blocks, content.Block{
		Type:     content.TypeEmbed,
		Link:     link,
		Position: node.EndIndex,
	})
	return true
}

// runs accumulates the paragraph's runs into a text, blockquote, hr or image
// block.
func (c *pass) runs(node document.Node) {
	p := node.Paragraph
	multiRun := len(p.Elements) > 1
	cur := content.Block{Position: node.EndIndex}

	for _, run := range p.Elements {
		switch {
		case run.IsImage():
			c.image(&cur, run.InlineObjectID)

		case !run.IsBlank():
			text := strings.TrimSpace(run.Content())
			if text == FormatStart || text == FormatEnd {
				c.formatMode = text == FormatStart
				continue
			}

			var child *content.TextChild
			if c.formatMode {
				cur.Style = content.FormattedTextStyle
				child = textChild(run, content.CleanFormatted(run.Content()))
			} else {
				cur.Style = p.Style.NamedStyleType
				child = textChild(run, content.CleanContent(run.Content()))
			}
			if !cur.IsImage() {
				cur.Type = content.TypeText
				if p.Style.Indented() {
					cur.Type = content.TypeBlockquote
				}
			}

			if multiRun && headingPattern.MatchString(cur.Style) && len(cur.Children) == 1 {
				c.emit(cur)
				cur = content.Block{
					Type:     content.TypeText,
					Style:    cur.Style,
					Position: node.EndIndex,
				}
			}
			cur.Children = append(cur.Children, child)

		case run.HorizontalRule:
			cur.Type = content.TypeHR
		}
	}

	if cur.Type == "" {
		return
	}
	if cur.Type != content.TypeHR && len(cur.Children) == 0 {
		return
	}
	c.emit(cur)
}

// image adds a resolved image to the block. The first image of the pass
// makes the block the main image.
func (c *pass) image(cur *content.Block, id string) {
	url, ok := c.images[id]
	if !ok || url == "" {
		return
	}
	meta, ok := c.doc.ImageMetadata(id)
	if !ok {
		return
	}

	child := &content.ImageChild{
		Width:    meta.Width,
		Height:   meta.Height,
		ImageID:  id,
		ImageURL: url,
		ImageAlt: content.CleanContent(meta.Title),
	}
	cur.Children = append(cur.Children, child)

	if c.mainImage != nil {
		if cur.Type != content.TypeMainImage {
			cur.Type = content.TypeImage
		}
		return
	}
	cur.Type = content.TypeMainImage
	c.mainImageID = id
	c.mainImage = &content.Block{
		Type:     content.TypeMainImage,
		Position: cur.Position,
		Children: []content.Child{child},
	}
}

func (c *pass) emit(b content.Block) {
	if b.Type == content.TypeMainImage {
		c.mainImageEmitted = true
	}
	c.blocks = append(c.blocks, b)
}

func textChild(run document.Run, text string) *content.TextChild {
	child := &content.TextChild{Content: text, Link: run.LinkURL()}
	if run.Text != nil {
		child.Style = content.CleanStyle(run.Text.Style)
	}
	return child
}
