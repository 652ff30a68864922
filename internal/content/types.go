// Package content defines the typed block sequence a document converts into,
// the text/style cleaning helpers shared by the converter, and the formatter
// that orders blocks and reduces them to their public JSON shape.
package content

// BlockType identifies a block variant.
type BlockType string

// Block variants. Headings are emitted as TypeText blocks carrying a
// HEADING_* style; downstream renderers key off the style.
const (
	TypeText       BlockType = "text"
	TypeBlockquote BlockType = "blockquote"
	TypeList       BlockType = "list"
	TypeImage      BlockType = "image"
	TypeMainImage  BlockType = "mainImage"
	TypeEmbed      BlockType = "embed"
	TypeHR         BlockType = "hr"
)

// FormattedTextStyle is the style given to text between FORMAT START and
// FORMAT END markers.
const FormattedTextStyle = "FORMATTED_TEXT"

// Block is one converted unit of content. Position is the end index of the
// source node and is the only ordering key.
type Block struct {
	Type     BlockType
	Style    string
	Link     string
	Position int
	Children []Child

	// List blocks only.
	ListID   string
	ListType string
	Items    []ListItem
}

// IsImage reports whether the block is an image or main image block.
func (b *Block) IsImage() bool {
	return b.Type == TypeImage || b.Type == TypeMainImage
}

// Child is an inline element of a non-list block: a *TextChild or an
// *ImageChild.
type Child interface {
	childKind() string
}

// Style is the reduced inline style of a text child.
type Style struct {
	Bold      bool `json:"bold"`
	Italic    bool `json:"italic"`
	Underline bool `json:"underline"`
}

// TextChild is a run of text.
type TextChild struct {
	Content string `json:"content"`
	Style   Style  `json:"style"`
	Link    string `json:"link,omitempty"`
}

func (*TextChild) childKind() string { return "text" }

// ImageChild is a resolved image.
type ImageChild struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	ImageID  string  `json:"imageId"`
	ImageURL string  `json:"imageUrl"`
	ImageAlt string  `json:"imageAlt"`
}

func (*ImageChild) childKind() string { return "image" }

// ListItem is one paragraph of a list.
type ListItem struct {
	NestingLevel int         `json:"nestingLevel"`
	Children     []TextChild `json:"children"`
}
