package content

import (
	"encoding/json"
	"fmt"
	"sort"
)

// OutputBlock is the public, serialisable shape of a block.
// List blocks populate ListType and Items; all other variants populate
// Style, Link and Children.
type OutputBlock struct {
	Type     BlockType  `json:"type"`
	Style    string     `json:"style,omitempty"`
	Link     string     `json:"link,omitempty"`
	ListType string     `json:"listType,omitempty"`
	Items    []ListItem `json:"items,omitempty"`
	Children []Child    `json:"children,omitempty"`
}

// Format orders blocks by position and projects each to its public shape.
// Blocks sharing a position keep their emission order. The input slice is
// not modified.
func Format(blocks []Block) []OutputBlock {
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	out := make([]OutputBlock, 0, len(sorted))
	for _, b := range sorted {
		if b.Type == TypeList {
			out = append(out, OutputBlock{
				Type:     b.Type,
				ListType: b.ListType,
				Items:    b.Items,
			})
			continue
		}
		out = append(out, OutputBlock{
			Type:     b.Type,
			Style:    b.Style,
			Link:     b.Link,
			Children: b.Children,
		})
	}
	return out
}

// MainImage returns the first main image block, or nil.
func MainImage(blocks []OutputBlock) *OutputBlock {
	for i := range blocks {
		if blocks[i].Type == TypeMainImage {
			return &blocks[i]
		}
	}
	return nil
}

// UnmarshalJSON decodes children into *TextChild or *ImageChild depending on
// which fields are present.
func (b *OutputBlock) UnmarshalJSON(data []byte) error {
	type plain OutputBlock
	var raw struct {
		plain
		Children []json.RawMessage `json:"children,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = OutputBlock(raw.plain)
	b.Children = nil

	for i, c := range raw.Children {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(c, &probe); err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
		if _, ok := probe["imageId"]; ok {
			var img ImageChild
			if err := json.Unmarshal(c, &img); err != nil {
				return fmt.Errorf("child %d: %w", i, err)
			}
			b.Children = append(b.Children, &img)
			continue
		}
		var txt TextChild
		if err := json.Unmarshal(c, &txt); err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
		b.Children = append(b.Children, &txt)
	}
	return nil
}
