package document

import (
	"encoding/json"
	"fmt"
	"io"
)

// API wire types. Only the fields the converter reads are declared; the rest
// of the Docs resource is ignored by encoding/json.
type apiDocument struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Body       struct {
		Content []apiStructuralElement `json:"content"`
	} `json:"body"`
	InlineObjects map[string]apiInlineObject `json:"inlineObjects"`
	Lists         map[string]apiList         `json:"lists"`
}

type apiStructuralElement struct {
	EndIndex  int           `json:"endIndex"`
	Paragraph *apiParagraph `json:"paragraph,omitempty"`
}

type apiParagraph struct {
	Elements []apiParagraphElement `json:"elements"`
	Bullet   *struct {
		ListID       string `json:"listId"`
		NestingLevel *int   `json:"nestingLevel,omitempty"`
	} `json:"bullet,omitempty"`
	ParagraphStyle struct {
		NamedStyleType  string        `json:"namedStyleType"`
		IndentStart     *apiDimension `json:"indentStart,omitempty"`
		IndentFirstLine *apiDimension `json:"indentFirstLine,omitempty"`
	} `json:"paragraphStyle"`
}

type apiParagraphElement struct {
	EndIndex int `json:"endIndex"`
	TextRun  *struct {
		Content   string `json:"content"`
		TextStyle struct {
			Bold      bool `json:"bold"`
			Italic    bool `json:"italic"`
			Underline bool `json:"underline"`
			Link      *struct {
				URL string `json:"url"`
			} `json:"link,omitempty"`
		} `json:"textStyle"`
	} `json:"textRun,omitempty"`
	InlineObjectElement *struct {
		InlineObjectID string `json:"inlineObjectId"`
	} `json:"inlineObjectElement,omitempty"`
	HorizontalRule *json.RawMessage `json:"horizontalRule,omitempty"`
}

type apiDimension struct {
	Magnitude float64 `json:"magnitude"`
	Unit      string  `json:"unit"`
}

type apiInlineObject struct {
	InlineObjectProperties struct {
		EmbeddedObject struct {
			Title           string `json:"title"`
			Description     string `json:"description"`
			ImageProperties struct {
				ContentURI string `json:"contentUri"`
			} `json:"imageProperties"`
			Size struct {
				Width  apiDimension `json:"width"`
				Height apiDimension `json:"height"`
			} `json:"size"`
		} `json:"embeddedObject"`
	} `json:"inlineObjectProperties"`
}

type apiList struct {
	ListProperties struct {
		NestingLevels []struct {
			GlyphType   string `json:"glyphType"`
			GlyphSymbol string `json:"glyphSymbol"`
		} `json:"nestingLevels"`
	} `json:"listProperties"`
}

// Decode reads a Docs API document resource.
func Decode(r io.Reader) (*Document, error) {
	var raw apiDocument
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return fromAPI(&raw), nil
}

// Parse decodes a Docs API document resource from bytes.
func Parse(data []byte) (*Document, error) {
	var raw apiDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return fromAPI(&raw), nil
}

func fromAPI(raw *apiDocument) *Document {
	doc := &Document{
		DocumentID:    raw.DocumentID,
		Title:         raw.Title,
		Body:          make([]Node, 0, len(raw.Body.Content)),
		InlineObjects: make(map[string]ImageMetadata, len(raw.InlineObjects)),
		Lists:         make(map[string]List, len(raw.Lists)),
	}

	for _, el := range raw.Body.Content {
		node := Node{EndIndex: el.EndIndex}
		if el.Paragraph != nil {
			node.Paragraph = paragraphFromAPI(el.Paragraph)
		}
		doc.Body = append(doc.Body, node)
	}

	for id, obj := range raw.InlineObjects {
		emb := obj.InlineObjectProperties.EmbeddedObject
		doc.InlineObjects[id] = ImageMetadata{
			ContentURI: emb.ImageProperties.ContentURI,
			Width:      emb.Size.Width.Magnitude,
			Height:     emb.Size.Height.Magnitude,
			Title:      emb.Title,
		}
	}

	for id, l := range raw.Lists {
		var list List
		if levels := l.ListProperties.NestingLevels; len(levels) > 0 {
			list.GlyphType = levels[0].GlyphType
			list.GlyphSymbol = levels[0].GlyphSymbol
		}
		doc.Lists[id] = list
	}

	return doc
}

func paragraphFromAPI(p *apiParagraph) *Paragraph {
	para := &Paragraph{
		Style: ParagraphStyle{
			NamedStyleType:  p.ParagraphStyle.NamedStyleType,
			IndentStart:     p.ParagraphStyle.IndentStart != nil && p.ParagraphStyle.IndentStart.Magnitude > 0,
			IndentFirstLine: p.ParagraphStyle.IndentFirstLine != nil && p.ParagraphStyle.IndentFirstLine.Magnitude > 0,
		},
		Elements: make([]Run, 0, len(p.Elements)),
	}
	if p.Bullet != nil {
		para.Bullet = &Bullet{ListID: p.Bullet.ListID}
		if p.Bullet.NestingLevel != nil {
			para.Bullet.NestingLevel = *p.Bullet.NestingLevel
		}
	}

	for _, el := range p.Elements {
		run := Run{EndIndex: el.EndIndex}
		switch {
		case el.TextRun != nil:
			ts := el.TextRun.TextStyle
			run.Text = &TextRun{
				Content: el.TextRun.Content,
				Style: TextStyle{
					Bold:      ts.Bold,
					Italic:    ts.Italic,
					Underline: ts.Underline,
				},
			}
			if ts.Link != nil && ts.Link.URL != "" {
				run.Text.Style.Link = &Link{URL: ts.Link.URL}
			}
		case el.InlineObjectElement != nil:
			run.InlineObjectID = el.InlineObjectElement.InlineObjectID
		case el.HorizontalRule != nil:
			run.HorizontalRule = true
		}
		para.Elements = append(para.Elements, run)
	}
	return para
}
