package document

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleDoc = `{
  "documentId": "doc-1",
  "title": "Budget vote",
  "body": {"content": [
    {"endIndex": 1, "sectionBreak": {}},
    {"endIndex": 14, "paragraph": {
      "elements": [{"endIndex": 14, "textRun": {"content": "Hello world\n", "textStyle": {"bold": true, "fontSize": {"magnitude": 11}}}}],
      "paragraphStyle": {"namedStyleType": "HEADING_1"}
    }},
    {"endIndex": 20, "paragraph": {
      "elements": [{"endIndex": 20, "textRun": {"content": "item\n", "textStyle": {"link": {"url": "https://example.com"}}}}],
      "bullet": {"listId": "kix.list1", "nestingLevel": 1},
      "paragraphStyle": {"namedStyleType": "NORMAL_TEXT", "indentStart": {"magnitude": 36, "unit": "PT"}}
    }},
    {"endIndex": 22, "paragraph": {
      "elements": [{"endIndex": 21, "inlineObjectElement": {"inlineObjectId": "kix.img1"}}, {"endIndex": 22, "horizontalRule": {}}],
      "paragraphStyle": {"namedStyleType": "NORMAL_TEXT", "indentFirstLine": {"magnitude": 0}}
    }}
  ]},
  "inlineObjects": {"kix.img1": {"inlineObjectProperties": {"embeddedObject": {
    "title": "A chart",
    "imageProperties": {"contentUri": "https://lh3.example/img1"},
    "size": {"width": {"magnitude": 400, "unit": "PT"}, "height": {"magnitude": 300, "unit": "PT"}}
  }}}},
  "lists": {
    "kix.list1": {"listProperties": {"nestingLevels": [{"glyphType": "DECIMAL"}]}},
    "kix.list2": {"listProperties": {"nestingLevels": [{"glyphSymbol": "○"}]}},
    "kix.list3": {"listProperties": {"nestingLevels": []}}
  }
}`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if doc.DocumentID != "doc-1" || doc.Title != "Budget vote" {
		t.Errorf("unexpected header: %q %q", doc.DocumentID, doc.Title)
	}
	if len(doc.Body) != 4 {
		t.Fatalf("expected 4 body nodes, got %d", len(doc.Body))
	}

	t.Run("non-paragraph nodes keep nil paragraph", func(t *testing.T) {
		if doc.Body[0].Paragraph != nil {
			t.Error("section break should not decode as a paragraph")
		}
	})

	t.Run("text run style", func(t *testing.T) {
		p := doc.Body[1].Paragraph
		if p.Style.NamedStyleType != "HEADING_1" {
			t.Errorf("expected HEADING_1, got %q", p.Style.NamedStyleType)
		}
		run := p.Elements[0]
		if !run.Text.Style.Bold || run.Text.Style.Italic {
			t.Errorf("unexpected style: %+v", run.Text.Style)
		}
		if run.LinkURL() != "" {
			t.Errorf("expected no link, got %q", run.LinkURL())
		}
	})

	t.Run("bullet and indentation", func(t *testing.T) {
		p := doc.Body[2].Paragraph
		if p.Bullet == nil || p.Bullet.ListID != "kix.list1" || p.Bullet.NestingLevel != 1 {
			t.Errorf("unexpected bullet: %+v", p.Bullet)
		}
		if !p.Style.IndentStart || !p.Style.Indented() {
			t.Error("expected indentStart to be set")
		}
		if p.Elements[0].LinkURL() != "https://example.com" {
			t.Errorf("unexpected link %q", p.Elements[0].LinkURL())
		}
	})

	t.Run("image and horizontal rule runs", func(t *testing.T) {
		p := doc.Body[3].Paragraph
		if p.Style.Indented() {
			t.Error("zero magnitude indent should not count")
		}
		if !p.Elements[0].IsImage() || p.Elements[0].InlineObjectID != "kix.img1" {
			t.Errorf("expected image run, got %+v", p.Elements[0])
		}
		if !p.Elements[1].HorizontalRule {
			t.Error("expected horizontal rule run")
		}
	})

	t.Run("inline object metadata", func(t *testing.T) {
		meta, ok := doc.ImageMetadata("kix.img1")
		if !ok {
			t.Fatal("expected metadata for kix.img1")
		}
		if meta.ContentURI != "https://lh3.example/img1" || meta.Width != 400 || meta.Height != 300 || meta.Title != "A chart" {
			t.Errorf("unexpected metadata: %+v", meta)
		}
		if _, ok := doc.ImageMetadata("missing"); ok {
			t.Error("expected missing metadata")
		}
	})

	t.Run("glyph table", func(t *testing.T) {
		table := doc.GlyphTable()
		want := map[string]string{
			"kix.list1": "NUMBER",
			"kix.list2": "HOLLOW_BULLET",
			"kix.list3": DefaultGlyph,
		}
		for id, glyph := range want {
			if table[id] != glyph {
				t.Errorf("glyph for %s = %q, want %q", id, table[id], glyph)
			}
		}
	})

	t.Run("image runs in order", func(t *testing.T) {
		ids := doc.ImageRuns()
		if len(ids) != 1 || ids[0] != "kix.img1" {
			t.Errorf("unexpected image runs: %v", ids)
		}
	})
}

func TestParse_InvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"body":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := FileSource{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.DocumentID != "doc-1" {
		t.Errorf("unexpected document id %q", doc.DocumentID)
	}

	if _, err := (FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}).Load(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/documents/doc-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleDoc))
	}))
	defer server.Close()

	doc, err := NewHTTPSource("doc-1", "tok", WithBaseURL(server.URL+"/")).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(doc.Body) != 4 {
		t.Errorf("expected 4 nodes, got %d", len(doc.Body))
	}
}

func TestHTTPSource_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": "denied"}`))
	}))
	defer server.Close()

	_, err := NewHTTPSource("doc-1", "tok", WithBaseURL(server.URL)).Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("expected 403 error, got %v", err)
	}
}
