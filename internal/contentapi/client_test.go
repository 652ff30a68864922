package contentapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinynewsco/docpub/internal/content"
)

// capture records the last GraphQL request a test server received.
type capture struct {
	req    GQLRequest
	vars   map[string]any
	header http.Header
}

func newGraphQLServer(t *testing.T, c *capture, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		var raw struct {
			Query         string         `json:"query"`
			OperationName string         `json:"operationName"`
			Variables     map[string]any `json:"variables"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if c != nil {
			c.req = GQLRequest{Query: raw.Query, OperationName: raw.OperationName}
			c.vars = raw.Variables
			c.header = r.Header.Clone()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
}

func TestClient_Execute(t *testing.T) {
	var c capture
	server := newGraphQLServer(t, &c, `{"data": {"articles": []}}`)
	defer server.Close()

	client := NewClient(server.URL+"/", "org-token")
	resp, err := client.Execute(context.Background(), "AddonFindPageBySlug", findPageBySlugQuery, map[string]any{"slug": "about"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Error() != "" {
		t.Errorf("unexpected error: %s", resp.Error())
	}

	if got := c.header.Get(OrganizationHeader); got != "org-token" {
		t.Errorf("%s header = %q", OrganizationHeader, got)
	}
	if c.header.Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}
	if c.req.OperationName != "AddonFindPageBySlug" {
		t.Errorf("operationName = %q", c.req.OperationName)
	}
	if c.vars["slug"] != "about" {
		t.Errorf("variables = %v", c.vars)
	}
}

func TestClient_Execute_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "nope").Execute(context.Background(), "Op", "query Op { x }", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Body != `{"error":"bad token"}` {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestClient_Do_GraphQLErrors(t *testing.T) {
	server := newGraphQLServer(t, nil, `{"errors": [{"message": "field not found"}, {"message": "permission denied"}]}`)
	defer server.Close()

	err := NewClient(server.URL, "t").Do(context.Background(), "Op", "query Op { x }", nil, nil)
	if !errors.Is(err, ErrGraphQL) {
		t.Fatalf("expected ErrGraphQL, got %v", err)
	}
	if want := "Op: content API returned errors: field not found; permission denied"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestClient_FindArticleBySlug(t *testing.T) {
	var c capture
	server := newGraphQLServer(t, &c, `{"data": {"articles": [{"id": 7, "slug": "budget-vote", "category_id": 3}]}}`)
	defer server.Close()

	refs, err := NewClient(server.URL, "t").FindArticleBySlug(context.Background(), 3, "budget-vote", "doc-1", "en-US")
	if err != nil {
		t.Fatalf("FindArticleBySlug() error = %v", err)
	}
	if len(refs) != 1 || refs[0].ID != 7 {
		t.Errorf("refs = %+v", refs)
	}
	if c.vars["document_id"] != "doc-1" || c.vars["category_id"] != float64(3) {
		t.Errorf("variables = %v", c.vars)
	}
}

func TestClient_UpsertArticle(t *testing.T) {
	tests := []struct {
		name   string
		id     int
		wantOp string
	}{
		{"new article", 0, "AddonInsertArticleGoogleDocNoID"},
		{"existing article", 42, "AddonInsertArticleGoogleDocWithID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c capture
			server := newGraphQLServer(t, &c, `{"data": {"insert_articles": {"returning": [
				{"id": 42, "slug": "budget-vote", "category": {"slug": "news"}, "article_translations": [{"id": 9, "locale_code": "en-US"}]}
			]}}}`)
			defer server.Close()

			blocks := []content.OutputBlock{{Type: content.TypeText, Style: "NORMAL_TEXT", Children: []content.Child{&content.TextChild{Content: "hi"}}}}
			article, err := NewClient(server.URL, "t").UpsertArticle(context.Background(), ArticleInput{
				ID:         tt.id,
				Slug:       "budget-vote",
				DocumentID: "doc-1",
				CategoryID: 3,
				LocaleCode: "en-US",
				Headline:   "Budget vote",
				Content:    blocks,
				SEO:        SEO{SearchTitle: "Budget"},
			})
			if err != nil {
				t.Fatalf("UpsertArticle() error = %v", err)
			}
			if article.ID != 42 || article.Category.Slug != "news" || article.TranslationID() != 9 {
				t.Errorf("article = %+v", article)
			}
			if c.req.OperationName != tt.wantOp {
				t.Errorf("operation = %q, want %q", c.req.OperationName, tt.wantOp)
			}
			if _, ok := c.vars["article_sources"].([]any); !ok {
				t.Errorf("article_sources must be sent as an array, got %v", c.vars["article_sources"])
			}
			if c.vars["search_title"] != "Budget" {
				t.Errorf("seo fields not flattened: %v", c.vars)
			}
			if _, ok := c.vars["content"].([]any); !ok {
				t.Errorf("content = %v", c.vars["content"])
			}
		})
	}
}

func TestClient_UpsertPage_EmptyReturning(t *testing.T) {
	server := newGraphQLServer(t, nil, `{"data": {"insert_pages": {"returning": []}}}`)
	defer server.Close()

	if _, err := NewClient(server.URL, "t").UpsertPage(context.Background(), PageInput{Slug: "about"}); err == nil {
		t.Error("expected error when no page is returned")
	}
}

func TestClient_OrganizationLocales(t *testing.T) {
	server := newGraphQLServer(t, nil, `{"data": {"organization_locales": [{"locale": {"code": "en-US", "name": "English"}}, {"locale": {"code": "es", "name": "Spanish"}}]}}`)
	defer server.Close()

	locales, err := NewClient(server.URL, "t").OrganizationLocales(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(locales) != 2 || locales[1].Code != "es" {
		t.Errorf("locales = %+v", locales)
	}
}

func TestClient_WaitHealthy(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data": {"__typename": "query_root"}}`))
	}))
	defer server.Close()

	if err := NewClient(server.URL, "t").WaitHealthy(context.Background(), 3, time.Millisecond); err != nil {
		t.Fatalf("WaitHealthy() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 pings, got %d", calls.Load())
	}
}

func TestClient_WaitHealthy_GivesUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewClient(server.URL, "t").WaitHealthy(context.Background(), 2, time.Millisecond)
	if !errors.Is(err, ErrUnhealthy) {
		t.Errorf("expected ErrUnhealthy, got %v", err)
	}
}

func TestClient_Rebuild(t *testing.T) {
	t.Run("posts to webhook", func(t *testing.T) {
		var hit atomic.Bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method: %s", r.Method)
			}
			hit.Store(true)
			w.Write([]byte(`{"job":{"state":"PENDING"}}`))
		}))
		defer server.Close()

		client := NewClient("http://unused", "t", WithRebuildWebhook(server.URL+"/deploy"))
		if err := client.Rebuild(context.Background()); err != nil {
			t.Fatal(err)
		}
		if !hit.Load() {
			t.Error("webhook was not called")
		}
	})

	t.Run("no webhook is a no-op", func(t *testing.T) {
		if err := NewClient("http://unused", "t").Rebuild(context.Background()); err != nil {
			t.Errorf("Rebuild() error = %v", err)
		}
	})

	t.Run("webhook failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		err := NewClient("http://unused", "t", WithRebuildWebhook(server.URL)).Rebuild(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 APIError, got %v", err)
		}
	})
}
