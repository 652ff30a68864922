package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinynewsco/docpub/internal/config"
	"github.com/tinynewsco/docpub/internal/home"
	"github.com/tinynewsco/docpub/internal/images"
	"github.com/tinynewsco/docpub/internal/svcctx"
	"github.com/tinynewsco/docpub/internal/testutil"
)

const testDocument = `{
  "documentId": "doc-42",
  "title": "Council votes on budget",
  "body": {"content": [
    {"endIndex": 1, "sectionBreak": {}},
    {"endIndex": 20, "paragraph": {
      "elements": [{"endIndex": 20, "textRun": {"content": "Council votes\n", "textStyle": {}}}],
      "paragraphStyle": {"namedStyleType": "HEADING_1"}
    }},
    {"endIndex": 22, "paragraph": {
      "elements": [{"endIndex": 22, "inlineObjectElement": {"inlineObjectId": "kix.1"}}],
      "paragraphStyle": {"namedStyleType": "NORMAL_TEXT"}
    }},
    {"endIndex": 60, "paragraph": {
      "elements": [{"endIndex": 60, "textRun": {"content": "The council met on Tuesday.\n", "textStyle": {"italic": true}}}],
      "paragraphStyle": {"namedStyleType": "NORMAL_TEXT"}
    }}
  ]},
  "inlineObjects": {"kix.1": {"inlineObjectProperties": {"embeddedObject": {
    "title": "Council chamber",
    "imageProperties": {"contentUri": "https://lh3.example/kix.1"},
    "size": {"width": {"magnitude": 400}, "height": {"magnitude": 300}}
  }}}}
}`

const testForm = `{
  "article-headline": "Council votes on budget",
  "article-locale": "en-US",
  "article-category": "3",
  "article-tags": "City Hall",
  "article-authors": ["7"]
}`

const articleInsertResponse = `{"insert_articles": {"returning": [
	{"id": 42, "slug": "council-votes-on-budget", "category": {"slug": "news"}, "article_translations": [{"id": 9}]}
]}}`

type testEnv struct {
	srv      *Server
	http     *httptest.Server
	api      *testutil.ContentAPI
	uploader *testutil.ImageUploader
	cfgFile  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := testutil.NewContentAPI(t)
	fake.Respond("AddonFindArticleByCategorySlug", `{"articles": []}`)
	fake.Respond("AddonInsertArticleGoogleDocNoID", articleInsertResponse)

	cfgFile := testutil.WriteConfig(t, fmt.Sprintf(`organization_name: "Oaklyn Observer"
content_api:
  url: %q
  access_token: "org-token"
assets:
  upload_url: "https://storage.example"
publish:
  site_url: "https://oaklyn.example/"
  rebuild_webhook: %q
`, fake.URL, fake.WebhookURL()))

	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	h, _ := home.New(filepath.Join(t.TempDir(), "home"))

	uploader := &testutil.ImageUploader{}
	srv, err := New(Config{
		ConfigManager: mgr,
		Home:          h,
		Services: svcctx.Options{
			Store:    images.NewMemoryStore(),
			Fetcher:  testutil.ImageFetcher{},
			Uploader: uploader,
		},
		Logger: testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, http: ts, api: fake, uploader: uploader, cfgFile: cfgFile}
}

func (e *testEnv) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(e.http.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.http.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
}

func TestServer_Ready(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.http.URL + "/ready")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready status = %d", resp.StatusCode)
	}
	if ops := env.api.Operations(); len(ops) != 1 || ops[0] != "AddonPing" {
		t.Errorf("operations = %v", ops)
	}
}

func TestServer_Convert(t *testing.T) {
	env := newTestEnv(t)
	req := map[string]any{"namespace": "council-votes", "document": json.RawMessage(testDocument)}

	resp, body := env.post(t, "/convert", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}

	blocks, _ := body["blocks"].([]any)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d: %v", len(blocks), blocks)
	}
	if typ := blocks[1].(map[string]any)["type"]; typ != "mainImage" {
		t.Errorf("second block type = %v", typ)
	}
	want := "tnc-assets/oaklyn-observer/council-votes/imagekix.1.png"
	if paths := env.uploader.Paths(); len(paths) != 1 || paths[0] != want {
		t.Errorf("uploads = %v", paths)
	}

	// The second pass reuses the cached URL.
	env.post(t, "/convert", req)
	if paths := env.uploader.Paths(); len(paths) != 1 {
		t.Errorf("expected cached image to be reused, uploads = %v", paths)
	}
}

func TestServer_Convert_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing namespace", map[string]any{"document": json.RawMessage(testDocument)}},
		{"path namespace", map[string]any{"namespace": "../x", "document": json.RawMessage(testDocument)}},
		{"missing document", map[string]any{"namespace": "x"}},
		{"not an object", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.post(t, "/convert", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestServer_Publish(t *testing.T) {
	env := newTestEnv(t)
	req := map[string]any{"document": json.RawMessage(testDocument), "form": json.RawMessage(testForm)}

	resp, body := env.post(t, "/publish", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["status"] != "success" {
		t.Errorf("result = %v", body)
	}
	if body["url"] != "https://oaklyn.example/en-US/articles/news/council-votes-on-budget" {
		t.Errorf("url = %v", body["url"])
	}

	want := []string{
		"AddonFindArticleByCategorySlug",
		"AddonInsertArticleGoogleDocNoID",
		"AddonDeleteAuthorArticles",
		"AddonDeleteTagArticles",
		"AddonInsertArticleSlugVersion",
		"AddonUpsertPublishedArticleTranslation",
		"AddonInsertTag",
		"AddonInsertAuthorArticle",
	}
	if got := testutil.Joined(env.api.Operations()); got != testutil.Joined(want) {
		t.Errorf("operations =\n%s\nwant\n%s", got, testutil.Joined(want))
	}
	if env.api.Rebuilds() != 1 {
		t.Errorf("rebuilds = %d", env.api.Rebuilds())
	}
}

func TestServer_Preview_MissingHeadline(t *testing.T) {
	env := newTestEnv(t)
	req := map[string]any{"document": json.RawMessage(testDocument), "form": json.RawMessage(`{"article-slug": "x"}`)}

	resp, body := env.post(t, "/preview", req)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if body["status"] != "error" {
		t.Errorf("result = %v", body)
	}
	if ops := env.api.Operations(); len(ops) != 0 || env.api.Rebuilds() != 0 {
		t.Errorf("nothing should reach the content API: %v", ops)
	}
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/convert", map[string]any{"namespace": "n", "document": json.RawMessage(testDocument)})

	resp, err := http.Get(env.http.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	text, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`docpub_passes_total{result="success"} 1`,
		`docpub_images_total{outcome="uploaded"} 1`,
	} {
		if !strings.Contains(string(text), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestServer_Locales(t *testing.T) {
	env := newTestEnv(t)
	env.api.Respond("AddonGetOrganizationLocales", `{"organization_locales": [
		{"locale": {"code": "en-US", "name": "English"}},
		{"locale": {"code": "es", "name": "Spanish"}}
	]}`)

	resp, err := http.Get(env.http.URL + "/api/locales")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Locales []struct {
			Code string `json:"code"`
		} `json:"locales"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if len(out.Locales) != 2 || out.Locales[1].Code != "es" {
		t.Errorf("locales = %+v", out.Locales)
	}
}

func TestServer_Settings(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.http.URL + "/api/settings/content_api.access_token")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Entry config.Entry `json:"entry"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Entry.Value != "<redacted>" {
		t.Errorf("secret leaked: %v", out.Entry.Value)
	}

	resp2, err := http.Get(env.http.URL + "/api/settings/does.not.exist")
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("unknown key status = %d", resp2.StatusCode)
	}

	resp3, err := http.Get(env.http.URL + "/api/settings?prefix=assets.")
	if err != nil {
		t.Fatal(err)
	}
	defer resp3.Body.Close()
	var list struct {
		Settings []config.Entry `json:"settings"`
	}
	json.NewDecoder(resp3.Body).Decode(&list)
	if len(list.Settings) == 0 {
		t.Fatal("no assets settings listed")
	}
	for i, e := range list.Settings {
		if !strings.HasPrefix(e.Key, "assets.") {
			t.Errorf("unexpected key %q", e.Key)
		}
		if i > 0 && list.Settings[i-1].Key > e.Key {
			t.Errorf("settings not sorted: %q before %q", list.Settings[i-1].Key, e.Key)
		}
	}
}

func TestServer_ReloadsServicesOnConfigChange(t *testing.T) {
	env := newTestEnv(t)
	before := env.srv.Services()

	env.srv.configMgr.WatchConfig()
	time.Sleep(100 * time.Millisecond)
	data, _ := os.ReadFile(env.cfgFile)
	updated := strings.Replace(string(data), "Oaklyn Observer", "Oaklyn Ledger", 1)
	if err := os.WriteFile(env.cfgFile, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	// A truncating write can surface as more than one change event.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && env.srv.Services().Config.OrganizationName != "Oaklyn Ledger" {
		time.Sleep(50 * time.Millisecond)
	}
	after := env.srv.Services()
	if after == before {
		t.Fatal("services were not rebuilt")
	}
	if after.Config.OrganizationName != "Oaklyn Ledger" {
		t.Errorf("organization = %q", after.Config.OrganizationName)
	}
}

func TestServer_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	mgr, err := config.NewManager(env.cfgFile)
	if err != nil {
		t.Fatal(err)
	}
	srv, err := New(Config{
		Port:          testutil.FreePort(t),
		ConfigManager: mgr,
		Services:      svcctx.Options{Store: images.NewMemoryStore()},
		Logger:        testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	stop := testutil.Background(t, srv.Start)
	if err := testutil.WaitHealthy(context.Background(), "http://"+srv.Addr(), 5*time.Second); err != nil {
		t.Fatal(err)
	}
	if !srv.IsRunning() {
		t.Error("IsRunning() = false while serving")
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	if err := stop(); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func TestNew_RequiresConfigManager(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without a config manager")
	}
}
