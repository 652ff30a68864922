package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// ContentAPI fakes the GraphQL content API and the site rebuild webhook.
// Responses are keyed by operation name; unknown operations answer with
// empty data.
type ContentAPI struct {
	*httptest.Server

	mu         sync.Mutex
	responses  map[string]string
	operations []string
	variables  []map[string]any
	rebuilds   int
}

// NewContentAPI starts a fake content API that is closed with the test.
func NewContentAPI(t *testing.T) *ContentAPI {
	t.Helper()
	c := &ContentAPI{responses: make(map[string]string)}
	c.Server = httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(c.Close)
	return c
}

// Respond sets the data returned for an operation.
func (c *ContentAPI) Respond(operation, data string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[operation] = data
}

// WebhookURL is the rebuild webhook served by the fake.
func (c *ContentAPI) WebhookURL() string {
	return c.URL + "/deploy"
}

// Operations returns the operation names received so far, in order.
func (c *ContentAPI) Operations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.operations...)
}

// Variables returns the variables of the i-th operation.
func (c *ContentAPI) Variables(i int) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.variables) {
		return nil
	}
	return c.variables[i]
}

// Rebuilds returns how many times the rebuild webhook was called.
func (c *ContentAPI) Rebuilds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuilds
}

func (c *ContentAPI) serve(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/deploy" {
		c.rebuilds++
		w.Write([]byte(`{}`))
		return
	}

	var req struct {
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}
	body, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c.operations = append(c.operations, req.OperationName)
	c.variables = append(c.variables, req.Variables)

	data, ok := c.responses[req.OperationName]
	if !ok {
		data = `{}`
	}
	w.Write([]byte(`{"data": ` + data + `}`))
}

// ImageFetcher returns deterministic bytes for any content URI.
type ImageFetcher struct{}

// Fetch implements images.Fetcher.
func (ImageFetcher) Fetch(ctx context.Context, contentURI string) ([]byte, error) {
	return []byte("png:" + contentURI), nil
}

// ImageUploader records uploads instead of storing them.
type ImageUploader struct {
	mu    sync.Mutex
	paths []string
}

// Upload implements images.Uploader.
func (u *ImageUploader) Upload(ctx context.Context, bucket, path string, data []byte) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paths = append(u.paths, bucket+"/"+path)
	return "https://storage.example/" + bucket + "/" + path, nil
}

// Paths returns the bucket/path of every upload, in order.
func (u *ImageUploader) Paths() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.paths...)
}

// Joined is a convenience for comparing operation lists.
func Joined(ops []string) string {
	return strings.Join(ops, ",")
}
