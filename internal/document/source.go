package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Source loads a document for conversion.
type Source interface {
	Load(ctx context.Context) (*Document, error)
}

// FileSource reads a Docs API JSON export from disk.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(ctx context.Context) (*Document, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", s.Path, err)
	}
	return Parse(data)
}

// DefaultAPIURL is the public Docs API endpoint.
const DefaultAPIURL = "https://docs.googleapis.com"

// HTTPSource fetches a document from the Docs API.
type HTTPSource struct {
	baseURL    string
	documentID string
	token      string
	httpClient *http.Client
}

// HTTPSourceOption configures an HTTPSource.
type HTTPSourceOption func(*HTTPSource)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.httpClient = hc
	}
}

// WithBaseURL overrides the Docs API base URL.
func WithBaseURL(url string) HTTPSourceOption {
	return func(s *HTTPSource) {
		if url != "" {
			s.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// NewHTTPSource creates a source for one document, authenticated with an
// OAuth bearer token.
func NewHTTPSource(documentID, token string, opts ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		baseURL:    DefaultAPIURL,
		documentID: documentID,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load implements Source.
func (s *HTTPSource) Load(ctx context.Context) (*Document, error) {
	u := fmt.Sprintf("%s/v1/documents/%s", s.baseURL, s.documentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("docs API error (status %d): %s", resp.StatusCode, string(body))
	}
	return Decode(bytes.NewReader(body))
}
