package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// defaultTimeout covers a full pass, which uploads every new image before
// the server answers.
const defaultTimeout = 5 * time.Minute

// Client calls a running docpub server.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get decodes the JSON response of GET path into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decodeResponse(status, body, result)
}

// Post sends body as JSON and decodes the response into result.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	status, resp, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	return decodeResponse(status, resp, result)
}

// GetText returns the raw body of GET path.
func (c *Client) GetText(ctx context.Context, path string) (string, error) {
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", fmt.Errorf("server error (%d): %s", status, body)
	}
	return string(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var r io.Reader
	if payload != nil {
		r = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func decodeResponse(status int, body []byte, result any) error {
	if status >= 400 {
		// A failed publish still answers with a result worth showing.
		if status == http.StatusUnprocessableEntity && result != nil && json.Unmarshal(body, result) == nil {
			return &StatusError{StatusCode: status, Body: string(body)}
		}
		var e ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("server error (%d): %s", status, e.Error)
		}
		return fmt.Errorf("server error (%d): %s", status, body)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ErrorResponse is the server's error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusError is a non-2xx response whose body was still decoded into the
// caller's result.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Body)
}
