// Package contentapi is a client for the organisation's GraphQL content API.
// The publish flow sends converted documents through it as articles and
// pages, and pings the site's rebuild webhook after a publish.
package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/tinynewsco/docpub/internal/metrics"
)

// Sentinel errors for the contentapi package.
var (
	// ErrGraphQL is returned when the API answers with GraphQL errors.
	ErrGraphQL = errors.New("content API returned errors")

	// ErrUnhealthy is returned when the API never answers a ping.
	ErrUnhealthy = errors.New("content API health check failed")
)

// OrganizationHeader carries the organisation access token.
const OrganizationHeader = "TNC-Organization"

// Client is a GraphQL client for the content API.
type Client struct {
	url        string
	token      string
	webhook    string
	httpClient *http.Client
	recorder   *metrics.Recorder
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRebuildWebhook sets the deploy hook Rebuild posts to.
func WithRebuildWebhook(url string) Option {
	return func(c *Client) {
		c.webhook = url
	}
}

// WithRecorder records per-operation metrics.
func WithRecorder(r *metrics.Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the API at url, authenticating with the
// organisation access token.
func NewClient(url, accessToken string, opts ...Option) *Client {
	c := &Client{
		url:   strings.TrimSuffix(url, "/"),
		token: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GQLRequest represents a GraphQL request.
type GQLRequest struct {
	Query         string `json:"query"`
	OperationName string `json:"operationName,omitempty"`
	Variables     any    `json:"variables,omitempty"`
}

// GQLResponse represents a GraphQL response.
type GQLResponse struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []GQLError      `json:"errors,omitempty"`
}

// GQLError represents a GraphQL error.
type GQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Error returns the first error message or empty string.
func (r *GQLResponse) Error() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("content API error %d: %s", e.StatusCode, e.Message)
}

// Execute sends a GraphQL operation and returns the raw response. GraphQL
// errors in the body are not treated as failures here; see Do.
func (c *Client) Execute(ctx context.Context, operationName, query string, variables any) (*GQLResponse, error) {
	bodyBytes, err := json.Marshal(GQLRequest{
		Query:         query,
		OperationName: operationName,
		Variables:     variables,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(OrganizationHeader, c.token)
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       string(respBody),
		}
	}

	if len(respBody) == 0 {
		return nil, fmt.Errorf("content API returned empty response (status %d)", resp.StatusCode)
	}

	var gqlResp GQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w (body: %s)", err, string(respBody))
	}
	return &gqlResp, nil
}

// Do executes an operation and decodes its data into out (which may be
// nil). GraphQL errors are returned wrapping ErrGraphQL.
func (c *Client) Do(ctx context.Context, operationName, query string, variables, out any) (err error) {
	start := time.Now()
	defer func() {
		c.recorder.RecordAPICall(operationName, time.Since(start), err)
		if err != nil {
			c.logger.Debug("content API operation failed", "operation", operationName, "error", err)
		}
	}()

	resp, err := c.Execute(ctx, operationName, query, variables)
	if err != nil {
		return fmt.Errorf("%s: %w", operationName, err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("%s: %w: %s", operationName, ErrGraphQL, strings.Join(msgs, "; "))
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("%s: failed to decode data: %w", operationName, err)
	}
	return nil
}

const pingQuery = `query AddonPing { __typename }`

// Ping runs a trivial query.
func (c *Client) Ping(ctx context.Context) error {
	return c.Do(ctx, "AddonPing", pingQuery, nil, nil)
}

// WaitHealthy pings the API until it answers or attempts run out.
func (c *Client) WaitHealthy(ctx context.Context, attempts uint, delay time.Duration) error {
	err := retry.Do(
		func() error {
			return c.Ping(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	return nil
}

// Rebuild posts to the site's rebuild webhook. It does nothing when no
// webhook is configured.
func (c *Client) Rebuild(ctx context.Context) error {
	if c.webhook == "" {
		c.logger.Debug("no rebuild webhook configured, skipping rebuild")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhook, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rebuild request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: "rebuild webhook failed", Body: string(body)}
	}
	return nil
}
