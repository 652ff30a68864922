package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// FetchError describes a failed image fetch.
type FetchError struct {
	URI        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URI, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URI, e.StatusCode)
}

// Unwrap makes every FetchError match ErrFetchFailed.
func (e *FetchError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFetchFailed, e.Err}
	}
	return []error{ErrFetchFailed}
}

// HTTPFetcher downloads image bytes with an OAuth bearer token.
type HTTPFetcher struct {
	token      string
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher. A nil client uses a 60s timeout client.
func NewHTTPFetcher(token string, hc *http.Client) *HTTPFetcher {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPFetcher{token: token, httpClient: hc}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, contentURI string) ([]byte, error) {
	if contentURI == "" {
		return nil, &FetchError{URI: contentURI, Err: errors.New("empty content URI")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, contentURI, nil)
	if err != nil {
		return nil, &FetchError{URI: contentURI, Err: err}
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URI: contentURI, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URI: contentURI, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URI: contentURI, Err: err}
	}
	return data, nil
}

// UploadError is returned when storage rejects an upload.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload error (status %d): %s", e.StatusCode, e.Body)
}

// HTTPUploader PUTs objects to an S3-compatible endpoint at
// {endpoint}/{bucket}/{path}. Network errors and 5xx responses are retried.
type HTTPUploader struct {
	endpoint    string
	accessKeyID string
	secretKey   string
	maxAttempts uint
	retryDelay  time.Duration
	httpClient  *http.Client
}

// UploaderConfig configures an HTTPUploader.
type UploaderConfig struct {
	Endpoint    string
	AccessKeyID string
	SecretKey   string
	// MaxRetries is the number of attempts per upload (default 3).
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// NewHTTPUploader creates an uploader.
func NewHTTPUploader(cfg UploaderConfig) *HTTPUploader {
	u := &HTTPUploader{
		endpoint:    strings.TrimSuffix(cfg.Endpoint, "/"),
		accessKeyID: cfg.AccessKeyID,
		secretKey:   cfg.SecretKey,
		maxAttempts: 3,
		retryDelay:  cfg.RetryDelay,
		httpClient:  cfg.HTTPClient,
	}
	if cfg.MaxRetries > 0 {
		u.maxAttempts = uint(cfg.MaxRetries)
	}
	if u.retryDelay <= 0 {
		u.retryDelay = 500 * time.Millisecond
	}
	if u.httpClient == nil {
		u.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return u
}

// Upload implements Uploader.
func (u *HTTPUploader) Upload(ctx context.Context, bucket, path string, data []byte) (string, error) {
	target := fmt.Sprintf("%s/%s/%s", u.endpoint, bucket, strings.TrimPrefix(path, "/"))

	err := retry.Do(
		func() error {
			return u.put(ctx, target, data)
		},
		retry.Context(ctx),
		retry.Attempts(u.maxAttempts),
		retry.Delay(u.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableUpload),
	)
	if err != nil {
		return "", err
	}
	return target, nil
}

func (u *HTTPUploader) put(ctx context.Context, target string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "image/png")
	req.ContentLength = int64(len(data))
	if u.accessKeyID != "" {
		req.SetBasicAuth(u.accessKeyID, u.secretKey)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UploadError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func isRetryableUpload(err error) bool {
	var upErr *UploadError
	if errors.As(err, &upErr) {
		return upErr.StatusCode >= 500 || upErr.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
