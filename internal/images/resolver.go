// Package images resolves inline document images to externally hosted URLs.
// Resolved URLs are cached per namespace so an image is uploaded once and
// reused by later passes over the same document.
package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tinynewsco/docpub/internal/content"
	"github.com/tinynewsco/docpub/internal/document"
)

// Sentinel errors for the images package.
var (
	// ErrFetchFailed is returned when the source bytes of an image cannot be
	// fetched. It only affects the image in question.
	ErrFetchFailed = errors.New("image fetch failed")

	// ErrNoMetadata is returned when an image run references an inline
	// object the document does not describe.
	ErrNoMetadata = errors.New("image metadata missing")
)

// DefaultAssetBaseURL is the canonical public host for uploaded images.
const DefaultAssetBaseURL = "http://assets.tinynewsco.org/"

// Cache maps image ID to a previously resolved URL within one namespace.
type Cache map[string]string

// Clone returns an independent copy of the cache.
func (c Cache) Clone() Cache {
	out := make(Cache, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Fetcher retrieves the raw bytes behind an image content URI.
type Fetcher interface {
	Fetch(ctx context.Context, contentURI string) ([]byte, error)
}

// Uploader stores bytes at a path inside a bucket and returns the storage URL.
type Uploader interface {
	Upload(ctx context.Context, bucket, path string, data []byte) (string, error)
}

// Config holds resolver settings.
type Config struct {
	// Organization is the organisation name; its slug prefixes every upload path.
	Organization string
	// AssetBaseURL is the public base URL images are served from.
	AssetBaseURL string
	// Bucket is the storage bucket uploads go to.
	Bucket string
	Logger *slog.Logger
}

// Resolver decides whether an image needs uploading and returns its URL.
type Resolver struct {
	fetcher  Fetcher
	uploader Uploader
	bucket   string
	orgSlug  string
	assetURL *url.URL
	logger   *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(fetcher Fetcher, uploader Uploader, cfg Config) (*Resolver, error) {
	base := cfg.AssetBaseURL
	if base == "" {
		base = DefaultAssetBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid asset base URL %q", cfg.AssetBaseURL)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Resolver{
		fetcher:  fetcher,
		uploader: uploader,
		bucket:   cfg.Bucket,
		orgSlug:  content.Slugify(cfg.Organization),
		assetURL: u,
		logger:   cfg.Logger,
	}, nil
}

// DestinationPath returns the storage path for an image in a namespace.
func (r *Resolver) DestinationPath(imageID, namespace string) string {
	return fmt.Sprintf("%s/%s/image%s.png", r.orgSlug, namespace, imageID)
}

// PublicURL returns the canonical public URL for a storage path.
func (r *Resolver) PublicURL(path string) string {
	return r.assetURL.String() + path
}

// Reusable reports whether a cached URL can be used for the namespace:
// it must be on the asset host and carry the namespace as a path segment.
func (r *Resolver) Reusable(cached, namespace string) bool {
	if cached == "" || namespace == "" {
		return false
	}
	u, err := url.Parse(cached)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Host, r.assetURL.Host) {
		return false
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == namespace {
			return true
		}
	}
	return false
}

// Resolve returns the URL for an image, uploading it when the cache has no
// usable entry. The resulting URL is always written back into cache.
func (r *Resolver) Resolve(ctx context.Context, imageID string, meta document.ImageMetadata, cache Cache, namespace string) (string, error) {
	u, _, err := r.resolve(ctx, imageID, meta, cache, namespace)
	return u, err
}

func (r *Resolver) resolve(ctx context.Context, imageID string, meta document.ImageMetadata, cache Cache, namespace string) (string, bool, error) {
	if cached, ok := cache[imageID]; ok && r.Reusable(cached, namespace) {
		cache[imageID] = cached
		return cached, false, nil
	}

	data, err := r.fetcher.Fetch(ctx, meta.ContentURI)
	if err != nil {
		return "", false, fmt.Errorf("image %s: %w", imageID, err)
	}

	path := r.DestinationPath(imageID, namespace)
	stored, err := r.uploader.Upload(ctx, r.bucket, path, data)
	if err != nil {
		return "", false, fmt.Errorf("failed to upload image %s: %w", imageID, err)
	}

	public := r.PublicURL(path)
	r.logger.Debug("uploaded image", "image_id", imageID, "namespace", namespace, "stored", stored, "url", public)
	cache[imageID] = public
	return public, true, nil
}

// Resolution is the outcome of resolving every image of a document.
type Resolution struct {
	// URLs maps image ID to its resolved URL.
	URLs map[string]string
	// Skipped lists image IDs that could not be resolved, in document order.
	Skipped  []string
	Uploaded int
	Reused   int
}

// ResolveAll resolves every image run of doc in document order. Images whose
// bytes cannot be fetched, or that have no metadata, are skipped; any other
// failure aborts resolution.
func (r *Resolver) ResolveAll(ctx context.Context, doc *document.Document, cache Cache, namespace string) (*Resolution, error) {
	res := &Resolution{URLs: make(map[string]string)}
	skipped := make(map[string]bool)

	for _, id := range doc.ImageRuns() {
		if _, done := res.URLs[id]; done || skipped[id] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		meta, ok := doc.ImageMetadata(id)
		if !ok {
			r.logger.Warn("skipping image", "image_id", id, "error", ErrNoMetadata)
			skipped[id] = true
			res.Skipped = append(res.Skipped, id)
			continue
		}

		u, uploaded, err := r.resolve(ctx, id, meta, cache, namespace)
		if err != nil {
			if errors.Is(err, ErrFetchFailed) {
				r.logger.Warn("skipping image", "image_id", id, "error", err)
				skipped[id] = true
				res.Skipped = append(res.Skipped, id)
				continue
			}
			return nil, err
		}

		res.URLs[id] = u
		if uploaded {
			res.Uploaded++
		} else {
			res.Reused++
		}
	}
	return res, nil
}
