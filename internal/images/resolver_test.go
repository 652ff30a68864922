package images

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tinynewsco/docpub/internal/document"
)

type fakeFetcher struct {
	calls int
	fail  map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	f.calls++
	if err, ok := f.fail[uri]; ok {
		return nil, err
	}
	return []byte("png:" + uri), nil
}

type fakeUploader struct {
	uploads []string
	err     error
}

func (u *fakeUploader) Upload(ctx context.Context, bucket, path string, data []byte) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.uploads = append(u.uploads, bucket+"/"+path)
	return "https://" + bucket + ".s3.amazonaws.com/" + path, nil
}

func newTestResolver(t *testing.T, f Fetcher, u Uploader) *Resolver {
	t.Helper()
	r, err := NewResolver(f, u, Config{
		Organization: "Oaklyn Observer",
		Bucket:       "tnc-assets",
	})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r
}

var testMeta = document.ImageMetadata{ContentURI: "https://lh3.example/img1", Width: 400, Height: 300, Title: "chart"}

func TestResolver_Paths(t *testing.T) {
	r := newTestResolver(t, &fakeFetcher{}, &fakeUploader{})

	if got := r.DestinationPath("kix.abc", "budget-vote"); got != "oaklyn-observer/budget-vote/imagekix.abc.png" {
		t.Errorf("DestinationPath() = %q", got)
	}
	if got := r.PublicURL("a/b.png"); got != "http://assets.tinynewsco.org/a/b.png" {
		t.Errorf("PublicURL() = %q", got)
	}
}

func TestResolver_Reusable(t *testing.T) {
	r := newTestResolver(t, &fakeFetcher{}, &fakeUploader{})

	tests := []struct {
		name   string
		cached string
		want   bool
	}{
		{"canonical url in namespace", "http://assets.tinynewsco.org/oaklyn-observer/budget-vote/image1.png", true},
		{"other namespace", "http://assets.tinynewsco.org/oaklyn-observer/old-slug/image1.png", false},
		{"namespace only as substring", "http://assets.tinynewsco.org/oaklyn-observer/budget-vote-2/image1.png", false},
		{"bucket domain", "https://tnc-assets.s3.amazonaws.com/oaklyn-observer/budget-vote/image1.png", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Reusable(tt.cached, "budget-vote"); got != tt.want {
				t.Errorf("Reusable(%q) = %v, want %v", tt.cached, got, tt.want)
			}
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("cache miss uploads once and records url", func(t *testing.T) {
		f, u := &fakeFetcher{}, &fakeUploader{}
		r := newTestResolver(t, f, u)
		cache := Cache{}

		got, err := r.Resolve(ctx, "kix.1", testMeta, cache, "budget-vote")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		want := "http://assets.tinynewsco.org/oaklyn-observer/budget-vote/imagekix.1.png"
		if got != want {
			t.Errorf("Resolve() = %q, want %q", got, want)
		}
		if len(u.uploads) != 1 || u.uploads[0] != "tnc-assets/oaklyn-observer/budget-vote/imagekix.1.png" {
			t.Errorf("unexpected uploads: %v", u.uploads)
		}
		if cache["kix.1"] != want {
			t.Errorf("cache not updated: %v", cache)
		}
	})

	t.Run("resolution is idempotent", func(t *testing.T) {
		f, u := &fakeFetcher{}, &fakeUploader{}
		r := newTestResolver(t, f, u)
		cache := Cache{}

		first, err := r.Resolve(ctx, "kix.1", testMeta, cache, "budget-vote")
		if err != nil {
			t.Fatal(err)
		}
		second, err := r.Resolve(ctx, "kix.1", testMeta, cache, "budget-vote")
		if err != nil {
			t.Fatal(err)
		}
		if first != second {
			t.Errorf("urls differ: %q vs %q", first, second)
		}
		if len(u.uploads) != 1 || f.calls != 1 {
			t.Errorf("expected one fetch and one upload, got %d fetches %d uploads", f.calls, len(u.uploads))
		}
	})

	t.Run("stale namespace re-uploads", func(t *testing.T) {
		f, u := &fakeFetcher{}, &fakeUploader{}
		r := newTestResolver(t, f, u)
		cache := Cache{"kix.1": "http://assets.tinynewsco.org/oaklyn-observer/old-slug/imagekix.1.png"}

		got, err := r.Resolve(ctx, "kix.1", testMeta, cache, "budget-vote")
		if err != nil {
			t.Fatal(err)
		}
		if len(u.uploads) != 1 {
			t.Errorf("expected re-upload, got %v", u.uploads)
		}
		if cache["kix.1"] != got {
			t.Errorf("cache should hold new url, got %q", cache["kix.1"])
		}
	})

	t.Run("fetch failure", func(t *testing.T) {
		f := &fakeFetcher{fail: map[string]error{testMeta.ContentURI: &FetchError{URI: testMeta.ContentURI, StatusCode: 404}}}
		u := &fakeUploader{}
		r := newTestResolver(t, f, u)
		cache := Cache{}

		_, err := r.Resolve(ctx, "kix.1", testMeta, cache, "budget-vote")
		if !errors.Is(err, ErrFetchFailed) {
			t.Errorf("expected ErrFetchFailed, got %v", err)
		}
		if len(u.uploads) != 0 || len(cache) != 0 {
			t.Error("failed fetch must not upload or touch the cache")
		}
	})
}

func imageDoc(ids ...string) *document.Document {
	doc := &document.Document{InlineObjects: map[string]document.ImageMetadata{}}
	for i, id := range ids {
		doc.Body = append(doc.Body, document.Node{
			EndIndex: (i + 1) * 10,
			Paragraph: &document.Paragraph{
				Elements: []document.Run{{InlineObjectID: id}},
			},
		})
		doc.InlineObjects[id] = document.ImageMetadata{ContentURI: "https://lh3.example/" + id}
	}
	return doc
}

func TestResolver_ResolveAll(t *testing.T) {
	ctx := context.Background()

	t.Run("skips fetch failures and missing metadata", func(t *testing.T) {
		doc := imageDoc("a", "b", "c", "a")
		delete(doc.InlineObjects, "c")
		f := &fakeFetcher{fail: map[string]error{"https://lh3.example/b": &FetchError{StatusCode: 500}}}
		u := &fakeUploader{}
		r := newTestResolver(t, f, u)
		cache := Cache{}

		res, err := r.ResolveAll(ctx, doc, cache, "ns")
		if err != nil {
			t.Fatalf("ResolveAll() error = %v", err)
		}
		if len(res.URLs) != 1 || res.URLs["a"] == "" {
			t.Errorf("unexpected urls: %v", res.URLs)
		}
		if fmt.Sprint(res.Skipped) != "[b c]" {
			t.Errorf("unexpected skipped: %v", res.Skipped)
		}
		if res.Uploaded != 1 || res.Reused != 0 {
			t.Errorf("unexpected counts: uploaded=%d reused=%d", res.Uploaded, res.Reused)
		}
		if len(u.uploads) != 1 {
			t.Errorf("repeated image must upload once, got %v", u.uploads)
		}
	})

	t.Run("counts cache hits", func(t *testing.T) {
		doc := imageDoc("a")
		u := &fakeUploader{}
		r := newTestResolver(t, &fakeFetcher{}, u)
		cache := Cache{"a": "http://assets.tinynewsco.org/oaklyn-observer/ns/imagea.png"}

		res, err := r.ResolveAll(ctx, doc, cache, "ns")
		if err != nil {
			t.Fatal(err)
		}
		if res.Reused != 1 || res.Uploaded != 0 || len(u.uploads) != 0 {
			t.Errorf("expected a cache hit, got %+v uploads=%v", res, u.uploads)
		}
	})

	t.Run("upload failure aborts", func(t *testing.T) {
		doc := imageDoc("a")
		r := newTestResolver(t, &fakeFetcher{}, &fakeUploader{err: errors.New("bucket gone")})

		if _, err := r.ResolveAll(ctx, doc, Cache{}, "ns"); err == nil {
			t.Error("expected upload failure to abort")
		}
	})

	t.Run("list images are not resolved", func(t *testing.T) {
		doc := imageDoc("a")
		doc.Body[0].Paragraph.Bullet = &document.Bullet{ListID: "l"}
		u := &fakeUploader{}
		r := newTestResolver(t, &fakeFetcher{}, u)

		res, err := r.ResolveAll(ctx, doc, Cache{}, "ns")
		if err != nil {
			t.Fatal(err)
		}
		if len(res.URLs) != 0 || len(u.uploads) != 0 {
			t.Errorf("expected no resolution, got %v", res.URLs)
		}
	})
}

func TestNewResolver_InvalidBaseURL(t *testing.T) {
	if _, err := NewResolver(&fakeFetcher{}, &fakeUploader{}, Config{AssetBaseURL: "not a url"}); err == nil {
		t.Error("expected error for base URL without host")
	}
}
