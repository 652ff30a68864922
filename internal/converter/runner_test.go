package converter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tinynewsco/docpub/internal/content"
	"github.com/tinynewsco/docpub/internal/document"
	"github.com/tinynewsco/docpub/internal/images"
	"github.com/tinynewsco/docpub/internal/metrics"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return []byte(uri), nil
}

type countingUploader struct {
	mu      sync.Mutex
	uploads int
}

func (u *countingUploader) Upload(ctx context.Context, bucket, path string, data []byte) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads++
	return "https://" + bucket + ".example/" + path, nil
}

type failingResolver struct{ err error }

func (f failingResolver) ResolveAll(ctx context.Context, doc *document.Document, cache images.Cache, namespace string) (*images.Resolution, error) {
	cache["poisoned"] = "x"
	return nil, f.err
}

func newTestRunner(t *testing.T, uploader images.Uploader, store images.Store) *Runner {
	t.Helper()
	resolver, err := images.NewResolver(stubFetcher{}, uploader, images.Config{
		Organization: "Oaklyn Observer",
		Bucket:       "tnc-assets",
	})
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRunner(RunnerConfig{
		Resolver: resolver,
		Store:    store,
		Recorder: metrics.NewRecorder(metrics.New()),
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func sampleDocument() *document.Document {
	return imageDocument(
		para(10, "HEADING_1", text("Council votes "), text("on budget")),
		para(20, "NORMAL_TEXT", img("kix.1")),
		item(30, "kix.a", 0, text("first")),
		para(40, "NORMAL_TEXT", text("https://youtube.com/watch?v=1")),
	)
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()
	store := images.NewMemoryStore()
	uploader := &countingUploader{}
	r := newTestRunner(t, uploader, store)

	res, err := r.Run(ctx, sampleDocument(), "budget-vote")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.PassID == "" || res.Namespace != "budget-vote" {
		t.Errorf("unexpected pass metadata: %+v", res)
	}
	if len(res.Blocks) != 5 {
		t.Errorf("expected 5 blocks, got %d", len(res.Blocks))
	}
	if res.MainImage == nil || res.MainImage.Type != content.TypeMainImage {
		t.Fatalf("main image missing: %+v", res.MainImage)
	}
	if res.Uploaded != 1 || uploader.uploads != 1 {
		t.Errorf("expected one upload, got %d (%d)", res.Uploaded, uploader.uploads)
	}

	cache, err := store.Load(ctx, "budget-vote")
	if err != nil {
		t.Fatal(err)
	}
	want := "http://assets.tinynewsco.org/oaklyn-observer/budget-vote/imagekix.1.png"
	if cache["kix.1"] != want {
		t.Errorf("persisted cache = %v", cache)
	}
	child := res.MainImage.Children[0].(*content.ImageChild)
	if child.ImageURL != want {
		t.Errorf("main image url = %q", child.ImageURL)
	}

	t.Run("second pass reuses the cache", func(t *testing.T) {
		res, err := r.Run(ctx, sampleDocument(), "budget-vote")
		if err != nil {
			t.Fatal(err)
		}
		if res.Reused != 1 || res.Uploaded != 0 || uploader.uploads != 1 {
			t.Errorf("expected a cache hit, got uploaded=%d reused=%d", res.Uploaded, res.Reused)
		}
	})

	t.Run("new namespace uploads again", func(t *testing.T) {
		if _, err := r.Run(ctx, sampleDocument(), "budget-vote-final"); err != nil {
			t.Fatal(err)
		}
		if uploader.uploads != 2 {
			t.Errorf("expected a re-upload for the new slug, got %d uploads", uploader.uploads)
		}
	})
}

func TestRunner_FailureDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	store := images.NewMemoryStore()
	if err := store.Save(ctx, "ns", images.Cache{"kix.9": "kept"}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("upload failed")
	r, err := NewRunner(RunnerConfig{Resolver: failingResolver{err: boom}, Store: store})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Run(ctx, sampleDocument(), "ns"); !errors.Is(err, boom) {
		t.Fatalf("expected resolver error, got %v", err)
	}
	cache, _ := store.Load(ctx, "ns")
	if len(cache) != 1 || cache["kix.9"] != "kept" {
		t.Errorf("cache was modified by a failed pass: %v", cache)
	}
}

func TestRunner_EmptyBulletItem(t *testing.T) {
	r := newTestRunner(t, &countingUploader{}, images.NewMemoryStore())
	doc := &document.Document{Body: []document.Node{
		para(10, "NORMAL_TEXT", text("Intro\n")),
		item(20, "kix.a", 0, text("\n")),
	}}

	res, err := r.Run(context.Background(), doc, "empty-bullet")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Blocks) != 2 || len(res.Blocks[1].Items) != 1 {
		t.Fatalf("blocks = %+v", res.Blocks)
	}
}

func TestRunner_CountMismatchDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	store := images.NewMemoryStore()
	if err := store.Save(ctx, "budget-vote", images.Cache{"kix.9": "kept"}); err != nil {
		t.Fatal(err)
	}
	uploader := &countingUploader{}
	r := newTestRunner(t, uploader, store)
	r.opts.beforeNode = func(n document.Node) {
		if n.EndIndex == 30 {
			panic("bad node")
		}
	}

	if _, err := r.Run(ctx, sampleDocument(), "budget-vote"); !errors.Is(err, ErrCountMismatch) {
		t.Fatalf("expected ErrCountMismatch, got %v", err)
	}
	if uploader.uploads != 1 {
		t.Errorf("expected the image to upload before conversion, got %d uploads", uploader.uploads)
	}
	cache, err := store.Load(ctx, "budget-vote")
	if err != nil {
		t.Fatal(err)
	}
	if len(cache) != 1 || cache["kix.9"] != "kept" {
		t.Errorf("cache was modified by a failed pass: %v", cache)
	}
}

func TestRunner_InvalidInput(t *testing.T) {
	r := newTestRunner(t, &countingUploader{}, images.NewMemoryStore())

	if _, err := r.Run(context.Background(), sampleDocument(), ""); !errors.Is(err, images.ErrInvalidNamespace) {
		t.Errorf("expected ErrInvalidNamespace, got %v", err)
	}
	if _, err := r.Run(context.Background(), nil, "ns"); err == nil {
		t.Error("expected error for nil document")
	}
}

func TestNewRunner_RequiresCollaborators(t *testing.T) {
	if _, err := NewRunner(RunnerConfig{Store: images.NewMemoryStore()}); err == nil {
		t.Error("expected error without resolver")
	}
	if _, err := NewRunner(RunnerConfig{Resolver: failingResolver{}}); err == nil {
		t.Error("expected error without store")
	}
}

func TestRunner_ConcurrentPassesSameNamespace(t *testing.T) {
	ctx := context.Background()
	uploader := &countingUploader{}
	r := newTestRunner(t, uploader, images.NewMemoryStore())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Run(ctx, sampleDocument(), "budget-vote"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Run() error = %v", err)
	}
	if uploader.uploads != 1 {
		t.Errorf("serialised passes should upload once, got %d", uploader.uploads)
	}
}
