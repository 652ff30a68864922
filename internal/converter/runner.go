package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinynewsco/docpub/internal/content"
	"github.com/tinynewsco/docpub/internal/document"
	"github.com/tinynewsco/docpub/internal/images"
	"github.com/tinynewsco/docpub/internal/metrics"
)

// ImageResolver resolves every image of a document against a cache.
// *images.Resolver implements it.
type ImageResolver interface {
	ResolveAll(ctx context.Context, doc *document.Document, cache images.Cache, namespace string) (*images.Resolution, error)
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Resolver ImageResolver
	Store    images.Store
	Recorder *metrics.Recorder
	Logger   *slog.Logger
	Options  Options
}

// Runner executes full conversion passes: load the namespace's image cache,
// resolve images, convert, format and validate, then save the cache. Passes
// over the same namespace are serialised.
type Runner struct {
	resolver ImageResolver
	store    images.Store
	recorder *metrics.Recorder
	logger   *slog.Logger
	opts     Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("image resolver is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("image cache store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		resolver: cfg.Resolver,
		store:    cfg.Store,
		recorder: cfg.Recorder,
		logger:   logger,
		opts:     cfg.Options,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// PassResult is the outcome of a successful pass.
type PassResult struct {
	PassID    string                `json:"pass_id"`
	Namespace string                `json:"namespace"`
	Blocks    []content.OutputBlock `json:"blocks"`
	MainImage *content.OutputBlock  `json:"main_image,omitempty"`
	Uploaded  int                   `json:"uploaded"`
	Reused    int                   `json:"reused"`
	Skipped   []string              `json:"skipped,omitempty"`
	Duration  time.Duration         `json:"duration"`
}

func (r *Runner) lock(namespace string) func() {
	r.mu.Lock()
	l, ok := r.locks[namespace]
	if !ok {
		l = &sync.Mutex{}
		r.locks[namespace] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Run converts doc within namespace. On any error nothing is persisted.
func (r *Runner) Run(ctx context.Context, doc *document.Document, namespace string) (*PassResult, error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}
	if err := images.ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	unlock := r.lock(namespace)
	defer unlock()
	done := r.recorder.PassStarted()
	defer done()

	start := time.Now()
	passID := uuid.New().String()
	logger := r.logger.With("pass_id", passID, "namespace", namespace)
	logger.Info("conversion pass started", "document_id", doc.DocumentID, "nodes", len(doc.Body))

	outcome := metrics.PassOutcome{}
	defer func() {
		outcome.Duration = time.Since(start)
		r.recorder.RecordPass(outcome)
	}()

	stored, err := r.store.Load(ctx, namespace)
	if err != nil {
		logger.Error("failed to load image cache", "error", err)
		return nil, fmt.Errorf("failed to load image cache: %w", err)
	}
	cache := stored.Clone()

	resolution, err := r.resolver.ResolveAll(ctx, doc, cache, namespace)
	if err != nil {
		logger.Error("image resolution failed", "error", err)
		return nil, fmt.Errorf("failed to resolve images: %w", err)
	}
	outcome.Uploaded = resolution.Uploaded
	outcome.Reused = resolution.Reused
	outcome.Skipped = len(resolution.Skipped)

	converted, err := Convert(doc, resolution.URLs, r.opts)
	if err != nil {
		if converted != nil {
			logger.Error("count mismatch", "visited", converted.Visited, "expected", converted.Expected, "error", err)
		} else {
			logger.Error("conversion failed", "error", err)
		}
		return nil, err
	}

	blocks := content.Format(converted.Blocks)
	if err := content.ValidatePayload(blocks); err != nil {
		logger.Error("formatted blocks failed validation", "error", err)
		return nil, err
	}

	if err := r.store.Save(ctx, namespace, cache); err != nil {
		logger.Error("failed to save image cache", "error", err)
		return nil, fmt.Errorf("failed to save image cache: %w", err)
	}

	outcome.Success = true
	outcome.Blocks = len(blocks)
	result := &PassResult{
		PassID:    passID,
		Namespace: namespace,
		Blocks:    blocks,
		MainImage: content.MainImage(blocks),
		Uploaded:  resolution.Uploaded,
		Reused:    resolution.Reused,
		Skipped:   resolution.Skipped,
		Duration:  time.Since(start),
	}

	logger.Info("conversion pass finished",
		"nodes", converted.Visited,
		"blocks", len(blocks),
		"uploaded", resolution.Uploaded,
		"reused", resolution.Reused,
		"skipped", len(resolution.Skipped),
		"duration", result.Duration,
	)
	return result, nil
}
