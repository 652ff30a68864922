// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinynewsco/docpub/internal/config"
	"github.com/tinynewsco/docpub/internal/contentapi"
	"github.com/tinynewsco/docpub/internal/converter"
	"github.com/tinynewsco/docpub/internal/home"
	"github.com/tinynewsco/docpub/internal/images"
	"github.com/tinynewsco/docpub/internal/metrics"
	"github.com/tinynewsco/docpub/internal/publish"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Config     *config.Config
	Logger     *slog.Logger
	Home       *home.Dir
	Metrics    *metrics.Metrics
	ContentAPI *contentapi.Client
	Runner     *converter.Runner
	Publisher  *publish.Publisher
}

// Options are the inputs New wires services from.
type Options struct {
	Config  *config.Config
	Home    *home.Dir
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Store overrides the on-disk image cache, mainly for tests.
	Store images.Store
	// Fetcher and Uploader override the HTTP image collaborators.
	Fetcher  images.Fetcher
	Uploader images.Uploader
}

// New builds the service graph from configuration. Secrets are resolved
// from the environment here.
func New(opts Options) (*Services, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := opts.Config.Resolved()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := metrics.NewRecorder(opts.Metrics)

	store := opts.Store
	if store == nil {
		if opts.Home == nil {
			return nil, errors.New("home directory is required for the image cache")
		}
		store = images.NewFileStore(opts.Home.ImageCachePath())
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = images.NewHTTPFetcher(cfg.Google.OAuthToken, nil)
	}
	uploader := opts.Uploader
	if uploader == nil {
		uploader = images.NewHTTPUploader(images.UploaderConfig{
			Endpoint:    cfg.Assets.UploadURL,
			AccessKeyID: cfg.Assets.AccessKeyID,
			SecretKey:   cfg.Assets.SecretKey,
			MaxRetries:  cfg.Assets.MaxRetries,
		})
	}

	resolver, err := images.NewResolver(fetcher, uploader, images.Config{
		Organization: cfg.OrganizationName,
		AssetBaseURL: cfg.Assets.BaseURL,
		Bucket:       cfg.Assets.Bucket,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create image resolver: %w", err)
	}

	runner, err := converter.NewRunner(converter.RunnerConfig{
		Resolver: resolver,
		Store:    store,
		Recorder: recorder,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pass runner: %w", err)
	}

	client := contentapi.NewClient(cfg.ContentAPI.URL, cfg.ContentAPI.AccessToken,
		contentapi.WithTimeout(time.Duration(cfg.ContentAPI.TimeoutSeconds)*time.Second),
		contentapi.WithRebuildWebhook(cfg.Publish.RebuildWebhook),
		contentapi.WithRecorder(recorder),
		contentapi.WithLogger(logger),
	)

	publisher := publish.New(client, runner, publish.Config{
		SiteURL:       cfg.Publish.SiteURL,
		PreviewURL:    cfg.Publish.PreviewURL,
		PreviewSecret: cfg.Publish.PreviewSecret,
		Recorder:      recorder,
		Logger:        logger,
	})

	return &Services{
		Config:     opts.Config,
		Logger:     logger,
		Home:       opts.Home,
		Metrics:    opts.Metrics,
		ContentAPI: client,
		Runner:     runner,
		Publisher:  publisher,
	}, nil
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// ConfigFrom extracts the configuration from context.
func ConfigFrom(ctx context.Context) *config.Config {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// MetricsFrom extracts the metrics registry from context.
func MetricsFrom(ctx context.Context) *metrics.Metrics {
	if s := ServicesFrom(ctx); s != nil {
		return s.Metrics
	}
	return nil
}

// ContentAPIFrom extracts the content API client from context.
func ContentAPIFrom(ctx context.Context) *contentapi.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.ContentAPI
	}
	return nil
}

// RunnerFrom extracts the pass runner from context.
func RunnerFrom(ctx context.Context) *converter.Runner {
	if s := ServicesFrom(ctx); s != nil {
		return s.Runner
	}
	return nil
}

// PublisherFrom extracts the publisher from context.
func PublisherFrom(ctx context.Context) *publish.Publisher {
	if s := ServicesFrom(ctx); s != nil {
		return s.Publisher
	}
	return nil
}
