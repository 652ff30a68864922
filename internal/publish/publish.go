// Package publish runs a document through a conversion pass and saves the
// result as an article or page through the content API.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/tinynewsco/docpub/internal/content"
	"github.com/tinynewsco/docpub/internal/contentapi"
	"github.com/tinynewsco/docpub/internal/converter"
	"github.com/tinynewsco/docpub/internal/document"
	"github.com/tinynewsco/docpub/internal/metrics"
)

// Sentinel errors for the publish package.
var (
	ErrHeadlineRequired = errors.New("headline is required")
	ErrSlugTaken        = errors.New("slug already in use")
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MsgProcessingFailed is reported for any failure inside the conversion
// pass.
const MsgProcessingFailed = "content processing failed"

// Kind is what a document publishes as.
type Kind string

// Document kinds.
const (
	KindArticle Kind = "article"
	KindPage    Kind = "page"
)

// specialPages have their own routes instead of /static/{slug}.
var specialPages = map[string]bool{"about": true, "donate": true, "thank-you": true}

// Result is returned to the caller of a publish or preview.
type Result struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	URL        string `json:"url,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Slug       string `json:"slug,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// API is the subset of the content API the publisher uses.
// *contentapi.Client implements it.
type API interface {
	FindArticleBySlug(ctx context.Context, categoryID int, slug, documentID, locale string) ([]contentapi.Ref, error)
	FindPageBySlug(ctx context.Context, slug, documentID, locale string) ([]contentapi.Ref, error)
	UpsertArticle(ctx context.Context, in contentapi.ArticleInput) (*contentapi.Article, error)
	UpsertPage(ctx context.Context, in contentapi.PageInput) (*contentapi.Page, error)
	UpsertPublishedArticle(ctx context.Context, articleID, translationID int, locale string) error
	StoreArticleSlug(ctx context.Context, articleID int, slug, categorySlug string) error
	StorePageSlug(ctx context.Context, pageID int, slug string) error
	DeleteAuthorArticles(ctx context.Context, articleID int) error
	DeleteTagArticles(ctx context.Context, articleID int) error
	CreateAuthorArticle(ctx context.Context, authorID, articleID int) error
	CreateAuthorPage(ctx context.Context, authorID, pageID int) error
	CreateTag(ctx context.Context, articleID int, slug, title, locale string) error
	Rebuild(ctx context.Context) error
}

// PassRunner runs a conversion pass. *converter.Runner implements it.
type PassRunner interface {
	Run(ctx context.Context, doc *document.Document, namespace string) (*converter.PassResult, error)
}

// Config configures a Publisher.
type Config struct {
	// SiteURL is the public site root published URLs are built on.
	SiteURL string
	// PreviewURL is the site's preview endpoint; pages use PreviewURL+"-static".
	PreviewURL    string
	PreviewSecret string
	Recorder      *metrics.Recorder
	Logger        *slog.Logger
}

// Publisher publishes and previews documents.
type Publisher struct {
	api    API
	runner PassRunner
	cfg    Config
	logger *slog.Logger
}

// New creates a Publisher.
func New(api API, runner PassRunner, cfg Config) *Publisher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{api: api, runner: runner, cfg: cfg, logger: logger}
}

// Publish saves the document as published and triggers a site rebuild.
func (p *Publisher) Publish(ctx context.Context, doc *document.Document, form Form, kind Kind) (*Result, error) {
	return p.handle(ctx, doc, form, kind, true)
}

// Preview saves the document unpublished and returns a preview link.
func (p *Publisher) Preview(ctx context.Context, doc *document.Document, form Form, kind Kind) (*Result, error) {
	return p.handle(ctx, doc, form, kind, false)
}

// Normalize validates the form and fills in the slug. The slug is always
// passed through Slugify; an empty slug is derived from the headline.
func Normalize(form Form) (Form, error) {
	if strings.TrimSpace(form.Headline) == "" {
		return form, ErrHeadlineRequired
	}
	if strings.TrimSpace(form.Slug) == "" {
		form.Slug = content.Slugify(form.Headline)
	} else {
		form.Slug = content.Slugify(form.Slug)
	}
	return form, nil
}

func (p *Publisher) handle(ctx context.Context, doc *document.Document, form Form, kind Kind, published bool) (res *Result, err error) {
	action := "preview"
	if published {
		action = "publish"
	}
	defer func() {
		status := StatusSuccess
		if res != nil {
			status = res.Status
		}
		p.cfg.Recorder.RecordPublish(string(kind), status)
	}()

	if doc == nil {
		return &Result{Status: StatusError, Message: "no document"}, errors.New("nil document")
	}
	if kind == "" {
		kind = KindArticle
	}
	if kind != KindArticle && kind != KindPage {
		err := fmt.Errorf("unknown document kind %q", kind)
		return &Result{Status: StatusError, Message: err.Error()}, err
	}
	if form.DocumentID == "" {
		form.DocumentID = doc.DocumentID
	}

	form, err = Normalize(form)
	if err != nil {
		return &Result{Status: StatusError, Message: "Headline is required", DocumentID: form.DocumentID, Data: form}, err
	}

	logger := p.logger.With("action", action, "kind", kind, "slug", form.Slug, "document_id", form.DocumentID)

	pass, err := p.runner.Run(ctx, doc, form.Slug)
	if err != nil {
		logger.Error("conversion pass failed", "error", err)
		return &Result{Status: StatusError, Message: MsgProcessingFailed, DocumentID: form.DocumentID}, err
	}

	if kind == KindPage {
		res, err = p.page(ctx, logger, form, pass, published)
	} else {
		res, err = p.article(ctx, logger, form, pass, published)
	}
	if err != nil {
		return res, err
	}

	if published {
		if err := p.api.Rebuild(ctx); err != nil {
			logger.Warn("site rebuild failed", "error", err)
		}
	}
	logger.Info("document saved", "url", res.URL)
	return res, nil
}

func (p *Publisher) article(ctx context.Context, logger *slog.Logger, form Form, pass *converter.PassResult, published bool) (*Result, error) {
	fail := func(err error) (*Result, error) {
		logger.Error("article save failed", "error", err)
		return &Result{Status: StatusError, Message: err.Error(), DocumentID: form.DocumentID}, err
	}

	categoryID := int(form.CategoryID)
	existing, err := p.api.FindArticleBySlug(ctx, categoryID, form.Slug, form.DocumentID, form.Locale)
	if err != nil {
		return fail(err)
	}
	if len(existing) > 0 {
		return &Result{
			Status:     StatusError,
			Message:    "Article already exists in that category with the same slug, please pick a unique slug value.",
			DocumentID: form.DocumentID,
			Data:       existing,
		}, fmt.Errorf("%w: %s", ErrSlugTaken, form.Slug)
	}

	authors, err := form.authorIDs()
	if err != nil {
		return fail(err)
	}

	article, err := p.api.UpsertArticle(ctx, contentapi.ArticleInput{
		ID:               int(form.ArticleID),
		Slug:             form.Slug,
		DocumentID:       form.DocumentID,
		URL:              form.DocumentURL,
		CategoryID:       categoryID,
		LocaleCode:       form.Locale,
		Headline:         form.Headline,
		Published:        published,
		Content:          pass.Blocks,
		MainImage:        pass.MainImage,
		CustomByline:     form.CustomByline,
		CreatedByEmail:   form.CreatedByEmail,
		FirstPublishedAt: form.FirstPublishedAt,
		Sources:          articleSources(form.Sources),
		SEO:              seo(form),
	})
	if err != nil {
		return fail(err)
	}

	if err := p.api.DeleteAuthorArticles(ctx, article.ID); err != nil {
		return fail(err)
	}
	if err := p.api.DeleteTagArticles(ctx, article.ID); err != nil {
		return fail(err)
	}
	if err := p.api.StoreArticleSlug(ctx, article.ID, form.Slug, article.Category.Slug); err != nil {
		return fail(err)
	}
	if published {
		if err := p.api.UpsertPublishedArticle(ctx, article.ID, article.TranslationID(), form.Locale); err != nil {
			return fail(err)
		}
	}
	for _, tag := range form.Tags {
		if err := p.api.CreateTag(ctx, article.ID, content.Slugify(tag), tag, form.Locale); err != nil {
			return fail(err)
		}
	}
	for _, author := range authors {
		if err := p.api.CreateAuthorArticle(ctx, author, article.ID); err != nil {
			return fail(err)
		}
	}

	res := &Result{
		Status:     StatusSuccess,
		DocumentID: form.DocumentID,
		Slug:       form.Slug,
		Data:       map[string]any{"article": article, "pass_id": pass.PassID, "skipped_images": pass.Skipped},
	}
	if published {
		res.URL = p.ArticleURL(form.Locale, article.Category.Slug, form.Slug)
		res.Message = "Published the article."
	} else {
		res.URL = p.PreviewLink(KindArticle, form.Slug, form.Locale)
		res.Message = "Saved the article preview."
	}
	return res, nil
}

func (p *Publisher) page(ctx context.Context, logger *slog.Logger, form Form, pass *converter.PassResult, published bool) (*Result, error) {
	fail := func(err error) (*Result, error) {
		logger.Error("page save failed", "error", err)
		return &Result{Status: StatusError, Message: err.Error(), DocumentID: form.DocumentID}, err
	}

	existing, err := p.api.FindPageBySlug(ctx, form.Slug, form.DocumentID, form.Locale)
	if err != nil {
		return fail(err)
	}
	if len(existing) > 0 {
		return &Result{
			Status:     StatusError,
			Message:    "Page already exists with the same slug, please pick a unique slug value.",
			DocumentID: form.DocumentID,
			Data:       existing,
		}, fmt.Errorf("%w: %s", ErrSlugTaken, form.Slug)
	}

	authors, err := form.authorIDs()
	if err != nil {
		return fail(err)
	}

	page, err := p.api.UpsertPage(ctx, contentapi.PageInput{
		ID:             int(form.ArticleID),
		Slug:           form.Slug,
		DocumentID:     form.DocumentID,
		URL:            form.DocumentURL,
		LocaleCode:     form.Locale,
		Headline:       form.Headline,
		Published:      published,
		Content:        pass.Blocks,
		CreatedByEmail: form.CreatedByEmail,
		SEO:            seo(form),
	})
	if err != nil {
		return fail(err)
	}

	if err := p.api.StorePageSlug(ctx, page.ID, form.Slug); err != nil {
		return fail(err)
	}
	for _, author := range authors {
		if err := p.api.CreateAuthorPage(ctx, author, page.ID); err != nil {
			return fail(err)
		}
	}

	res := &Result{
		Status:     StatusSuccess,
		DocumentID: form.DocumentID,
		Slug:       form.Slug,
		Data:       map[string]any{"page": page, "pass_id": pass.PassID, "skipped_images": pass.Skipped},
	}
	if published {
		res.URL = p.PageURL(form.Locale, form.Slug)
		res.Message = "Published the page."
	} else {
		res.URL = p.PreviewLink(KindPage, form.Slug, form.Locale)
		res.Message = "Saved the page preview."
	}
	return res, nil
}

// ArticleURL is the public URL of a published article.
func (p *Publisher) ArticleURL(locale, categorySlug, slug string) string {
	return joinURL(p.cfg.SiteURL, locale, "articles", categorySlug, slug)
}

// PageURL is the public URL of a published page. about, donate and
// thank-you are served from the site root.
func (p *Publisher) PageURL(locale, slug string) string {
	if specialPages[slug] {
		return joinURL(p.cfg.SiteURL, locale, slug)
	}
	return joinURL(p.cfg.SiteURL, locale, "static", slug)
}

// PreviewLink is the preview URL for an unpublished document, or "" when
// no preview endpoint is configured.
func (p *Publisher) PreviewLink(kind Kind, slug, locale string) string {
	if p.cfg.PreviewURL == "" {
		return ""
	}
	base := p.cfg.PreviewURL
	if kind == KindPage {
		base += "-static"
	}
	q := url.Values{}
	q.Set("secret", p.cfg.PreviewSecret)
	q.Set("slug", slug)
	q.Set("locale", locale)
	return base + "?" + q.Encode()
}

func joinURL(base string, parts ...string) string {
	segments := []string{strings.TrimSuffix(base, "/")}
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, "/")
}

func seo(form Form) contentapi.SEO {
	return contentapi.SEO{
		SearchTitle:         form.SearchTitle,
		SearchDescription:   form.SearchDesc,
		TwitterTitle:        form.TwitterTitle,
		TwitterDescription:  form.TwitterDesc,
		FacebookTitle:       form.FacebookTitle,
		FacebookDescription: form.FacebookDesc,
	}
}

// articleSources converts the form's sources, in key order. Keys that are
// numeric update an existing source; anything else creates one.
func articleSources(sources map[string]SourceForm) []contentapi.ArticleSource {
	keys := make([]string, 0, len(sources))
	for k := range sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]contentapi.ArticleSource, 0, len(sources))
	for _, k := range keys {
		s := sources[k]
		data := contentapi.SourceData{
			Name:              s.Name,
			Affiliation:       s.Affiliation,
			Race:              s.Race,
			Ethnicity:         s.Ethnicity,
			Age:               s.Age,
			Gender:            s.Gender,
			Phone:             s.Phone,
			Email:             s.Email,
			Zip:               s.Zip,
			SexualOrientation: s.SexualOrientation,
			Role:              s.Role,
		}
		if id, err := strconv.Atoi(k); err == nil {
			data.ID = id
		}
		out = append(out, contentapi.NewArticleSource(data))
	}
	return out
}
