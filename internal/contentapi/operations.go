package contentapi

import (
	"context"
	"fmt"

	"github.com/tinynewsco/docpub/internal/content"
)

const findArticleBySlugQuery = `query AddonFindArticleByCategorySlug($category_id: Int!, $slug: String!, $document_id: String!, $locale_code: String) {
  articles(where: {category_id: {_eq: $category_id}, slug: {_eq: $slug}, article_google_documents: {google_document: {document_id: {_neq: $document_id}, locale_code: {_eq: $locale_code}}}}) {
    id
    slug
    category_id
    created_at
  }
}`

const findPageBySlugQuery = `query AddonFindPageBySlug($slug: String!, $document_id: String!, $locale_code: String) {
  pages(where: {slug: {_eq: $slug}, page_google_documents: {google_document: {document_id: {_neq: $document_id}, locale_code: {_eq: $locale_code}}}}) {
    id
    slug
    created_at
  }
}`

const articleFields = `returning {
      id
      slug
      category {
        slug
      }
      article_translations(where: {locale_code: {_eq: $locale_code}}, order_by: {id: desc}, limit: 1) {
        id
        headline
        locale_code
        published
      }
    }`

const upsertArticleNoIDMutation = `mutation AddonInsertArticleGoogleDocNoID($locale_code: String!, $created_by_email: String, $headline: String!, $published: Boolean, $category_id: Int!, $slug: String!, $document_id: String, $url: String, $custom_byline: String, $content: jsonb, $facebook_description: String, $facebook_title: String, $search_description: String, $search_title: String, $twitter_description: String, $twitter_title: String, $main_image: jsonb, $first_published_at: timestamptz, $article_sources: [article_source_insert_input!]!) {
  insert_articles(objects: {article_translations: {data: {created_by_email: $created_by_email, headline: $headline, locale_code: $locale_code, published: $published, content: $content, custom_byline: $custom_byline, facebook_description: $facebook_description, facebook_title: $facebook_title, search_description: $search_description, search_title: $search_title, twitter_description: $twitter_description, twitter_title: $twitter_title, main_image: $main_image, first_published_at: $first_published_at}}, category_id: $category_id, slug: $slug, article_sources: {data: $article_sources, on_conflict: {constraint: article_source_article_id_source_id_key, update_columns: article_id}}, article_google_documents: {data: {google_document: {data: {document_id: $document_id, locale_code: $locale_code, url: $url}, on_conflict: {constraint: google_documents_organization_id_document_id_key, update_columns: locale_code}}}, on_conflict: {constraint: article_google_documents_article_id_google_document_id_key, update_columns: google_document_id}}}, on_conflict: {constraint: articles_slug_category_id_organization_id_key, update_columns: [slug, category_id, updated_at]}) {
    ` + articleFields + `
  }
}`

const upsertArticleWithIDMutation = `mutation AddonInsertArticleGoogleDocWithID($id: Int!, $locale_code: String!, $headline: String!, $created_by_email: String, $published: Boolean, $category_id: Int!, $slug: String!, $document_id: String, $url: String, $custom_byline: String, $content: jsonb, $facebook_description: String, $facebook_title: String, $search_description: String, $search_title: String, $twitter_description: String, $twitter_title: String, $main_image: jsonb, $first_published_at: timestamptz, $article_sources: [article_source_insert_input!]!) {
  insert_articles(objects: {id: $id, article_translations: {data: {created_by_email: $created_by_email, headline: $headline, locale_code: $locale_code, published: $published, content: $content, custom_byline: $custom_byline, facebook_description: $facebook_description, facebook_title: $facebook_title, search_description: $search_description, search_title: $search_title, twitter_description: $twitter_description, twitter_title: $twitter_title, main_image: $main_image, first_published_at: $first_published_at}}, category_id: $category_id, slug: $slug, article_sources: {data: $article_sources, on_conflict: {constraint: article_source_article_id_source_id_key, update_columns: article_id}}, article_google_documents: {data: {google_document: {data: {document_id: $document_id, locale_code: $locale_code, url: $url}, on_conflict: {constraint: google_documents_organization_id_document_id_key, update_columns: locale_code}}}, on_conflict: {constraint: article_google_documents_article_id_google_document_id_key, update_columns: google_document_id}}}, on_conflict: {constraint: articles_pkey, update_columns: [slug, category_id, updated_at]}) {
    ` + articleFields + `
  }
}`

const pageFields = `returning {
      id
      slug
      page_translations(where: {locale_code: {_eq: $locale_code}}, order_by: {id: desc}, limit: 1) {
        id
        headline
        locale_code
        published
      }
    }`

const upsertPageNoIDMutation = `mutation AddonInsertPageGoogleDocNoID($slug: String!, $locale_code: String!, $created_by_email: String, $document_id: String, $url: String, $facebook_title: String, $facebook_description: String, $search_title: String, $search_description: String, $headline: String, $twitter_title: String, $twitter_description: String, $content: jsonb, $published: Boolean) {
  insert_pages(objects: {page_google_documents: {data: {google_document: {data: {document_id: $document_id, locale_code: $locale_code, url: $url}, on_conflict: {constraint: google_documents_organization_id_document_id_key, update_columns: [document_id]}}}, on_conflict: {constraint: page_google_documents_page_id_google_document_id_key, update_columns: [google_document_id]}}, slug: $slug, page_translations: {data: {created_by_email: $created_by_email, published: $published, search_description: $search_description, search_title: $search_title, twitter_description: $twitter_description, twitter_title: $twitter_title, locale_code: $locale_code, headline: $headline, facebook_title: $facebook_title, facebook_description: $facebook_description, content: $content}}}, on_conflict: {constraint: pages_slug_organization_id_key, update_columns: [slug, updated_at]}) {
    ` + pageFields + `
  }
}`

const upsertPageWithIDMutation = `mutation AddonInsertPageGoogleDocWithID($id: Int!, $slug: String!, $locale_code: String!, $created_by_email: String, $document_id: String, $url: String, $facebook_title: String, $facebook_description: String, $search_title: String, $search_description: String, $headline: String, $twitter_title: String, $twitter_description: String, $content: jsonb, $published: Boolean) {
  insert_pages(objects: {id: $id, page_google_documents: {data: {google_document: {data: {document_id: $document_id, locale_code: $locale_code, url: $url}, on_conflict: {constraint: google_documents_organization_id_document_id_key, update_columns: [document_id]}}}, on_conflict: {constraint: page_google_documents_page_id_google_document_id_key, update_columns: [google_document_id]}}, slug: $slug, page_translations: {data: {created_by_email: $created_by_email, published: $published, search_description: $search_description, search_title: $search_title, twitter_description: $twitter_description, twitter_title: $twitter_title, locale_code: $locale_code, headline: $headline, facebook_title: $facebook_title, facebook_description: $facebook_description, content: $content}}}, on_conflict: {constraint: pages_pkey, update_columns: [slug, updated_at]}) {
    ` + pageFields + `
  }
}`

const upsertPublishedArticleMutation = `mutation AddonUpsertPublishedArticleTranslation($article_id: Int, $article_translation_id: Int, $locale_code: String) {
  insert_published_article_translations(objects: {article_id: $article_id, article_translation_id: $article_translation_id, locale_code: $locale_code}, on_conflict: {constraint: published_article_translations_article_id_locale_code_key, update_columns: article_translation_id}) {
    affected_rows
  }
}`

const storeArticleSlugMutation = `mutation AddonInsertArticleSlugVersion($article_id: Int!, $slug: String!, $category_slug: String!) {
  insert_article_slug_versions(on_conflict: {constraint: slug_versions_pkey, update_columns: article_id}, objects: {article_id: $article_id, slug: $slug, category_slug: $category_slug}) {
    affected_rows
  }
}`

const storePageSlugMutation = `mutation AddonInsertPageSlugVersion($slug: String!, $page_id: Int!) {
  insert_page_slug_versions(objects: {page_id: $page_id, slug: $slug}, on_conflict: {constraint: page_slug_versions_pkey, update_columns: page_id}) {
    affected_rows
  }
}`

const deleteAuthorArticlesMutation = `mutation AddonDeleteAuthorArticles($article_id: Int) {
  delete_author_articles(where: {article_id: {_eq: $article_id}}) {
    affected_rows
  }
}`

const deleteTagArticlesMutation = `mutation AddonDeleteTagArticles($article_id: Int) {
  delete_tag_articles(where: {article_id: {_eq: $article_id}}) {
    affected_rows
  }
}`

const createAuthorArticleMutation = `mutation AddonInsertAuthorArticle($article_id: Int!, $author_id: Int!) {
  insert_author_articles(objects: {article_id: $article_id, author_id: $author_id}, on_conflict: {constraint: author_articles_article_id_author_id_key, update_columns: article_id}) {
    affected_rows
  }
}`

const createAuthorPageMutation = `mutation AddonInsertAuthorPage($page_id: Int!, $author_id: Int!) {
  insert_author_pages(objects: {page_id: $page_id, author_id: $author_id}, on_conflict: {constraint: author_pages_page_id_author_id_key, update_columns: page_id}) {
    affected_rows
  }
}`

const createTagMutation = `mutation AddonInsertTag($slug: String, $locale_code: String, $title: String, $article_id: Int!) {
  insert_tag_articles(objects: {article_id: $article_id, tag: {data: {slug: $slug, tag_translations: {data: {locale_code: $locale_code, title: $title}, on_conflict: {constraint: tag_translations_tag_id_locale_code_key, update_columns: locale_code}}, published: true}, on_conflict: {constraint: tags_organization_id_slug_key, update_columns: organization_id}}}, on_conflict: {constraint: tag_articles_article_id_tag_id_key, update_columns: article_id}) {
    affected_rows
  }
}`

const organizationLocalesQuery = `query AddonGetOrganizationLocales {
  organization_locales {
    locale {
      code
      name
    }
  }
}`

// Ref identifies an existing article or page.
type Ref struct {
	ID         int    `json:"id"`
	Slug       string `json:"slug"`
	CategoryID int    `json:"category_id,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// FindArticleBySlug returns articles in the category with the slug that
// belong to a different document.
func (c *Client) FindArticleBySlug(ctx context.Context, categoryID int, slug, documentID, locale string) ([]Ref, error) {
	var data struct {
		Articles []Ref `json:"articles"`
	}
	err := c.Do(ctx, "AddonFindArticleByCategorySlug", findArticleBySlugQuery, map[string]any{
		"category_id": categoryID,
		"slug":        slug,
		"document_id": documentID,
		"locale_code": locale,
	}, &data)
	return data.Articles, err
}

// FindPageBySlug returns pages with the slug that belong to a different
// document.
func (c *Client) FindPageBySlug(ctx context.Context, slug, documentID, locale string) ([]Ref, error) {
	var data struct {
		Pages []Ref `json:"pages"`
	}
	err := c.Do(ctx, "AddonFindPageBySlug", findPageBySlugQuery, map[string]any{
		"slug":        slug,
		"document_id": documentID,
		"locale_code": locale,
	}, &data)
	return data.Pages, err
}

// SEO holds the search and social metadata shared by articles and pages.
type SEO struct {
	SearchTitle         string `json:"search_title,omitempty"`
	SearchDescription   string `json:"search_description,omitempty"`
	TwitterTitle        string `json:"twitter_title,omitempty"`
	TwitterDescription  string `json:"twitter_description,omitempty"`
	FacebookTitle       string `json:"facebook_title,omitempty"`
	FacebookDescription string `json:"facebook_description,omitempty"`
}

// ArticleSource is one source record attached to an article.
type ArticleSource struct {
	Source SourceUpsert `json:"source"`
}

// SourceUpsert inserts or updates a source by primary key.
type SourceUpsert struct {
	Data       SourceData     `json:"data"`
	OnConflict map[string]any `json:"on_conflict"`
}

// SourceData describes a person quoted in an article.
type SourceData struct {
	ID                int    `json:"id,omitempty"`
	Name              string `json:"name"`
	Affiliation       string `json:"affiliation,omitempty"`
	Race              string `json:"race,omitempty"`
	Ethnicity         string `json:"ethnicity,omitempty"`
	Age               string `json:"age,omitempty"`
	Gender            string `json:"gender,omitempty"`
	Phone             string `json:"phone,omitempty"`
	Email             string `json:"email,omitempty"`
	Zip               string `json:"zip,omitempty"`
	SexualOrientation string `json:"sexual_orientation,omitempty"`
	Role              string `json:"role,omitempty"`
}

// NewArticleSource wraps source data with the upsert conflict rule.
func NewArticleSource(d SourceData) ArticleSource {
	return ArticleSource{Source: SourceUpsert{
		Data: d,
		OnConflict: map[string]any{
			"constraint": "sources_pkey",
			"update_columns": []string{
				"name", "affiliation", "age", "phone", "zip", "race",
				"gender", "sexual_orientation", "ethnicity", "role", "email",
			},
		},
	}}
}

// ArticleInput is the variable set of the article upsert mutations.
type ArticleInput struct {
	ID               int                   `json:"id,omitempty"`
	Slug             string                `json:"slug"`
	DocumentID       string                `json:"document_id"`
	URL              string                `json:"url,omitempty"`
	CategoryID       int                   `json:"category_id"`
	LocaleCode       string                `json:"locale_code"`
	Headline         string                `json:"headline"`
	Published        bool                  `json:"published"`
	Content          []content.OutputBlock `json:"content"`
	MainImage        *content.OutputBlock  `json:"main_image"`
	CustomByline     string                `json:"custom_byline,omitempty"`
	CreatedByEmail   string                `json:"created_by_email,omitempty"`
	FirstPublishedAt string                `json:"first_published_at,omitempty"`
	Sources          []ArticleSource       `json:"article_sources"`
	SEO
}

// Translation is the translation row created by an upsert.
type Translation struct {
	ID         int    `json:"id"`
	Headline   string `json:"headline"`
	LocaleCode string `json:"locale_code"`
	Published  bool   `json:"published"`
}

// Article is the article row returned by UpsertArticle.
type Article struct {
	ID       int    `json:"id"`
	Slug     string `json:"slug"`
	Category struct {
		Slug string `json:"slug"`
	} `json:"category"`
	Translations []Translation `json:"article_translations"`
}

// TranslationID returns the ID of the newest translation, or 0.
func (a *Article) TranslationID() int {
	if len(a.Translations) == 0 {
		return 0
	}
	return a.Translations[0].ID
}

// UpsertArticle creates or updates an article and a new translation. A zero
// ID creates a new article.
func (c *Client) UpsertArticle(ctx context.Context, in ArticleInput) (*Article, error) {
	if in.Sources == nil {
		in.Sources = []ArticleSource{}
	}
	op, query := "AddonInsertArticleGoogleDocNoID", upsertArticleNoIDMutation
	if in.ID != 0 {
		op, query = "AddonInsertArticleGoogleDocWithID", upsertArticleWithIDMutation
	}

	var data struct {
		InsertArticles struct {
			Returning []Article `json:"returning"`
		} `json:"insert_articles"`
	}
	if err := c.Do(ctx, op, query, in, &data); err != nil {
		return nil, err
	}
	if len(data.InsertArticles.Returning) == 0 {
		return nil, fmt.Errorf("%s: no article returned", op)
	}
	return &data.InsertArticles.Returning[0], nil
}

// PageInput is the variable set of the page upsert mutations.
type PageInput struct {
	ID             int                   `json:"id,omitempty"`
	Slug           string                `json:"slug"`
	DocumentID     string                `json:"document_id"`
	URL            string                `json:"url,omitempty"`
	LocaleCode     string                `json:"locale_code"`
	Headline       string                `json:"headline"`
	Published      bool                  `json:"published"`
	Content        []content.OutputBlock `json:"content"`
	CreatedByEmail string                `json:"created_by_email,omitempty"`
	SEO
}

// Page is the page row returned by UpsertPage.
type Page struct {
	ID           int           `json:"id"`
	Slug         string        `json:"slug"`
	Translations []Translation `json:"page_translations"`
}

// UpsertPage creates or updates a page and a new translation.
func (c *Client) UpsertPage(ctx context.Context, in PageInput) (*Page, error) {
	op, query := "AddonInsertPageGoogleDocNoID", upsertPageNoIDMutation
	if in.ID != 0 {
		op, query = "AddonInsertPageGoogleDocWithID", upsertPageWithIDMutation
	}

	var data struct {
		InsertPages struct {
			Returning []Page `json:"returning"`
		} `json:"insert_pages"`
	}
	if err := c.Do(ctx, op, query, in, &data); err != nil {
		return nil, err
	}
	if len(data.InsertPages.Returning) == 0 {
		return nil, fmt.Errorf("%s: no page returned", op)
	}
	return &data.InsertPages.Returning[0], nil
}

// UpsertPublishedArticle points the article's published translation for
// the locale at translationID.
func (c *Client) UpsertPublishedArticle(ctx context.Context, articleID, translationID int, locale string) error {
	return c.Do(ctx, "AddonUpsertPublishedArticleTranslation", upsertPublishedArticleMutation, map[string]any{
		"article_id":             articleID,
		"article_translation_id": translationID,
		"locale_code":            locale,
	}, nil)
}

// StoreArticleSlug records slug as a version of the article's URL.
func (c *Client) StoreArticleSlug(ctx context.Context, articleID int, slug, categorySlug string) error {
	return c.Do(ctx, "AddonInsertArticleSlugVersion", storeArticleSlugMutation, map[string]any{
		"article_id":    articleID,
		"slug":          slug,
		"category_slug": categorySlug,
	}, nil)
}

// StorePageSlug records slug as a version of the page's URL.
func (c *Client) StorePageSlug(ctx context.Context, pageID int, slug string) error {
	return c.Do(ctx, "AddonInsertPageSlugVersion", storePageSlugMutation, map[string]any{
		"page_id": pageID,
		"slug":    slug,
	}, nil)
}

// DeleteAuthorArticles removes all author links of an article.
func (c *Client) DeleteAuthorArticles(ctx context.Context, articleID int) error {
	return c.Do(ctx, "AddonDeleteAuthorArticles", deleteAuthorArticlesMutation, map[string]any{"article_id": articleID}, nil)
}

// DeleteTagArticles removes all tag links of an article.
func (c *Client) DeleteTagArticles(ctx context.Context, articleID int) error {
	return c.Do(ctx, "AddonDeleteTagArticles", deleteTagArticlesMutation, map[string]any{"article_id": articleID}, nil)
}

// CreateAuthorArticle links an author to an article.
func (c *Client) CreateAuthorArticle(ctx context.Context, authorID, articleID int) error {
	return c.Do(ctx, "AddonInsertAuthorArticle", createAuthorArticleMutation, map[string]any{
		"article_id": articleID,
		"author_id":  authorID,
	}, nil)
}

// CreateAuthorPage links an author to a page.
func (c *Client) CreateAuthorPage(ctx context.Context, authorID, pageID int) error {
	return c.Do(ctx, "AddonInsertAuthorPage", createAuthorPageMutation, map[string]any{
		"page_id":   pageID,
		"author_id": authorID,
	}, nil)
}

// CreateTag creates the tag if needed and links it to the article.
func (c *Client) CreateTag(ctx context.Context, articleID int, slug, title, locale string) error {
	return c.Do(ctx, "AddonInsertTag", createTagMutation, map[string]any{
		"article_id":  articleID,
		"slug":        slug,
		"title":       title,
		"locale_code": locale,
	}, nil)
}

// Locale is a locale enabled for the organisation.
type Locale struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// OrganizationLocales lists the organisation's locales.
func (c *Client) OrganizationLocales(ctx context.Context) ([]Locale, error) {
	var data struct {
		OrganizationLocales []struct {
			Locale Locale `json:"locale"`
		} `json:"organization_locales"`
	}
	if err := c.Do(ctx, "AddonGetOrganizationLocales", organizationLocalesQuery, nil, &data); err != nil {
		return nil, err
	}
	locales := make([]Locale, 0, len(data.OrganizationLocales))
	for _, l := range data.OrganizationLocales {
		locales = append(locales, l.Locale)
	}
	return locales, nil
}
