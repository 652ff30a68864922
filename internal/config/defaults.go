package config

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"
)

var (
	// ErrNoDefault is returned when no default value exists for a config key.
	ErrNoDefault = errors.New("no default exists")

	// ErrInvalidKey is returned when a config key contains invalid characters.
	ErrInvalidKey = errors.New("invalid config key")

	// ErrMissingSetting is returned when a required setting is empty.
	ErrMissingSetting = errors.New("missing required setting")
)

// Entry describes a single configuration setting. Secret values are never
// shown by the settings endpoints.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
	Secret      bool   `json:"secret,omitempty" yaml:"secret,omitempty"`
}

// DefaultEntries returns every known setting with its default value.
// These are registered as viper defaults so each one can also be set
// through a DOCPUB_ environment variable.
func DefaultEntries() []Entry {
	return []Entry{
		{
			Key:         "organization_name",
			Value:       "",
			Description: "Organization name; slugified into the image upload path",
			Required:    true,
		},

		// Content API
		{
			Key:         "content_api.url",
			Value:       "",
			Description: "GraphQL endpoint of the content API",
			Required:    true,
		},
		{
			Key:         "content_api.access_token",
			Value:       "${DOCPUB_CONTENT_API_TOKEN}",
			Description: "Organization access token sent as TNC-Organization (uses environment variable)",
			Required:    true,
			Secret:      true,
		},
		{
			Key:         "content_api.timeout_seconds",
			Value:       30,
			Description: "HTTP timeout in seconds for content API requests",
		},

		// Assets
		{
			Key:         "assets.base_url",
			Value:       "http://assets.tinynewsco.org/",
			Description: "Public URL prefix for uploaded images",
			Required:    true,
		},
		{
			Key:         "assets.upload_url",
			Value:       "",
			Description: "Storage endpoint images are PUT to",
			Required:    true,
		},
		{
			Key:         "assets.bucket",
			Value:       "tnc-assets",
			Description: "Storage bucket for uploaded images",
			Required:    true,
		},
		{
			Key:         "assets.access_key_id",
			Value:       "${DOCPUB_ASSETS_ACCESS_KEY_ID}",
			Description: "Storage access key id (uses environment variable)",
			Secret:      true,
		},
		{
			Key:         "assets.secret_key",
			Value:       "${DOCPUB_ASSETS_SECRET_KEY}",
			Description: "Storage secret key (uses environment variable)",
			Secret:      true,
		},
		{
			Key:         "assets.max_retries",
			Value:       3,
			Description: "Maximum attempts for a failed image upload",
		},

		// Google
		{
			Key:         "google.oauth_token",
			Value:       "${DOCPUB_GOOGLE_OAUTH_TOKEN}",
			Description: "OAuth token for reading documents and image bytes (uses environment variable)",
			Secret:      true,
		},
		{
			Key:         "google.docs_api_url",
			Value:       "https://docs.googleapis.com",
			Description: "Base URL of the documents API",
		},

		// Publish
		{
			Key:         "publish.site_url",
			Value:       "",
			Description: "Public site root used to build published URLs",
			Required:    true,
		},
		{
			Key:         "publish.preview_url",
			Value:       "",
			Description: "Site preview endpoint; pages use the -static variant",
		},
		{
			Key:         "publish.preview_secret",
			Value:       "${DOCPUB_PREVIEW_SECRET}",
			Description: "Secret passed to the preview endpoint (uses environment variable)",
			Secret:      true,
		},
		{
			Key:         "publish.rebuild_webhook",
			Value:       "",
			Description: "Webhook POSTed after a publish to rebuild the site; empty disables",
		},

		// Server
		{
			Key:         "server.host",
			Value:       "127.0.0.1",
			Description: "Listen host for docpub serve",
		},
		{
			Key:         "server.port",
			Value:       "8080",
			Description: "Listen port for docpub serve",
		},
	}
}

// GetDefault returns the default entry for a config key, or nil.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ValidateKey checks if a config key contains only allowed characters:
// letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// Lookup returns the value of a setting by its dotted key.
func (c *Config) Lookup(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	v, ok := c.values()[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown key %q", ErrInvalidKey, key)
	}
	return v, nil
}

// Require reports the first of keys whose resolved value is empty.
func (c *Config) Require(keys ...string) error {
	values := c.Resolved().values()
	for _, key := range keys {
		v, ok := values[key]
		if !ok {
			return fmt.Errorf("%w: unknown key %q", ErrInvalidKey, key)
		}
		if v == "" {
			return fmt.Errorf("%w: %s", ErrMissingSetting, key)
		}
	}
	return nil
}

// Validate checks every required setting.
func (c *Config) Validate() error {
	var keys []string
	for _, e := range DefaultEntries() {
		if e.Required {
			keys = append(keys, e.Key)
		}
	}
	return c.Require(keys...)
}

func (c *Config) values() map[string]string {
	return map[string]string{
		"organization_name":           c.OrganizationName,
		"content_api.url":             c.ContentAPI.URL,
		"content_api.access_token":    c.ContentAPI.AccessToken,
		"content_api.timeout_seconds": strconv.Itoa(c.ContentAPI.TimeoutSeconds),
		"assets.base_url":             c.Assets.BaseURL,
		"assets.upload_url":           c.Assets.UploadURL,
		"assets.bucket":               c.Assets.Bucket,
		"assets.access_key_id":        c.Assets.AccessKeyID,
		"assets.secret_key":           c.Assets.SecretKey,
		"assets.max_retries":          strconv.Itoa(c.Assets.MaxRetries),
		"google.oauth_token":          c.Google.OAuthToken,
		"google.docs_api_url":         c.Google.DocsAPIURL,
		"publish.site_url":            c.Publish.SiteURL,
		"publish.preview_url":         c.Publish.PreviewURL,
		"publish.preview_secret":      c.Publish.PreviewSecret,
		"publish.rebuild_webhook":     c.Publish.RebuildWebhook,
		"server.host":                 c.Server.Host,
		"server.port":                 c.Server.Port,
	}
}
