package config

// Config holds docpub configuration for one organization.
// Stored at: {home}/config.yaml
type Config struct {
	OrganizationName string           `mapstructure:"organization_name" yaml:"organization_name"`
	ContentAPI       ContentAPIConfig `mapstructure:"content_api" yaml:"content_api"`
	Assets           AssetsConfig     `mapstructure:"assets" yaml:"assets"`
	Google           GoogleConfig     `mapstructure:"google" yaml:"google"`
	Publish          PublishConfig    `mapstructure:"publish" yaml:"publish"`
	Server           ServerConfig     `mapstructure:"server" yaml:"server"`
}

// ContentAPIConfig configures the GraphQL content API.
type ContentAPIConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	AccessToken    string `mapstructure:"access_token" yaml:"access_token"` // supports ${ENV_VAR} syntax
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// AssetsConfig configures image hosting.
type AssetsConfig struct {
	// BaseURL is the public URL prefix uploaded images are served from.
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	UploadURL   string `mapstructure:"upload_url" yaml:"upload_url"`
	Bucket      string `mapstructure:"bucket" yaml:"bucket"`
	AccessKeyID string `mapstructure:"access_key_id" yaml:"access_key_id"` // supports ${ENV_VAR} syntax
	SecretKey   string `mapstructure:"secret_key" yaml:"secret_key"`       // supports ${ENV_VAR} syntax
	MaxRetries  int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// GoogleConfig configures access to the document host.
type GoogleConfig struct {
	OAuthToken string `mapstructure:"oauth_token" yaml:"oauth_token"` // supports ${ENV_VAR} syntax
	DocsAPIURL string `mapstructure:"docs_api_url" yaml:"docs_api_url"`
}

// PublishConfig configures published and preview URLs.
type PublishConfig struct {
	SiteURL        string `mapstructure:"site_url" yaml:"site_url"`
	PreviewURL     string `mapstructure:"preview_url" yaml:"preview_url"`
	PreviewSecret  string `mapstructure:"preview_secret" yaml:"preview_secret"` // supports ${ENV_VAR} syntax
	RebuildWebhook string `mapstructure:"rebuild_webhook" yaml:"rebuild_webhook"`
}

// ServerConfig configures `docpub serve`.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ContentAPI: ContentAPIConfig{
			AccessToken:    "${DOCPUB_CONTENT_API_TOKEN}",
			TimeoutSeconds: 30,
		},
		Assets: AssetsConfig{
			BaseURL:     "http://assets.tinynewsco.org/",
			Bucket:      "tnc-assets",
			AccessKeyID: "${DOCPUB_ASSETS_ACCESS_KEY_ID}",
			SecretKey:   "${DOCPUB_ASSETS_SECRET_KEY}",
			MaxRetries:  3,
		},
		Google: GoogleConfig{
			OAuthToken: "${DOCPUB_GOOGLE_OAUTH_TOKEN}",
			DocsAPIURL: "https://docs.googleapis.com",
		},
		Publish: PublishConfig{
			PreviewSecret: "${DOCPUB_PREVIEW_SECRET}",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
		},
	}
}

// Resolved returns a copy with ${ENV_VAR} references in secrets expanded.
func (c *Config) Resolved() *Config {
	out := *c
	out.ContentAPI.AccessToken = ResolveEnvVars(c.ContentAPI.AccessToken)
	out.Assets.AccessKeyID = ResolveEnvVars(c.Assets.AccessKeyID)
	out.Assets.SecretKey = ResolveEnvVars(c.Assets.SecretKey)
	out.Google.OAuthToken = ResolveEnvVars(c.Google.OAuthToken)
	out.Publish.PreviewSecret = ResolveEnvVars(c.Publish.PreviewSecret)
	return &out
}

// Addr is the server listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
