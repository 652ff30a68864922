package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tinynewsco/docpub/internal/api"
	"github.com/tinynewsco/docpub/internal/config"
	"github.com/tinynewsco/docpub/internal/content"
	"github.com/tinynewsco/docpub/internal/document"
	"github.com/tinynewsco/docpub/internal/svcctx"
)

var (
	convertDoc       string
	convertDocID     string
	convertNamespace string
	convertOut       string
	convertValidate  bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Run a conversion pass locally",
	Long: `Run one conversion pass without a server.

The document is read from a Docs API JSON export (--doc) or fetched from
the Docs API by ID (--doc-id, using google.oauth_token). Images are uploaded
to the configured bucket and cached under the namespace in the home
directory, so later passes over the same namespace reuse them.

Examples:
  docpub convert --doc story.json --namespace council-votes
  docpub convert --doc-id 1AbC --namespace council-votes -o json --out pass.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if convertNamespace == "" {
			return errors.New("--namespace is required")
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}
		services, err := localServices(logger, "assets.upload_url", "assets.bucket")
		if err != nil {
			return err
		}

		doc, err := loadDocument(ctx, services.Config, convertDoc, convertDocID)
		if err != nil {
			return err
		}

		result, err := services.Runner.Run(ctx, doc, convertNamespace)
		if err != nil {
			return err
		}
		if convertValidate {
			if err := content.ValidatePayload(result.Blocks); err != nil {
				return err
			}
		}

		if convertOut != "" {
			return api.OutputToFile(result, convertOut)
		}
		return api.Output(result)
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertDoc, "doc", "", "Document JSON file")
	convertCmd.Flags().StringVar(&convertDocID, "doc-id", "", "Document ID to fetch from the Docs API")
	convertCmd.Flags().StringVar(&convertNamespace, "namespace", "", "Image cache namespace, usually the slug (required)")
	convertCmd.Flags().StringVar(&convertOut, "out", "", "Write the pass result to a file instead of stdout")
	convertCmd.Flags().BoolVar(&convertValidate, "validate", false, "Validate the blocks against the content schema")

	rootCmd.AddCommand(convertCmd)
}

// localServices wires services for commands that run without a server.
func localServices(logger *slog.Logger, required ...string) (*svcctx.Services, error) {
	h, mgr, err := loadEnv()
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}
	cfg := mgr.Get()
	if err := cfg.Require(append([]string{"organization_name"}, required...)...); err != nil {
		return nil, err
	}
	return svcctx.New(svcctx.Options{
		Config: cfg,
		Home:   h,
		Logger: logger,
	})
}

// loadDocument reads the document from a file or the Docs API.
func loadDocument(ctx context.Context, cfg *config.Config, file, documentID string) (*document.Document, error) {
	var src document.Source
	switch {
	case file != "" && documentID != "":
		return nil, errors.New("use either --doc or --doc-id, not both")
	case file != "":
		src = document.FileSource{Path: file}
	case documentID != "":
		resolved := cfg.Resolved()
		if resolved.Google.OAuthToken == "" {
			return nil, fmt.Errorf("%w: google.oauth_token", config.ErrMissingSetting)
		}
		src = document.NewHTTPSource(documentID, resolved.Google.OAuthToken,
			document.WithBaseURL(resolved.Google.DocsAPIURL))
	default:
		return nil, errors.New("--doc or --doc-id is required")
	}
	return src.Load(ctx)
}
