package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinynewsco/docpub/internal/api"
	"github.com/tinynewsco/docpub/internal/publish"
)

// newPublishCmd builds the local publish or preview command.
func newPublishCmd(preview bool) *cobra.Command {
	var docFile, docID, formFile string
	var page bool

	use, short := "publish", "Convert and publish a document locally"
	if preview {
		use, short = "preview", "Convert and save an unpublished preview locally"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

The sidebar form is a JSON object with the article-* fields (headline,
slug, locale, category, tags, authors, SEO fields and sources).

Examples:
  docpub ` + use + ` --doc story.json --form form.json
  docpub ` + use + ` --doc-id 1AbC --form form.json --page`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if formFile == "" {
				return errors.New("--form is required")
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			services, err := localServices(logger, "content_api.url", "content_api.access_token", "assets.upload_url", "publish.site_url")
			if err != nil {
				return err
			}

			doc, err := loadDocument(ctx, services.Config, docFile, docID)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(formFile)
			if err != nil {
				return err
			}
			form, err := publish.ParseForm(raw)
			if err != nil {
				return err
			}

			kind := publish.KindArticle
			if page {
				kind = publish.KindPage
			}

			var res *publish.Result
			if preview {
				res, err = services.Publisher.Preview(ctx, doc, form, kind)
			} else {
				res, err = services.Publisher.Publish(ctx, doc, form, kind)
			}
			if res != nil {
				if outErr := api.Output(res); outErr != nil {
					return outErr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&docFile, "doc", "", "Document JSON file")
	cmd.Flags().StringVar(&docID, "doc-id", "", "Document ID to fetch from the Docs API")
	cmd.Flags().StringVar(&formFile, "form", "", "Sidebar form JSON file (required)")
	cmd.Flags().BoolVar(&page, "page", false, "Publish as a page instead of an article")
	return cmd
}

func init() {
	rootCmd.AddCommand(newPublishCmd(false))
	rootCmd.AddCommand(newPublishCmd(true))
}
