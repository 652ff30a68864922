package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinynewsco/docpub/internal/api"
	"github.com/tinynewsco/docpub/internal/document"
	"github.com/tinynewsco/docpub/internal/publish"
	"github.com/tinynewsco/docpub/internal/svcctx"
)

// PublishRequest is the request body for publish and preview.
type PublishRequest struct {
	// Kind is "article" (default) or "page".
	Kind     string          `json:"kind,omitempty"`
	Document json.RawMessage `json:"document" swaggertype:"object"`
	Form     json.RawMessage `json:"form" swaggertype:"object"`
}

// PublishEndpoint handles POST /publish, or POST /preview when Preview is set.
type PublishEndpoint struct {
	Preview bool
}

func (e *PublishEndpoint) path() string {
	if e.Preview {
		return "/preview"
	}
	return "/publish"
}

func (e *PublishEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", e.path(), e.handler
}

func (e *PublishEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Publish or preview a document
//	@Description	Convert a document and save it as an article or page. /preview saves it unpublished.
//	@Tags			publish
//	@Accept			json
//	@Produce		json
//	@Param			request	body		PublishRequest	true	"Document, sidebar form and kind"
//	@Success		200		{object}	publish.Result
//	@Failure		400		{object}	ErrorResponse
//	@Failure		422		{object}	publish.Result
//	@Failure		503		{object}	ErrorResponse
//	@Router			/publish [post]
//	@Router			/preview [post]
func (e *PublishEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Document) == 0 {
		writeError(w, http.StatusBadRequest, "document is required")
		return
	}

	doc, err := document.Parse(req.Document)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var form publish.Form
	if len(req.Form) > 0 {
		if form, err = publish.ParseForm(req.Form); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	publisher := svcctx.PublisherFrom(r.Context())
	if publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "publisher not initialized")
		return
	}

	kind := publish.Kind(req.Kind)
	var res *publish.Result
	if e.Preview {
		res, err = publisher.Preview(r.Context(), doc, form, kind)
	} else {
		res, err = publisher.Publish(r.Context(), doc, form, kind)
	}
	if err != nil {
		if res == nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (e *PublishEndpoint) Command(getServerURL func() string) *cobra.Command {
	var docFile, formFile string
	var page bool

	use, short := "publish", "Publish a document through the server"
	if e.Preview {
		use, short = "preview", "Save an unpublished preview through the server"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if docFile == "" || formFile == "" {
				return fmt.Errorf("--doc and --form are required")
			}
			req, err := ReadPublishRequest(docFile, formFile, page)
			if err != nil {
				return err
			}

			client := api.NewClient(getServerURL())
			var resp publish.Result
			err = client.Post(cmd.Context(), e.path(), req, &resp)
			var statusErr *api.StatusError
			if err != nil && !errors.As(err, &statusErr) {
				return err
			}
			if outErr := api.Output(resp); outErr != nil {
				return outErr
			}
			if statusErr != nil {
				return errors.New(resp.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&docFile, "doc", "", "Document JSON file (required)")
	cmd.Flags().StringVar(&formFile, "form", "", "Sidebar form JSON file (required)")
	cmd.Flags().BoolVar(&page, "page", false, "Publish as a page instead of an article")
	return cmd
}

// ReadPublishRequest builds a request from a document file and a form file.
func ReadPublishRequest(docFile, formFile string, page bool) (PublishRequest, error) {
	doc, err := os.ReadFile(docFile)
	if err != nil {
		return PublishRequest{}, err
	}
	form, err := os.ReadFile(formFile)
	if err != nil {
		return PublishRequest{}, err
	}
	req := PublishRequest{Kind: string(publish.KindArticle), Document: doc, Form: form}
	if page {
		req.Kind = string(publish.KindPage)
	}
	return req, nil
}
