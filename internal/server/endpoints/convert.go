package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinynewsco/docpub/internal/api"
	"github.com/tinynewsco/docpub/internal/converter"
	"github.com/tinynewsco/docpub/internal/document"
	"github.com/tinynewsco/docpub/internal/images"
	"github.com/tinynewsco/docpub/internal/svcctx"
)

// ConvertRequest is the request body for a conversion pass.
type ConvertRequest struct {
	// Namespace keys the image cache, normally the document's slug.
	Namespace string `json:"namespace"`
	// Document is the documents API JSON of the source document.
	Document json.RawMessage `json:"document" swaggertype:"object"`
}

// ConvertEndpoint handles POST /convert.
type ConvertEndpoint struct{}

func (e *ConvertEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/convert", e.handler
}

func (e *ConvertEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Convert a document
//	@Description	Resolve images, convert and format a document into content blocks
//	@Tags			convert
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ConvertRequest	true	"Document and namespace"
//	@Success		200		{object}	converter.PassResult
//	@Failure		400		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/convert [post]
func (e *ConvertEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := images.ValidateNamespace(req.Namespace); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
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

	runner := svcctx.RunnerFrom(r.Context())
	if runner == nil {
		writeError(w, http.StatusServiceUnavailable, "pass runner not initialized")
		return
	}

	result, err := runner.Run(r.Context(), doc, req.Namespace)
	if err != nil {
		if errors.Is(err, converter.ErrCountMismatch) {
			writeError(w, http.StatusUnprocessableEntity, converter.ErrCountMismatch.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (e *ConvertEndpoint) Command(getServerURL func() string) *cobra.Command {
	var docFile, namespace string
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Run a conversion pass on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if docFile == "" || namespace == "" {
				return fmt.Errorf("--doc and --namespace are required")
			}
			raw, err := os.ReadFile(docFile)
			if err != nil {
				return err
			}

			client := api.NewClient(getServerURL())
			var resp converter.PassResult
			req := ConvertRequest{Namespace: namespace, Document: raw}
			if err := client.Post(cmd.Context(), "/convert", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&docFile, "doc", "", "Document JSON file (required)")
	cmd.Flags().StringVar(&namespace, "namespace", "", "Image cache namespace, usually the slug (required)")
	return cmd
}
