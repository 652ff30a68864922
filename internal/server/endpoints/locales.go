package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tinynewsco/docpub/internal/api"
	"github.com/tinynewsco/docpub/internal/contentapi"
	"github.com/tinynewsco/docpub/internal/svcctx"
)

// LocalesResponse lists the locales a document can be published in.
type LocalesResponse struct {
	Locales []contentapi.Locale `json:"locales"`
}

// LocalesEndpoint handles GET /api/locales.
type LocalesEndpoint struct{}

func (e *LocalesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/locales", e.handler
}

func (e *LocalesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List locales
//	@Description	List the locales enabled for the organisation in the content API
//	@Tags			publish
//	@Produce		json
//	@Success		200	{object}	LocalesResponse
//	@Failure		502	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/locales [get]
func (e *LocalesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	client := svcctx.ContentAPIFrom(r.Context())
	if client == nil {
		writeError(w, http.StatusServiceUnavailable, "content API not initialized")
		return
	}

	locales, err := client.OrganizationLocales(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LocalesResponse{Locales: locales})
}

func (e *LocalesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "locales",
		Short: "List the organisation's locales",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LocalesResponse
			if err := client.Get(cmd.Context(), "/api/locales", &resp); err != nil {
				return err
			}
			return api.Output(resp.Locales)
		},
	}
}
