package endpoints

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tinynewsco/docpub/internal/api"
	"github.com/tinynewsco/docpub/internal/config"
	"github.com/tinynewsco/docpub/internal/svcctx"
)

const redacted = "<redacted>"

// SettingsResponse lists settings in key order.
type SettingsResponse struct {
	Settings []config.Entry `json:"settings"`
}

// SettingResponse holds one setting.
type SettingResponse struct {
	Entry *config.Entry `json:"entry,omitempty"`
}

// liveEntry fills def with the value from cfg, hiding set secrets.
func liveEntry(cfg *config.Config, def config.Entry) (config.Entry, error) {
	v, err := cfg.Lookup(def.Key)
	if err != nil {
		return config.Entry{}, err
	}
	def.Value = v
	if def.Secret && v != "" {
		def.Value = redacted
	}
	return def, nil
}

// ListSettingsEndpoint handles GET /api/settings.
type ListSettingsEndpoint struct{}

func (e *ListSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings", e.handler
}

func (e *ListSettingsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List settings
//	@Description	Current value of every setting, in key order. Secrets are redacted.
//	@Tags			settings
//	@Produce		json
//	@Param			prefix	query		string	false	"Only keys with this prefix, e.g. assets."
//	@Success		200		{object}	SettingsResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/settings [get]
func (e *ListSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cfg := svcctx.ConfigFrom(r.Context())
	if cfg == nil {
		writeError(w, http.StatusInternalServerError, "config not available")
		return
	}

	prefix := r.URL.Query().Get("prefix")
	resp := SettingsResponse{Settings: []config.Entry{}}
	for _, def := range config.DefaultEntries() {
		if !strings.HasPrefix(def.Key, prefix) {
			continue
		}
		entry, err := liveEntry(cfg, def)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Settings = append(resp.Settings, entry)
	}
	slices.SortFunc(resp.Settings, func(a, b config.Entry) int {
		return strings.Compare(a.Key, b.Key)
	})
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/settings"
			if prefix != "" {
				path += "?prefix=" + url.QueryEscape(prefix)
			}
			var resp SettingsResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp.Settings)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only keys with this prefix (e.g. 'assets.')")
	return cmd
}

// GetSettingEndpoint handles GET /api/settings/{key...}.
type GetSettingEndpoint struct{}

func (e *GetSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings/{key...}", e.handler
}

func (e *GetSettingEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a setting
//	@Description	Current value of one setting. Secrets are redacted.
//	@Tags			settings
//	@Produce		json
//	@Param			key	path		string	true	"Dotted setting key, e.g. assets.bucket"
//	@Success		200	{object}	SettingResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/settings/{key} [get]
func (e *GetSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(r.PathValue("key"))
	if err == nil {
		err = config.ValidateKey(key)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	def := config.GetDefault(key)
	if def == nil {
		writeError(w, http.StatusNotFound, "unknown setting "+key)
		return
	}
	cfg := svcctx.ConfigFrom(r.Context())
	if cfg == nil {
		writeError(w, http.StatusInternalServerError, "config not available")
		return
	}

	entry, err := liveEntry(cfg, *def)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SettingResponse{Entry: &entry})
}

func (e *GetSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp SettingResponse
			path := "/api/settings/" + url.PathEscape(args[0])
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp.Entry)
		},
	}
}
