package main

import (
	"github.com/spf13/cobra"

	"github.com/tinynewsco/docpub/internal/api"
	"github.com/tinynewsco/docpub/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running docpub server via HTTP.

These commands require a running server (docpub serve).
Use --server to specify a custom server URL.

Examples:
  docpub api health                                   # Check server health
  docpub api convert --doc doc.json --namespace slug  # Run a pass remotely
  docpub api settings list --prefix assets.           # Show settings`,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Configuration settings commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	api.AddCommands(apiCmd, getServerURL,
		&endpoints.HealthEndpoint{},
		&endpoints.ReadyEndpoint{},
		&endpoints.MetricsEndpoint{},
		&endpoints.SwaggerEndpoint{},
		&endpoints.ConvertEndpoint{},
		&endpoints.PublishEndpoint{},
		&endpoints.PublishEndpoint{Preview: true},
		&endpoints.LocalesEndpoint{},
	)
	api.AddCommands(settingsCmd, getServerURL, endpoints.SettingsCommands()...)

	apiCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(apiCmd)
}
