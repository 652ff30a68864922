package endpoints

import (
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tinynewsco/docpub/internal/api"
)

// defaultSpecPath is where `go generate ./docs` writes the OpenAPI spec.
var defaultSpecPath = filepath.Join("docs", "swagger", "swagger.json")

// SpecCandidates lists where swagger.json is looked for: the explicit path
// if set, otherwise beside the executable and then the working directory.
func SpecCandidates(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	var out []string
	if exe, err := os.Executable(); err == nil {
		out = append(out, filepath.Join(filepath.Dir(exe), defaultSpecPath))
	}
	return append(out, defaultSpecPath)
}

// SwaggerEndpoint handles GET /swagger.json.
type SwaggerEndpoint struct {
	SpecPath string
}

func (e *SwaggerEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/swagger.json", e.handler
}

func (e *SwaggerEndpoint) RequiresInit() bool { return false }

func (e *SwaggerEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	for _, path := range SpecCandidates(e.SpecPath) {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write(data)
		return
	}
	writeError(w, http.StatusNotFound, "swagger.json not found; run go generate ./docs")
}

func (e *SwaggerEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outFile string
	var ui bool
	cmd := &cobra.Command{
		Use:   "swagger",
		Short: "Fetch the server's OpenAPI spec",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ui {
				cmd.Println(getServerURL() + "/swagger")
				return nil
			}
			var spec map[string]any
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/swagger.json", &spec); err != nil {
				return err
			}
			if outFile != "" {
				return api.OutputToFile(spec, outFile)
			}
			return api.Output(spec)
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "", "Write the spec to this file (.json or .yaml)")
	cmd.Flags().BoolVar(&ui, "ui", false, "Print the Swagger UI address instead")
	return cmd
}

var swaggerUI = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: {{.SpecURL}}, dom_id: '#swagger-ui', deepLinking: true});
  </script>
</body>
</html>
`))

// SwaggerUIEndpoint handles GET /swagger.
type SwaggerUIEndpoint struct{}

func (e *SwaggerUIEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/swagger", e.handler
}

func (e *SwaggerUIEndpoint) RequiresInit() bool { return false }

func (e *SwaggerUIEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	swaggerUI.Execute(w, struct{ Title, SpecURL string }{"docpub API", "/swagger.json"})
}

// Command is hidden; `docpub api swagger --ui` prints the same address.
func (e *SwaggerUIEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:    "swagger-ui",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(getServerURL() + "/swagger")
			return nil
		},
	}
}
