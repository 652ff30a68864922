package endpoints

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSwaggerEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swagger.json")
	if err := os.WriteFile(path, []byte(`{"swagger": "2.0"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		specPath string
		want     int
	}{
		{"explicit path", path, http.StatusOK},
		{"missing file", filepath.Join(t.TempDir(), "nope.json"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, h := (&SwaggerEndpoint{SpecPath: tt.specPath}).Route()
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest("GET", "/swagger.json", nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if tt.want == http.StatusOK && rec.Body.String() != `{"swagger": "2.0"}` {
				t.Errorf("body = %s", rec.Body)
			}
		})
	}
}

func TestSpecCandidates(t *testing.T) {
	if got := SpecCandidates("/etc/spec.json"); len(got) != 1 || got[0] != "/etc/spec.json" {
		t.Errorf("explicit = %v", got)
	}
	got := SpecCandidates("")
	if last := got[len(got)-1]; last != filepath.Join("docs", "swagger", "swagger.json") {
		t.Errorf("last candidate = %q", last)
	}
}

func TestSwaggerUIEndpoint(t *testing.T) {
	_, _, h := (&SwaggerUIEndpoint{}).Route()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/swagger", nil))

	body := rec.Body.String()
	for _, want := range []string{"<title>docpub API</title>", "swagger.json"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
}
