package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how commands render results on stdout.
type OutputFormat string

const (
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatJSON OutputFormat = "json"
)

// outputFormat is set from the root --output flag.
var outputFormat = OutputFormatYAML

// ParseOutputFormat accepts yaml, yml or json in any case.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return OutputFormatYAML, nil
	case "json":
		return OutputFormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want yaml or json)", s)
}

// SetOutputFormat sets the format used by Output.
func SetOutputFormat(f OutputFormat) { outputFormat = f }

// CurrentOutputFormat returns the format used by Output.
func CurrentOutputFormat() OutputFormat { return outputFormat }

// Output writes v to stdout.
func Output(v any) error {
	return OutputTo(os.Stdout, outputFormat, v)
}

// OutputTo writes v to w in format f.
func OutputTo(w io.Writer, f OutputFormat, v any) error {
	switch f {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", f)
}

// OutputToFile writes v to path. A .json, .yaml or .yml extension picks the
// format; anything else uses the current one.
func OutputToFile(v any, path string) error {
	f := outputFormat
	if byExt, err := ParseOutputFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		f = byExt
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := OutputTo(file, f, v); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
