package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the docpub home directory.
	DefaultDirName = ".docpub"

	// ImageCacheDirName holds one image cache file per namespace.
	ImageCacheDirName = "image-cache"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the docpub home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.docpub).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ImageCachePath returns the directory of per-namespace image caches.
func (d *Dir) ImageCachePath() string {
	return filepath.Join(d.path, ImageCacheDirName)
}

// ImageCacheFile returns the cache file for a namespace.
func (d *Dir) ImageCacheFile(namespace string) string {
	return filepath.Join(d.ImageCachePath(), namespace+".json")
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.ImageCachePath(), 0o755); err != nil {
		return fmt.Errorf("failed to create image cache directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// Namespaces lists the namespaces that have a persisted image cache.
func (d *Dir) Namespaces() ([]string, error) {
	entries, err := os.ReadDir(d.ImageCachePath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list image caches: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		out = append(out, e.Name()[:len(e.Name())-len(".json")])
	}
	return out, nil
}
