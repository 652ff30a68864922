package main

import (
	"github.com/spf13/cobra"

	"github.com/tinynewsco/docpub/internal/api"
	"github.com/tinynewsco/docpub/internal/home"
	"github.com/tinynewsco/docpub/internal/images"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect per-namespace image caches",
}

type cacheEntry struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	File      string `json:"file" yaml:"file"`
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List namespaces with a cached image map",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := homeFromFlags()
		if err != nil {
			return err
		}
		namespaces, err := h.Namespaces()
		if err != nil {
			return err
		}
		out := make([]cacheEntry, 0, len(namespaces))
		for _, ns := range namespaces {
			out = append(out, cacheEntry{Namespace: ns, File: h.ImageCacheFile(ns)})
		}
		return api.Output(out)
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <namespace>",
	Short: "Show the image ID to URL map of a namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := homeFromFlags()
		if err != nil {
			return err
		}
		cache, err := images.NewFileStore(h.ImageCachePath()).Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return api.Output(cache)
	},
}

func homeFromFlags() (*home.Dir, error) {
	return home.New(homeDir)
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	rootCmd.AddCommand(cacheCmd)
}
