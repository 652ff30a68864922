package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/cobra"
)

// Endpoint pairs a server route with the `docpub api` subcommand that
// calls it, so the HTTP surface and the CLI cannot drift apart.
type Endpoint interface {
	// Route returns the method, path pattern and handler.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit reports whether the handler needs the pass runner and
	// publisher in its request context.
	RequiresInit() bool

	// Command builds the CLI side. serverURL is read when the command runs,
	// after --server has been parsed.
	Command(serverURL func() string) *cobra.Command
}

// Registry is an ordered set of endpoints with unique "METHOD /path"
// patterns.
type Registry struct {
	endpoints []Endpoint
	seen      map[string]struct{}
}

// NewRegistry registers eps in order.
func NewRegistry(eps ...Endpoint) (*Registry, error) {
	r := &Registry{seen: make(map[string]struct{})}
	for _, ep := range eps {
		if err := r.Register(ep); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds ep, rejecting a pattern that is already taken.
func (r *Registry) Register(ep Endpoint) error {
	method, path, _ := ep.Route()
	pattern := method + " " + path
	if _, dup := r.seen[pattern]; dup {
		return fmt.Errorf("duplicate route %q", pattern)
	}
	r.seen[pattern] = struct{}{}
	r.endpoints = append(r.endpoints, ep)
	return nil
}

// Patterns returns the registered route patterns, sorted.
func (r *Registry) Patterns() []string {
	out := make([]string, 0, len(r.seen))
	for p := range r.seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Mux builds a ServeMux for every endpoint. Handlers of endpoints that
// require init are wrapped with guard.
func (r *Registry) Mux(guard func(http.HandlerFunc) http.HandlerFunc) *http.ServeMux {
	mux := http.NewServeMux()
	for _, ep := range r.endpoints {
		method, path, h := ep.Route()
		if ep.RequiresInit() && guard != nil {
			h = guard(h)
		}
		mux.HandleFunc(method+" "+path, h)
	}
	return mux
}

// AddCommands attaches the CLI command of each endpoint to parent.
func AddCommands(parent *cobra.Command, serverURL func() string, eps ...Endpoint) {
	for _, ep := range eps {
		parent.AddCommand(ep.Command(serverURL))
	}
}
