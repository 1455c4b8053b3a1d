// Package provider implements the external identity providers. Each
// provider knows how to build an authorization URL and how to exchange a
// callback code for a verified identity; nothing here touches accounts,
// credentials, or stores.
package provider

import (
	"context"
	"fmt"
	"sort"

	"social-auth-service/internal/biz"
	"social-auth-service/internal/conf"
)

// Provider is one configured external identity provider.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*biz.ExternalIdentity, error)
}

// New constructs a provider by name. Unknown names are a configuration
// error caught at startup.
func New(ctx context.Context, name string, cfg conf.Provider, redirectURL string) (Provider, error) {
	switch name {
	case "google":
		return NewGoogle(ctx, cfg, redirectURL)
	case "microsoft":
		return NewMicrosoft(cfg, redirectURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the named provider, or false if it is not configured.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the configured provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
