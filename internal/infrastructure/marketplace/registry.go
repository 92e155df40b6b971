package marketplace

import (
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/listing"
)

// Dependencies carries everything adapter construction may need. Only the
// fields used by the requested platforms must be set.
type Dependencies struct {
	Secrets listing.SecretStore
	Sink    FileSink
	Logger  *zap.Logger

	Ebay    *EbayConfig
	Mercari *MercariConfig

	// StorefrontURL is the public shop that catalog feed links point to
	StorefrontURL string

	// HTTPClient overrides the transport of the API adapters
	HTTPClient *http.Client
}

// NewAdapter constructs the adapter for p. The set of platforms is closed;
// an unknown platform is an error.
func NewAdapter(p listing.Platform, deps Dependencies) (listing.Adapter, error) {
	switch p {
	case listing.PlatformEbay:
		if deps.Ebay == nil {
			return nil, fmt.Errorf("%w: %s", listing.ErrPlatformNotConfigured, p)
		}
		var opts []EbayOption
		if deps.HTTPClient != nil {
			opts = append(opts, WithEbayHTTPClient(deps.HTTPClient))
		}
		return NewEbayAdapter(deps.Ebay, deps.Secrets, deps.Logger, opts...)
	case listing.PlatformMercari:
		if deps.Mercari == nil {
			return nil, fmt.Errorf("%w: %s", listing.ErrPlatformNotConfigured, p)
		}
		var opts []MercariOption
		if deps.HTTPClient != nil {
			opts = append(opts, WithMercariHTTPClient(deps.HTTPClient))
		}
		return NewMercariAdapter(deps.Mercari, deps.Secrets, deps.Logger, opts...)
	case listing.PlatformPoshmark, listing.PlatformBonanza,
		listing.PlatformFacebook, listing.PlatformGoogleShopping, listing.PlatformPinterest:
		if deps.Sink == nil {
			return nil, fmt.Errorf("%w: %s: no file sink", listing.ErrPlatformNotConfigured, p)
		}
		return newFileAdapterFor(p, deps), nil
	case listing.PlatformCraigslist:
		return NewCraigslistAdapter(deps.Logger), nil
	case listing.PlatformChairish:
		return NewChairishAdapter(deps.Logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", listing.ErrUnknownPlatform, p)
	}
}

func newFileAdapterFor(p listing.Platform, deps Dependencies) *FileAdapter {
	switch p {
	case listing.PlatformPoshmark:
		return NewPoshmarkAdapter(deps.Sink, deps.Logger)
	case listing.PlatformBonanza:
		return NewBonanzaAdapter(deps.Sink, deps.Logger)
	case listing.PlatformFacebook:
		return NewFacebookCatalogAdapter(deps.Sink, deps.StorefrontURL, deps.Logger)
	case listing.PlatformGoogleShopping:
		return NewGoogleShoppingAdapter(deps.Sink, deps.StorefrontURL, deps.Logger)
	default:
		return NewPinterestAdapter(deps.Sink, deps.StorefrontURL, deps.Logger)
	}
}

// Registry is an immutable listing.AdapterRegistry
type Registry struct {
	adapters map[listing.Platform]listing.Adapter
	order    []listing.Platform
}

// NewRegistry builds adapters for the enabled platforms
func NewRegistry(enabled []listing.Platform, deps Dependencies) (*Registry, error) {
	adapters := make([]listing.Adapter, 0, len(enabled))
	for _, p := range enabled {
		a, err := NewAdapter(p, deps)
		if err != nil {
			return nil, fmt.Errorf("configure %s adapter: %w", p, err)
		}
		adapters = append(adapters, a)
	}
	return NewRegistryFromAdapters(adapters...), nil
}

// NewRegistryFromAdapters wraps ready-made adapters. A later adapter for the
// same platform replaces an earlier one.
func NewRegistryFromAdapters(adapters ...listing.Adapter) *Registry {
	r := &Registry{adapters: make(map[listing.Platform]listing.Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	rank := make(map[listing.Platform]int)
	for i, p := range listing.AllPlatforms() {
		rank[p] = i
	}
	for p := range r.adapters {
		r.order = append(r.order, p)
	}
	sort.Slice(r.order, func(i, j int) bool {
		ri, iok := rank[r.order[i]]
		rj, jok := rank[r.order[j]]
		if iok != jok {
			return iok
		}
		if ri != rj {
			return ri < rj
		}
		return r.order[i] < r.order[j]
	})
	return r
}

// Adapter implements listing.AdapterRegistry
func (r *Registry) Adapter(p listing.Platform) (listing.Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", listing.ErrPlatformNotConfigured, p)
	}
	return a, nil
}

// Platforms implements listing.AdapterRegistry
func (r *Registry) Platforms() []listing.Platform {
	return append([]listing.Platform(nil), r.order...)
}

var _ listing.AdapterRegistry = (*Registry)(nil)
