package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reseller/crosslist/internal/domain/listing"
)

func TestNewAdapter_ClosedSet(t *testing.T) {
	ebay := NewEbayConfig()
	ebay.MerchantLocationKey = "home"
	deps := Dependencies{
		Secrets:       mapSecrets{},
		Sink:          newMemorySink(),
		Ebay:          ebay,
		Mercari:       NewMercariConfig("shop-1"),
		StorefrontURL: "https://shop.example.com",
	}

	for _, p := range listing.AllPlatforms() {
		t.Run(p.String(), func(t *testing.T) {
			a, err := NewAdapter(p, deps)
			require.NoError(t, err)
			assert.Equal(t, p, a.Platform())
			assert.Equal(t, p.Kind(), a.Kind())
		})
	}
}

func TestNewAdapter_Errors(t *testing.T) {
	tests := []struct {
		name     string
		platform listing.Platform
		deps     Dependencies
		wantErr  error
	}{
		{name: "unknown platform", platform: listing.Platform("mercari_automation"), wantErr: listing.ErrUnknownPlatform},
		{name: "ebay without config", platform: listing.PlatformEbay, wantErr: listing.ErrPlatformNotConfigured},
		{name: "mercari without config", platform: listing.PlatformMercari, wantErr: listing.ErrPlatformNotConfigured},
		{name: "csv without sink", platform: listing.PlatformPoshmark, wantErr: listing.ErrPlatformNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdapter(tt.platform, tt.deps)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegistry(t *testing.T) {
	sink := newMemorySink()
	r := NewRegistryFromAdapters(
		NewCraigslistAdapter(nil),
		NewPoshmarkAdapter(sink, nil),
		NewBonanzaAdapter(sink, nil),
	)

	assert.Equal(t, []listing.Platform{listing.PlatformPoshmark, listing.PlatformBonanza, listing.PlatformCraigslist}, r.Platforms())

	a, err := r.Adapter(listing.PlatformBonanza)
	require.NoError(t, err)
	assert.Equal(t, listing.PlatformBonanza, a.Platform())

	_, err = r.Adapter(listing.PlatformEbay)
	assert.ErrorIs(t, err, listing.ErrPlatformNotConfigured)
}
