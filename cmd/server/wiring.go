package main

import (
	"fmt"
	"time"

	"github.com/reseller/crosslist/internal/application/reconciliation"
	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/infrastructure/config"
	"github.com/reseller/crosslist/internal/infrastructure/marketplace"
	"github.com/reseller/crosslist/internal/interfaces/http/middleware"
)

// enabledPlatforms parses publish.enabled_platforms
func enabledPlatforms(names []string) ([]listing.Platform, error) {
	out := make([]listing.Platform, 0, len(names))
	seen := make(map[listing.Platform]bool, len(names))
	for _, n := range names {
		p, err := listing.ParsePlatform(n)
		if err != nil {
			return nil, fmt.Errorf("publish.enabled_platforms: %q: %w", n, err)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

func ebayConfig(c config.EbayConfig) *marketplace.EbayConfig {
	out := marketplace.NewEbayConfig()
	if c.Sandbox {
		out = marketplace.NewSandboxEbayConfig()
	}
	out.MarketplaceID = c.MarketplaceID
	out.FulfillmentPolicyID = c.FulfillmentPolicyID
	out.PaymentPolicyID = c.PaymentPolicyID
	out.ReturnPolicyID = c.ReturnPolicyID
	out.MerchantLocationKey = c.MerchantLocationKey
	out.DefaultCategoryID = c.DefaultCategoryID
	if c.RequestsPerSecond > 0 {
		out.RequestsPerSecond = c.RequestsPerSecond
	}
	if c.Timeout > 0 {
		out.TimeoutSeconds = int(c.Timeout.Seconds())
	}
	return out
}

func mercariConfig(c config.MercariConfig) *marketplace.MercariConfig {
	out := marketplace.NewMercariConfig(c.ShopID)
	if c.Sandbox {
		out.IsSandbox = true
		out.APIBaseURL = marketplace.MercariSandboxAPIURL
	}
	if c.RequestsPerSecond > 0 {
		out.RequestsPerSecond = c.RequestsPerSecond
	}
	if c.Timeout > 0 {
		out.TimeoutSeconds = int(c.Timeout.Seconds())
	}
	return out
}

// reconciliationConfig maps the file settings onto the reconciler's.
// Unknown platform names in platform_grace are an error.
func reconciliationConfig(c config.ReconciliationConfig) (reconciliation.Config, error) {
	out := reconciliation.DefaultConfig()
	if c.GracePeriod > 0 {
		out.GracePeriod = c.GracePeriod
	}
	if c.CancelTimeout > 0 {
		out.CancelTimeout = c.CancelTimeout
	}
	if c.MaxCancelAttempts > 0 {
		out.MaxCancelAttempts = c.MaxCancelAttempts
	}
	if c.SweepBatchSize > 0 {
		out.SweepBatchSize = c.SweepBatchSize
	}
	if len(c.PlatformGrace) > 0 {
		out.PlatformGrace = make(map[listing.Platform]time.Duration, len(c.PlatformGrace))
		for name, d := range c.PlatformGrace {
			p, err := listing.ParsePlatform(name)
			if err != nil {
				return reconciliation.Config{}, fmt.Errorf("reconciliation.platform_grace: %q: %w", name, err)
			}
			out.PlatformGrace[p] = d
		}
	}
	return out, nil
}

func corsConfig(c config.HTTPConfig) middleware.CORSConfig {
	out := middleware.DefaultCORSConfig()
	out.AllowOrigins = c.CORSAllowOrigins
	return out
}
