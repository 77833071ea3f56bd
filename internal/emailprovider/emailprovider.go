// Package emailprovider resolves which mail platform hosts a domain by
// inspecting its MX and SPF records.
package emailprovider

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/time/rate"

	"github.com/baitlabs/phishflow/backend/internal/campaigns"
	"github.com/baitlabs/phishflow/backend/internal/logx"
	"github.com/baitlabs/phishflow/backend/internal/metrics"
)

const (
	office365MXSuffix = ".protection.outlook.com"
	googleMXSuffix    = ".google.com"
)

// Google requires both the MX suffix and an SPF include to count;
// MX alone shows up on domains that merely relay through Google.
var googleSPFPattern = regexp.MustCompile(`include:\s*_spf\.google\.com\s+[~-]all`)

// Lookup abstracts the DNS queries the resolver performs. The production
// implementation lives in dns.go; tests substitute a fake.
type Lookup interface {
	MX(ctx context.Context, domain string) ([]string, error)
	TXT(ctx context.Context, domain string) ([]string, error)
}

// Resolver classifies a domain's email provider. Safe for concurrent
// use.
type Resolver struct {
	lookup  Lookup
	limiter *rate.Limiter
}

// Options configure the production resolver.
type Options struct {
	// Resolvers are "host:port" DNS server addresses, tried in
	// rotation. Empty falls back to the system resolver config.
	Resolvers []string
	// QueryTimeout bounds a single DNS exchange.
	QueryTimeout string
	// RatePerSecond caps outgoing DNS queries. Zero disables the cap.
	RatePerSecond float64
}

// NewWithLookup builds a resolver over a custom lookup. A zero rate
// disables throttling.
func NewWithLookup(lookup Lookup, ratePerSecond float64) *Resolver {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &Resolver{lookup: lookup, limiter: limiter}
}

// Resolve returns the provider serving mail for domain. Lookup failures
// are treated as absent records, so an unreachable DNS server yields
// ProviderUnknown rather than an error.
func (r *Resolver) Resolve(ctx context.Context, domain string) (campaigns.EmailProvider, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return campaigns.ProviderUnknown, err
	}

	domain = campaigns.NormalizeDomain(domain)
	mxHosts, err := r.lookup.MX(ctx, domain)
	if err != nil {
		logx.L().Debugw("mx lookup failed", "domain", domain, "error", err)
		mxHosts = nil
	}

	provider := campaigns.ProviderUnknown
	switch {
	case hasMXSuffix(mxHosts, office365MXSuffix):
		provider = campaigns.ProviderOffice365
	case hasMXSuffix(mxHosts, googleMXSuffix):
		txtRecords, err := r.lookup.TXT(ctx, domain)
		if err != nil {
			logx.L().Debugw("txt lookup failed", "domain", domain, "error", err)
			txtRecords = nil
		}
		if hasGoogleSPF(txtRecords) {
			provider = campaigns.ProviderGoogle
		}
	}

	metrics.ProviderLookupsTotal.WithLabelValues(string(provider)).Inc()
	return provider, nil
}

func hasMXSuffix(hosts []string, suffix string) bool {
	for _, host := range hosts {
		host = strings.TrimSuffix(strings.ToLower(host), ".")
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

func hasGoogleSPF(records []string) bool {
	for _, record := range records {
		if googleSPFPattern.MatchString(record) {
			return true
		}
	}
	return false
}
