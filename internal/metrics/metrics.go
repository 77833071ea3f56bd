// Package metrics registers the dashboard's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CampaignLaunchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaign_launches_total", Help: "Campaign launch attempts"},
		[]string{"outcome"},
	)
	AttackSyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "attack_syncs_total", Help: "Attack sync cycles"},
		[]string{"outcome"},
	)
	DelegationChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "domain_delegation_checks_total", Help: "Domain delegation verifications"},
		[]string{"outcome"},
	)
	ProviderLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "email_provider_lookups_total", Help: "Email provider DNS resolutions"},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(
		CampaignLaunchesTotal, AttackSyncsTotal, DelegationChecksTotal, ProviderLookupsTotal,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }
