package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/baitlabs/phishflow/backend/internal/metrics"
)

// NewRouter wires all handlers. The /api/v1 subrouter requires the
// configured API key; /ping and /metrics stay open for probes and
// scrapers.
func NewRouter(apiHandler *APIHandler) *mux.Router {
	router := mux.NewRouter()

	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	router.HandleFunc("/ping", apiHandler.PingHandler).Methods(http.MethodGet, http.MethodOptions)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	apiV1 := router.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(APIKeyAuthMiddleware(apiHandler.Config.Server.APIKey))

	// Campaigns
	apiV1.HandleFunc("/campaigns", apiHandler.CreateCampaignHandler).Methods(http.MethodPost, http.MethodOptions)
	apiV1.HandleFunc("/campaigns", apiHandler.ListCampaignsHandler).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/campaigns/{campaignId}", apiHandler.GetCampaignHandler).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/campaigns/{campaignId}", apiHandler.UpdateCampaignHandler).Methods(http.MethodPut, http.MethodOptions)
	apiV1.HandleFunc("/campaigns/{campaignId}", apiHandler.DeleteCampaignHandler).Methods(http.MethodDelete, http.MethodOptions)
	apiV1.HandleFunc("/campaigns/{campaignId}/launch", apiHandler.LaunchCampaignHandler).Methods(http.MethodPost, http.MethodOptions)
	apiV1.HandleFunc("/campaigns/{campaignId}/attacks", apiHandler.SyncAttacksHandler).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/campaigns/{campaignId}/segments", apiHandler.GetSegmentsHandler).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/campaigns/{campaignId}/activity", apiHandler.GetActivityHandler).Methods(http.MethodGet, http.MethodOptions)

	// Teams
	apiV1.HandleFunc("/teams/sync", apiHandler.SyncTeamHandler).Methods(http.MethodPost, http.MethodOptions)

	// Domains and delegation
	apiV1.HandleFunc("/domains", apiHandler.CreateDomainHandler).Methods(http.MethodPost, http.MethodOptions)
	apiV1.HandleFunc("/domains", apiHandler.ListDomainsHandler).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/domains/{domainId}/delegation/status", apiHandler.GetDelegationStatusHandler).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/domains/{domainId}/delegation/verify", apiHandler.VerifyDelegationHandler).Methods(http.MethodPost, http.MethodOptions)
	apiV1.HandleFunc("/domains/{domainId}/provider", apiHandler.ResolveProviderHandler).Methods(http.MethodGet, http.MethodOptions)

	return router
}
