package api

import (
	"context"
	"net/http"
	"time"

	"github.com/baitlabs/phishflow/backend/internal/campaigns"
	"github.com/baitlabs/phishflow/backend/internal/config"
	"github.com/baitlabs/phishflow/backend/internal/profileservice"
)

// Team and user identity arrive from the auth gateway as trusted
// headers.
const (
	headerTeamID    = "X-Team-ID"
	headerUserEmail = "X-User-Email"
)

// LifecycleService launches drafts and syncs attack state.
type LifecycleService interface {
	Launch(ctx context.Context, teamID, campaignID string) (*campaigns.CampaignData, error)
	SyncAttacks(ctx context.Context, teamID, campaignID string) (campaigns.CampaignAttackRecord, bool, error)
	Poll(ctx context.Context, teamID, campaignID string, interval time.Duration)
}

// DelegationService answers and verifies domain delegation.
type DelegationService interface {
	Status(ctx context.Context, domain *campaigns.Domain) (campaigns.DelegationStatus, error)
	Verify(ctx context.Context, teamID, userEmail, domainID string) (*campaigns.Domain, error)
}

// ProviderResolver classifies a domain's email provider via DNS.
type ProviderResolver interface {
	Resolve(ctx context.Context, domain string) (campaigns.EmailProvider, error)
}

// ProfileClient pushes organization updates to the profile service.
type ProfileClient interface {
	UpdateOrganization(ctx context.Context, org profileservice.Organization) error
}

// APIHandler holds shared dependencies for API handlers.
type APIHandler struct {
	Config     *config.AppConfig
	Store      campaigns.Store
	Lifecycle  LifecycleService
	Delegation DelegationService
	Provider   ProviderResolver
	Profile    ProfileClient
}

// NewAPIHandler creates a new APIHandler with dependencies.
func NewAPIHandler(cfg *config.AppConfig, store campaigns.Store, lifecycle LifecycleService, delegation DelegationService, provider ProviderResolver, profile ProfileClient) *APIHandler {
	return &APIHandler{
		Config:     cfg,
		Store:      store,
		Lifecycle:  lifecycle,
		Delegation: delegation,
		Provider:   provider,
		Profile:    profile,
	}
}

func teamID(r *http.Request) string    { return r.Header.Get(headerTeamID) }
func userEmail(r *http.Request) string { return r.Header.Get(headerUserEmail) }

// requireTeam extracts the team header or writes a 400 and returns "".
func requireTeam(w http.ResponseWriter, r *http.Request) string {
	team := teamID(r)
	if team == "" {
		respondWithError(w, http.StatusBadRequest, headerTeamID+" header required")
	}
	return team
}
