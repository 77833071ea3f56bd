package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/baitlabs/phishflow/backend/internal/campaigns"
	"github.com/baitlabs/phishflow/backend/internal/delegation"
	"github.com/baitlabs/phishflow/backend/internal/logx"
	"github.com/baitlabs/phishflow/backend/internal/profileservice"
)

type createDomainRequest struct {
	Name string `json:"name"`
}

// CreateDomainHandler registers an email domain for the team.
func (h *APIHandler) CreateDomainHandler(w http.ResponseWriter, r *http.Request) {
	team := requireTeam(w, r)
	if team == "" {
		return
	}

	var req createDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "domain name required")
		return
	}

	domain := &campaigns.Domain{
		Name:          campaigns.NormalizeDomain(req.Name),
		TeamID:        team,
		EmailProvider: campaigns.ProviderUnknown,
	}
	if err := h.Store.CreateDomain(r.Context(), domain); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to create domain")
		return
	}
	respondWithJSON(w, http.StatusCreated, domain)
}

// ListDomainsHandler lists the team's domains.
func (h *APIHandler) ListDomainsHandler(w http.ResponseWriter, r *http.Request) {
	team := requireTeam(w, r)
	if team == "" {
		return
	}
	domains, err := h.Store.ListDomains(r.Context(), team)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list domains")
		return
	}
	if domains == nil {
		domains = []*campaigns.Domain{}
	}
	respondWithJSON(w, http.StatusOK, domains)
}

// GetDelegationStatusHandler answers the tri-state delegation status
// for one of the team's domains.
func (h *APIHandler) GetDelegationStatusHandler(w http.ResponseWriter, r *http.Request) {
	domain, ok := h.ownedDomain(w, r)
	if !ok {
		return
	}
	status, err := h.Delegation.Status(r.Context(), domain)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to derive delegation status")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]campaigns.DelegationStatus{"status": status})
}

// VerifyDelegationHandler runs the delegation verification handshake
// and persists the outcome.
func (h *APIHandler) VerifyDelegationHandler(w http.ResponseWriter, r *http.Request) {
	domainID := mux.Vars(r)["domainId"]
	email := userEmail(r)
	if email == "" {
		respondWithError(w, http.StatusUnauthorized, headerUserEmail+" header required")
		return
	}

	updated, err := h.Delegation.Verify(r.Context(), teamID(r), email, domainID)
	if err != nil {
		switch {
		case errors.Is(err, delegation.ErrNoTeam):
			respondWithError(w, http.StatusBadRequest, "no active team")
		case errors.Is(err, campaigns.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "domain not found")
		case errors.Is(err, delegation.ErrNotOwned):
			respondWithError(w, http.StatusForbidden, "domain belongs to another team")
		case errors.Is(err, delegation.ErrEmailMismatch):
			respondWithError(w, http.StatusBadRequest, "verification email must be on the domain")
		case errors.Is(err, delegation.ErrClaimedByOther):
			respondWithError(w, http.StatusForbidden, "domain already delegated by another team")
		default:
			logx.L().Errorw("API: delegation verify failed", "domain", domainID, "error", err)
			respondWithError(w, http.StatusBadGateway, "delegation check failed")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// ResolveProviderHandler resolves the domain's email provider from DNS,
// persists it, and pushes the team's current domain list to the
// organization profile fire-and-forget.
func (h *APIHandler) ResolveProviderHandler(w http.ResponseWriter, r *http.Request) {
	domain, ok := h.ownedDomain(w, r)
	if !ok {
		return
	}

	provider, err := h.Provider.Resolve(r.Context(), domain.Name)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to resolve email provider")
		return
	}

	domain.EmailProvider = provider
	if err := h.Store.UpdateDomain(r.Context(), domain); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to persist email provider")
		return
	}

	if team, teamErr := h.Store.GetTeam(r.Context(), domain.TeamID); teamErr == nil && team.OrgID != "" {
		names := []string{domain.Name}
		if rows, listErr := h.Store.ListDomains(r.Context(), domain.TeamID); listErr == nil {
			names = names[:0]
			for _, row := range rows {
				names = append(names, row.Name)
			}
		}
		h.pushOrganization(profileservice.Organization{
			ID:      team.OrgID,
			Domains: names,
		})
	}
	respondWithJSON(w, http.StatusOK, domain)
}

// pushOrganization updates the profile service in the background. The
// dashboard keeps its own copy, so failures are log-only.
func (h *APIHandler) pushOrganization(org profileservice.Organization) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := h.Profile.UpdateOrganization(ctx, org); err != nil {
			logx.L().Warnw("API: organization profile push failed", "org", org.ID, "error", err)
		}
	}()
}

// ownedDomain loads the path domain and enforces team ownership with a
// 403, matching the delegation flow's contract.
func (h *APIHandler) ownedDomain(w http.ResponseWriter, r *http.Request) (*campaigns.Domain, bool) {
	team := requireTeam(w, r)
	if team == "" {
		return nil, false
	}
	domainID := mux.Vars(r)["domainId"]

	domain, err := h.Store.GetDomain(r.Context(), domainID)
	if err != nil {
		if errors.Is(err, campaigns.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "domain not found")
		} else {
			respondWithError(w, http.StatusInternalServerError, "failed to load domain")
		}
		return nil, false
	}
	if domain.TeamID != team {
		respondWithError(w, http.StatusForbidden, "domain belongs to another team")
		return nil, false
	}
	return domain, true
}
