package api

import (
	"encoding/json"
	"net/http"

	"github.com/baitlabs/phishflow/backend/internal/campaigns"
	"github.com/baitlabs/phishflow/backend/internal/profileservice"
)

type syncTeamRequest struct {
	Name      string   `json:"name"`
	OrgID     string   `json:"org_id"`
	Languages []string `json:"languages"`
}

// SyncTeamHandler upserts the caller's team row and notifies the
// profile service about the organization in the background.
func (h *APIHandler) SyncTeamHandler(w http.ResponseWriter, r *http.Request) {
	team := requireTeam(w, r)
	if team == "" {
		return
	}

	var req syncTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	row := &campaigns.Team{
		ID:        team,
		Name:      req.Name,
		OrgID:     req.OrgID,
		Languages: req.Languages,
	}
	if err := h.Store.UpsertTeam(r.Context(), row); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to sync team")
		return
	}

	if row.OrgID != "" {
		h.pushOrganization(profileservice.Organization{
			ID:        row.OrgID,
			Name:      row.Name,
			Languages: row.Languages,
		})
	}
	respondWithJSON(w, http.StatusOK, row)
}
