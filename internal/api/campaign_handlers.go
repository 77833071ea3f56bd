package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/baitlabs/phishflow/backend/internal/attackservice"
	"github.com/baitlabs/phishflow/backend/internal/campaigns"
	"github.com/baitlabs/phishflow/backend/internal/campaigns/lifecycle"
	"github.com/baitlabs/phishflow/backend/internal/logx"
)

// campaignResponse decorates the stored row with its derived state and
// status so clients never compute them.
type campaignResponse struct {
	*campaigns.CampaignData
	State  campaigns.CampaignState  `json:"state"`
	Status campaigns.CampaignStatus `json:"status"`
}

func newCampaignResponse(campaign *campaigns.CampaignData) campaignResponse {
	return campaignResponse{
		CampaignData: campaign,
		State:        campaign.State(),
		Status:       campaign.Status(time.Now()),
	}
}

// CreateCampaignHandler creates a fresh draft for the team.
func (h *APIHandler) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	team := requireTeam(w, r)
	if team == "" {
		return
	}

	draft := campaigns.NewDraft(team)
	if err := h.Store.CreateCampaign(r.Context(), draft); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to create campaign")
		return
	}
	respondWithJSON(w, http.StatusCreated, newCampaignResponse(draft))
}

// ListCampaignsHandler lists the team's campaigns, drafts first and
// newest first within each group. Rows with invalid data are excluded
// rather than failing the whole list.
func (h *APIHandler) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	team := requireTeam(w, r)
	if team == "" {
		return
	}

	list, err := h.Store.ListCampaigns(r.Context(), team)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}

	valid := list[:0]
	for _, campaign := range list {
		if campaign.HasValidData() {
			valid = append(valid, campaign)
		} else {
			logx.L().Warnw("API: excluding invalid campaign row from list", "campaign", campaign.ID)
		}
	}
	campaigns.SortCampaigns(valid)

	response := make([]campaignResponse, 0, len(valid))
	for _, campaign := range valid {
		response = append(response, newCampaignResponse(campaign))
	}
	respondWithJSON(w, http.StatusOK, response)
}

// GetCampaignHandler fetches one campaign with derived status.
func (h *APIHandler) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.ownedCampaign(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, newCampaignResponse(campaign))
}

type updateCampaignRequest struct {
	Name         *string                     `json:"name"`
	StartDate    *string                     `json:"start_date"`
	DurationDays *int                        `json:"duration_days"`
	Targets      *[]campaigns.CampaignTarget `json:"targets"`
}

// UpdateCampaignHandler edits campaign fields. Name, start date, and
// duration are editable at any time; the target list only while the
// campaign is still a draft.
func (h *APIHandler) UpdateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.ownedCampaign(w, r)
	if !ok {
		return
	}

	var req updateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Targets != nil && !campaign.IsDraft() {
		respondWithError(w, http.StatusConflict, "targets cannot be edited after launch")
		return
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.StartDate != nil {
		campaign.StartDate = *req.StartDate
	}
	if req.DurationDays != nil {
		campaign.DurationDays = *req.DurationDays
	}
	if req.Targets != nil {
		campaign.Objective.Targets = *req.Targets
	}

	if err := h.Store.UpdateCampaign(r.Context(), campaign); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to update campaign")
		return
	}
	respondWithJSON(w, http.StatusOK, newCampaignResponse(campaign))
}

// DeleteCampaignHandler removes a campaign permanently. Removal is
// terminal regardless of state.
func (h *APIHandler) DeleteCampaignHandler(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.ownedCampaign(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteCampaign(r.Context(), campaign.ID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to delete campaign")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// LaunchCampaignHandler launches a draft through the attack service.
func (h *APIHandler) LaunchCampaignHandler(w http.ResponseWriter, r *http.Request) {
	team := requireTeam(w, r)
	if team == "" {
		return
	}
	campaignID := mux.Vars(r)["campaignId"]

	launched, err := h.Lifecycle.Launch(r.Context(), team, campaignID)
	if err != nil {
		h.respondLaunchError(w, err)
		return
	}

	// Keep the attack record fresh until the campaign runs out.
	if end, err := launched.EndTime(); err == nil && end.After(time.Now()) {
		pollCtx, cancel := context.WithDeadline(context.Background(), end)
		go func() {
			defer cancel()
			h.Lifecycle.Poll(pollCtx, team, campaignID, h.Config.Sync.Interval())
		}()
	}
	respondWithJSON(w, http.StatusOK, newCampaignResponse(launched))
}

func (h *APIHandler) respondLaunchError(w http.ResponseWriter, err error) {
	var undelegated *lifecycle.UndelegatedError
	var apiErr *attackservice.APIError
	switch {
	case errors.Is(err, campaigns.ErrNotFound), errors.Is(err, lifecycle.ErrNotOwned):
		respondWithError(w, http.StatusNotFound, "campaign not found")
	case errors.Is(err, lifecycle.ErrAlreadyLaunched):
		respondWithError(w, http.StatusConflict, "campaign already launched")
	case errors.Is(err, lifecycle.ErrInvalidData):
		respondWithError(w, http.StatusUnprocessableEntity, "campaign data is incomplete or invalid")
	case errors.As(err, &undelegated):
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"message": undelegated.Error()})
	case errors.As(err, &apiErr):
		// Propagate the upstream body verbatim.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write(apiErr.Body)
	default:
		logx.L().Errorw("API: launch failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to launch campaign")
	}
}

// SyncAttacksHandler refreshes the campaign's attack record from the
// attack service. Answers 304 when nothing observable changed.
func (h *APIHandler) SyncAttacksHandler(w http.ResponseWriter, r *http.Request) {
	team := requireTeam(w, r)
	if team == "" {
		return
	}
	campaignID := mux.Vars(r)["campaignId"]

	record, updated, err := h.Lifecycle.SyncAttacks(r.Context(), team, campaignID)
	if err != nil {
		var apiErr *attackservice.APIError
		switch {
		case errors.Is(err, campaigns.ErrNotFound), errors.Is(err, lifecycle.ErrNotOwned):
			respondWithError(w, http.StatusNotFound, "campaign not found")
		case errors.Is(err, lifecycle.ErrSyncInFlight):
			w.WriteHeader(http.StatusNotModified)
		case errors.As(err, &apiErr):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			w.Write(apiErr.Body)
		default:
			respondWithError(w, http.StatusBadGateway, "failed to sync attacks")
		}
		return
	}
	if !updated {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	respondWithJSON(w, http.StatusOK, record)
}

type segmentsResponse struct {
	Stats   campaigns.SegmentStats     `json:"stats"`
	Targets []campaigns.CampaignTarget `json:"targets,omitempty"`
}

// GetSegmentsHandler returns the campaign's funnel stats, plus the
// filtered target list when a segment is requested.
func (h *APIHandler) GetSegmentsHandler(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.ownedCampaign(w, r)
	if !ok {
		return
	}

	attackList := make([]campaigns.CampaignAttack, 0, len(campaign.Attacks))
	for _, attack := range campaign.Attacks {
		attackList = append(attackList, attack)
	}
	response := segmentsResponse{Stats: campaigns.CalculateSegments(attackList)}

	if segment := campaigns.SegmentType(r.URL.Query().Get("segment")); segment != "" {
		filter := campaigns.FilterBySegment(segment, campaign.Attacks)
		for _, target := range campaign.Objective.Targets {
			if filter(target) {
				response.Targets = append(response.Targets, target)
			}
		}
	}
	respondWithJSON(w, http.StatusOK, response)
}

// GetActivityHandler lists the campaign's audit-trail rows.
func (h *APIHandler) GetActivityHandler(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.ownedCampaign(w, r)
	if !ok {
		return
	}
	activity, err := h.Store.ListActivity(r.Context(), campaign.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	respondWithJSON(w, http.StatusOK, activity)
}

// ownedCampaign loads the path campaign and enforces team ownership.
// Foreign campaigns answer 404 so existence does not leak.
func (h *APIHandler) ownedCampaign(w http.ResponseWriter, r *http.Request) (*campaigns.CampaignData, bool) {
	team := requireTeam(w, r)
	if team == "" {
		return nil, false
	}
	campaignID := mux.Vars(r)["campaignId"]

	campaign, err := h.Store.GetCampaign(r.Context(), campaignID)
	if err != nil {
		if errors.Is(err, campaigns.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "campaign not found")
		} else {
			respondWithError(w, http.StatusInternalServerError, "failed to load campaign")
		}
		return nil, false
	}
	if campaign.TeamID != team {
		respondWithError(w, http.StatusNotFound, "campaign not found")
		return nil, false
	}
	return campaign, true
}
