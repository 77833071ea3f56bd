// Package lifecycle drives campaign state transitions: launching drafts
// through the attack service and keeping launched campaigns' attack
// records in sync.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/baitlabs/phishflow/backend/internal/attackservice"
	"github.com/baitlabs/phishflow/backend/internal/campaigns"
	"github.com/baitlabs/phishflow/backend/internal/logx"
	"github.com/baitlabs/phishflow/backend/internal/metrics"
)

var (
	// ErrNotOwned means the campaign belongs to a different team.
	// Handlers answer 404, not 403, so existence does not leak.
	ErrNotOwned = errors.New("campaign not owned by team")
	// ErrInvalidData means required campaign fields are missing or
	// malformed.
	ErrInvalidData = errors.New("campaign data is invalid")
	// ErrAlreadyLaunched rejects a second launch of the same campaign.
	ErrAlreadyLaunched = errors.New("campaign already launched")
	// ErrSyncInFlight means another sync for the same campaign is still
	// running. Callers treat it as no-update.
	ErrSyncInFlight = errors.New("attack sync already in flight")
)

// UndelegatedError reports target email domains the team has not
// delegated yet. Launch refuses before any external call.
type UndelegatedError struct {
	Domains []string
}

func (e *UndelegatedError) Error() string {
	return fmt.Sprintf("please get all campaign email domains delegated, these are not: %s", strings.Join(e.Domains, ", "))
}

// AttackClient is the subset of the attack service the lifecycle needs.
type AttackClient interface {
	CreateObjective(ctx context.Context, objective attackservice.Objective) (*attackservice.ObjectiveResult, error)
	FetchAttacks(ctx context.Context, objectiveID string) ([]attackservice.Attack, error)
}

// Service coordinates launches and attack syncs against the store.
type Service struct {
	store   campaigns.Store
	attacks AttackClient

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New(store campaigns.Store, attacks AttackClient) *Service {
	return &Service{
		store:    store,
		attacks:  attacks,
		inFlight: make(map[string]struct{}),
	}
}

// Launch transitions a draft to launched. Preconditions run in order
// and short-circuit: ownership, data validity, draft state, domain
// delegation. No attack service call happens unless all pass, and a
// failed call leaves the campaign a draft.
func (s *Service) Launch(ctx context.Context, teamID, campaignID string) (*campaigns.CampaignData, error) {
	campaign, err := s.ownedCampaign(ctx, teamID, campaignID)
	if err != nil {
		metrics.CampaignLaunchesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if !campaign.HasValidData() {
		metrics.CampaignLaunchesTotal.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidData
	}
	if !campaign.IsDraft() {
		metrics.CampaignLaunchesTotal.WithLabelValues("rejected").Inc()
		return nil, ErrAlreadyLaunched
	}

	delegated, err := s.delegatedDomains(ctx, teamID)
	if err != nil {
		metrics.CampaignLaunchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list delegated domains: %w", err)
	}
	if result := campaigns.ValidateCampaign(campaign, delegated); !result.OK {
		metrics.CampaignLaunchesTotal.WithLabelValues("rejected").Inc()
		return nil, &UndelegatedError{Domains: result.UndelegatedDomains}
	}

	begins, err := campaign.StartTime()
	if err != nil {
		metrics.CampaignLaunchesTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	expires, err := campaign.EndTime()
	if err != nil {
		metrics.CampaignLaunchesTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	validTargets := validTargets(campaign.Objective.Targets)
	wireTargets := make([]campaigns.AttackTarget, 0, len(validTargets))
	for _, target := range validTargets {
		wireTargets = append(wireTargets, campaigns.AsAttackTarget(target))
	}

	orgID := teamID
	if team, teamErr := s.store.GetTeam(ctx, teamID); teamErr == nil && team.OrgID != "" {
		orgID = team.OrgID
	}

	// The objective ID was fixed at draft creation; resending it lets
	// the attack service dedupe a retried launch.
	result, err := s.attacks.CreateObjective(ctx, attackservice.Objective{
		ID:        campaign.Objective.ID,
		Goal:      campaign.Objective.Goal,
		Targets:   wireTargets,
		OrgID:     orgID,
		BeginsAt:  begins.Format(time.RFC3339),
		ExpiresAt: expires.Format(time.RFC3339),
	})
	if err != nil {
		metrics.CampaignLaunchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create objective: %w", err)
	}

	// Persist attack ids and statuses only; log trails arrive via sync.
	attacks := make(campaigns.CampaignAttackRecord, len(result.Attacks))
	for _, attack := range result.Attacks {
		attacks[attack.Target.Email] = campaigns.CampaignAttack{
			ID:     attack.ID,
			Status: attack.Status,
		}
	}
	campaign.Attacks = attacks
	campaign.Objective.Targets = validTargets

	if err := s.store.UpdateCampaign(ctx, campaign); err != nil {
		metrics.CampaignLaunchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("persist launched campaign: %w", err)
	}

	if activity := activityFromAttacks(campaign, result.Attacks); len(activity) > 0 {
		if err := s.store.AppendActivity(ctx, activity); err != nil {
			logx.L().Warnw("Lifecycle: failed to record launch activity", "campaign", campaign.ID, "error", err)
		}
	}

	metrics.CampaignLaunchesTotal.WithLabelValues("success").Inc()
	logx.L().Infow("Lifecycle: campaign launched", "campaign", campaign.ID, "team", teamID, "attacks", len(attacks))
	return campaign, nil
}

// SyncAttacks pulls the current attack state and replaces the stored
// record wholesale if anything observable changed. The returned bool
// reports whether a replacement happened. At most one sync per campaign
// runs at a time; losers get ErrSyncInFlight.
func (s *Service) SyncAttacks(ctx context.Context, teamID, campaignID string) (campaigns.CampaignAttackRecord, bool, error) {
	if !s.acquire(campaignID) {
		return nil, false, ErrSyncInFlight
	}
	defer s.release(campaignID)

	campaign, err := s.ownedCampaign(ctx, teamID, campaignID)
	if err != nil {
		return nil, false, err
	}
	if campaign.IsDraft() {
		return campaign.Attacks, false, nil
	}

	fetched, err := s.attacks.FetchAttacks(ctx, campaign.Objective.ID)
	if err != nil {
		metrics.AttackSyncsTotal.WithLabelValues("error").Inc()
		logx.L().Warnw("Lifecycle: attack sync failed, keeping stored record", "campaign", campaignID, "error", err)
		return nil, false, fmt.Errorf("fetch attacks: %w", err)
	}

	candidate := make(campaigns.CampaignAttackRecord, len(fetched))
	for _, attack := range fetched {
		candidate[attack.Target.Email] = campaigns.CampaignAttack{
			ID:     attack.ID,
			Status: attack.Status,
			Logs:   attack.Logs,
		}
	}

	if !campaigns.DidAttacksUpdate(campaign.Attacks, candidate) {
		metrics.AttackSyncsTotal.WithLabelValues("unchanged").Inc()
		return campaign.Attacks, false, nil
	}

	if err := s.store.ReplaceAttacks(ctx, campaignID, candidate); err != nil {
		metrics.AttackSyncsTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("replace attacks: %w", err)
	}
	metrics.AttackSyncsTotal.WithLabelValues("updated").Inc()
	return candidate, true, nil
}

// Poll syncs a campaign on a fixed interval until ctx is cancelled.
// Errors are logged and retried on the next tick.
func (s *Service) Poll(ctx context.Context, teamID, campaignID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.SyncAttacks(ctx, teamID, campaignID); err != nil && !errors.Is(err, ErrSyncInFlight) {
				logx.L().Debugw("Lifecycle: poll sync failed", "campaign", campaignID, "error", err)
			}
		}
	}
}

func (s *Service) ownedCampaign(ctx context.Context, teamID, campaignID string) (*campaigns.CampaignData, error) {
	campaign, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.TeamID != teamID {
		return nil, ErrNotOwned
	}
	return campaign, nil
}

func (s *Service) delegatedDomains(ctx context.Context, teamID string) ([]string, error) {
	domains, err := s.store.ListDomains(ctx, teamID)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, domain := range domains {
		if domain.IsDelegated {
			names = append(names, domain.Name)
		}
	}
	return names, nil
}

func (s *Service) acquire(campaignID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[campaignID]; busy {
		return false
	}
	s.inFlight[campaignID] = struct{}{}
	return true
}

func (s *Service) release(campaignID string) {
	s.mu.Lock()
	delete(s.inFlight, campaignID)
	s.mu.Unlock()
}

func validTargets(targets []campaigns.CampaignTarget) []campaigns.CampaignTarget {
	valid := []campaigns.CampaignTarget{}
	for _, target := range targets {
		if campaigns.IsValidTarget(target) {
			valid = append(valid, target)
		}
	}
	return valid
}

func activityFromAttacks(campaign *campaigns.CampaignData, attacks []attackservice.Attack) []campaigns.CampaignActivity {
	var rows []campaigns.CampaignActivity
	for _, attack := range attacks {
		for _, log := range attack.Logs {
			rows = append(rows, campaigns.CampaignActivity{
				CampaignID:   campaign.ID,
				TeamID:       campaign.TeamID,
				AttackID:     attack.ID,
				AttackLogID:  log.ID,
				ActivityType: log.Type,
				Payload:      log.Payload,
				PerformedAt:  log.CreatedAt,
			})
		}
	}
	return rows
}
