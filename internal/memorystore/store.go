// Package memorystore provides the in-memory campaigns.Store used in
// development and tests. Postgres takes over in deployments that
// configure a DSN.
package memorystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/baitlabs/phishflow/backend/internal/campaigns"
)

// Store keeps all rows in maps guarded by a single RWMutex. Values are
// deep-copied on the way in and out so callers never alias store state.
type Store struct {
	mu        sync.RWMutex
	campaigns map[string]*campaigns.CampaignData
	teams     map[string]*campaigns.Team
	domains   map[string]*campaigns.Domain
	activity  map[string][]campaigns.CampaignActivity
}

func New() *Store {
	return &Store{
		campaigns: make(map[string]*campaigns.CampaignData),
		teams:     make(map[string]*campaigns.Team),
		domains:   make(map[string]*campaigns.Domain),
		activity:  make(map[string][]campaigns.CampaignActivity),
	}
}

func (s *Store) CreateCampaign(ctx context.Context, campaign *campaigns.CampaignData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	if _, exists := s.campaigns[campaign.ID]; exists {
		return fmt.Errorf("campaign %s: %w", campaign.ID, campaigns.ErrDuplicate)
	}
	s.campaigns[campaign.ID] = copyCampaign(campaign)
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, campaignID string) (*campaigns.CampaignData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	campaign, exists := s.campaigns[campaignID]
	if !exists {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, campaigns.ErrNotFound)
	}
	return copyCampaign(campaign), nil
}

func (s *Store) ListCampaigns(ctx context.Context, teamID string) ([]*campaigns.CampaignData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*campaigns.CampaignData
	for _, campaign := range s.campaigns {
		if campaign.TeamID == teamID {
			result = append(result, copyCampaign(campaign))
		}
	}
	return result, nil
}

func (s *Store) UpdateCampaign(ctx context.Context, campaign *campaigns.CampaignData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[campaign.ID]; !exists {
		return fmt.Errorf("campaign %s: %w", campaign.ID, campaigns.ErrNotFound)
	}
	s.campaigns[campaign.ID] = copyCampaign(campaign)
	return nil
}

func (s *Store) DeleteCampaign(ctx context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[campaignID]; !exists {
		return fmt.Errorf("campaign %s: %w", campaignID, campaigns.ErrNotFound)
	}
	delete(s.campaigns, campaignID)
	delete(s.activity, campaignID)
	return nil
}

func (s *Store) ReplaceAttacks(ctx context.Context, campaignID string, attacks campaigns.CampaignAttackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign, exists := s.campaigns[campaignID]
	if !exists {
		return fmt.Errorf("campaign %s: %w", campaignID, campaigns.ErrNotFound)
	}
	campaign.Attacks = copyAttacks(attacks)
	return nil
}

func (s *Store) UpsertTeam(ctx context.Context, team *campaigns.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *team
	stored.Languages = append([]string(nil), team.Languages...)
	s.teams[team.ID] = &stored
	return nil
}

func (s *Store) GetTeam(ctx context.Context, teamID string) (*campaigns.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	team, exists := s.teams[teamID]
	if !exists {
		return nil, fmt.Errorf("team %s: %w", teamID, campaigns.ErrNotFound)
	}
	result := *team
	result.Languages = append([]string(nil), team.Languages...)
	return &result, nil
}

func (s *Store) CreateDomain(ctx context.Context, domain *campaigns.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if domain.ID == "" {
		domain.ID = uuid.NewString()
	}
	if _, exists := s.domains[domain.ID]; exists {
		return fmt.Errorf("domain %s: %w", domain.ID, campaigns.ErrDuplicate)
	}
	stored := *domain
	s.domains[domain.ID] = &stored
	return nil
}

func (s *Store) GetDomain(ctx context.Context, domainID string) (*campaigns.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domain, exists := s.domains[domainID]
	if !exists {
		return nil, fmt.Errorf("domain %s: %w", domainID, campaigns.ErrNotFound)
	}
	result := *domain
	return &result, nil
}

func (s *Store) ListDomains(ctx context.Context, teamID string) ([]*campaigns.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*campaigns.Domain
	for _, domain := range s.domains {
		if domain.TeamID == teamID {
			copied := *domain
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *Store) ListDomainsByName(ctx context.Context, name string) ([]*campaigns.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name = campaigns.NormalizeDomain(name)
	var result []*campaigns.Domain
	for _, domain := range s.domains {
		if campaigns.NormalizeDomain(domain.Name) == name {
			copied := *domain
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *Store) UpdateDomain(ctx context.Context, domain *campaigns.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.domains[domain.ID]; !exists {
		return fmt.Errorf("domain %s: %w", domain.ID, campaigns.ErrNotFound)
	}
	stored := *domain
	s.domains[domain.ID] = &stored
	return nil
}

func (s *Store) AppendActivity(ctx context.Context, activity []campaigns.CampaignActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range activity {
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		s.activity[row.CampaignID] = append(s.activity[row.CampaignID], row)
	}
	return nil
}

func (s *Store) ListActivity(ctx context.Context, campaignID string) ([]campaigns.CampaignActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]campaigns.CampaignActivity(nil), s.activity[campaignID]...), nil
}

func copyCampaign(campaign *campaigns.CampaignData) *campaigns.CampaignData {
	copied := *campaign
	copied.Attacks = copyAttacks(campaign.Attacks)
	// An empty target list stays non-nil: nilness marks a corrupt row.
	if campaign.Objective.Targets != nil {
		copied.Objective.Targets = append([]campaigns.CampaignTarget{}, campaign.Objective.Targets...)
	}
	return &copied
}

func copyAttacks(attacks campaigns.CampaignAttackRecord) campaigns.CampaignAttackRecord {
	copied := make(campaigns.CampaignAttackRecord, len(attacks))
	for email, attack := range attacks {
		attack.Logs = append([]campaigns.AttackLog(nil), attack.Logs...)
		copied[email] = attack
	}
	return copied
}

var _ campaigns.Store = (*Store)(nil)
