package campaigns

import (
	"context"
	"errors"
)

// Store errors shared by every implementation. Handlers map these to
// HTTP status codes.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Store is the persistence boundary for campaigns, teams, domains, and
// the activity audit trail. Each row is owned by exactly one team and
// mutated through one request cycle at a time; implementations only need
// last-writer-wins semantics.
type Store interface {
	// CreateCampaign saves a new campaign, assigning an ID when empty.
	CreateCampaign(ctx context.Context, campaign *CampaignData) error
	// GetCampaign retrieves a campaign by ID regardless of team; callers
	// perform the ownership check.
	GetCampaign(ctx context.Context, campaignID string) (*CampaignData, error)
	// ListCampaigns retrieves every campaign belonging to a team.
	ListCampaigns(ctx context.Context, teamID string) ([]*CampaignData, error)
	// UpdateCampaign replaces an existing campaign wholesale.
	UpdateCampaign(ctx context.Context, campaign *CampaignData) error
	// DeleteCampaign removes a campaign and its activity permanently.
	DeleteCampaign(ctx context.Context, campaignID string) error
	// ReplaceAttacks swaps the campaign's attack record wholesale. Sync
	// never merges partial updates.
	ReplaceAttacks(ctx context.Context, campaignID string, attacks CampaignAttackRecord) error

	// UpsertTeam creates or updates a team row.
	UpsertTeam(ctx context.Context, team *Team) error
	GetTeam(ctx context.Context, teamID string) (*Team, error)

	// CreateDomain saves a new domain row, assigning an ID when empty.
	CreateDomain(ctx context.Context, domain *Domain) error
	GetDomain(ctx context.Context, domainID string) (*Domain, error)
	ListDomains(ctx context.Context, teamID string) ([]*Domain, error)
	// ListDomainsByName retrieves all rows with the given name across
	// teams; the delegation checker uses it to detect claims by others.
	ListDomainsByName(ctx context.Context, name string) ([]*Domain, error)
	UpdateDomain(ctx context.Context, domain *Domain) error

	// AppendActivity records audit-trail rows, assigning IDs when empty.
	AppendActivity(ctx context.Context, activity []CampaignActivity) error
	ListActivity(ctx context.Context, campaignID string) ([]CampaignActivity, error)
}
