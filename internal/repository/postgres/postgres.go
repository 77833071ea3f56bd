// Package postgres implements campaigns.Store on PostgreSQL. Objective,
// attack, and payload documents are stored as JSONB; everything else is
// plain columns.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/baitlabs/phishflow/backend/internal/campaigns"
)

const uniqueViolation = "23505"

// Store wraps a *sql.DB. Connection pooling is the driver's job.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

// Open connects using the lib/pq driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return New(db), nil
}

func (s *Store) Close() error { return s.db.Close() }

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return campaigns.ErrDuplicate
	}
	if errors.Is(err, sql.ErrNoRows) {
		return campaigns.ErrNotFound
	}
	return err
}

func (s *Store) CreateCampaign(ctx context.Context, campaign *campaigns.CampaignData) error {
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	objective, err := json.Marshal(campaign.Objective)
	if err != nil {
		return fmt.Errorf("marshal objective: %w", err)
	}
	attacks, err := marshalAttacks(campaign.Attacks)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, team_id, name, start_date, duration_days, objective, attacks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		campaign.ID, campaign.TeamID, campaign.Name, campaign.StartDate,
		campaign.DurationDays, objective, attacks, campaign.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", translate(err))
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, campaignID string) (*campaigns.CampaignData, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, team_id, name, start_date, duration_days, objective, attacks, created_at
		FROM campaigns WHERE id = $1`, campaignID)
	campaign, err := scanCampaign(row)
	if err != nil {
		return nil, fmt.Errorf("get campaign %s: %w", campaignID, translate(err))
	}
	return campaign, nil
}

func (s *Store) ListCampaigns(ctx context.Context, teamID string) ([]*campaigns.CampaignData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, name, start_date, duration_days, objective, attacks, created_at
		FROM campaigns WHERE team_id = $1`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var result []*campaigns.CampaignData
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		result = append(result, campaign)
	}
	return result, rows.Err()
}

func (s *Store) UpdateCampaign(ctx context.Context, campaign *campaigns.CampaignData) error {
	objective, err := json.Marshal(campaign.Objective)
	if err != nil {
		return fmt.Errorf("marshal objective: %w", err)
	}
	attacks, err := marshalAttacks(campaign.Attacks)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET team_id = $2, name = $3, start_date = $4, duration_days = $5, objective = $6, attacks = $7
		WHERE id = $1`,
		campaign.ID, campaign.TeamID, campaign.Name, campaign.StartDate,
		campaign.DurationDays, objective, attacks,
	)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return requireRow(result, campaign.ID)
}

func (s *Store) DeleteCampaign(ctx context.Context, campaignID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM campaign_activity WHERE campaign_id = $1`, campaignID); err != nil {
		return fmt.Errorf("delete campaign activity: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, campaignID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return requireRow(result, campaignID)
}

func (s *Store) ReplaceAttacks(ctx context.Context, campaignID string, attacks campaigns.CampaignAttackRecord) error {
	data, err := marshalAttacks(attacks)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `UPDATE campaigns SET attacks = $2 WHERE id = $1`, campaignID, data)
	if err != nil {
		return fmt.Errorf("replace attacks: %w", err)
	}
	return requireRow(result, campaignID)
}

func (s *Store) UpsertTeam(ctx context.Context, team *campaigns.Team) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (id, name, org_id, languages)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = $2, org_id = $3, languages = $4`,
		team.ID, team.Name, team.OrgID, pq.Array(team.Languages),
	)
	if err != nil {
		return fmt.Errorf("upsert team: %w", err)
	}
	return nil
}

func (s *Store) GetTeam(ctx context.Context, teamID string) (*campaigns.Team, error) {
	var team campaigns.Team
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, org_id, languages FROM teams WHERE id = $1`, teamID,
	).Scan(&team.ID, &team.Name, &team.OrgID, pq.Array(&team.Languages))
	if err != nil {
		return nil, fmt.Errorf("get team %s: %w", teamID, translate(err))
	}
	return &team, nil
}

func (s *Store) CreateDomain(ctx context.Context, domain *campaigns.Domain) error {
	if domain.ID == "" {
		domain.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO domains (id, name, team_id, email_provider, is_delegated, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		domain.ID, domain.Name, domain.TeamID, domain.EmailProvider, domain.IsDelegated, domain.IsVerified,
	)
	if err != nil {
		return fmt.Errorf("insert domain: %w", translate(err))
	}
	return nil
}

func (s *Store) GetDomain(ctx context.Context, domainID string) (*campaigns.Domain, error) {
	var domain campaigns.Domain
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, team_id, email_provider, is_delegated, is_verified
		FROM domains WHERE id = $1`, domainID,
	).Scan(&domain.ID, &domain.Name, &domain.TeamID, &domain.EmailProvider, &domain.IsDelegated, &domain.IsVerified)
	if err != nil {
		return nil, fmt.Errorf("get domain %s: %w", domainID, translate(err))
	}
	return &domain, nil
}

func (s *Store) ListDomains(ctx context.Context, teamID string) ([]*campaigns.Domain, error) {
	return s.queryDomains(ctx, `
		SELECT id, name, team_id, email_provider, is_delegated, is_verified
		FROM domains WHERE team_id = $1`, teamID)
}

func (s *Store) ListDomainsByName(ctx context.Context, name string) ([]*campaigns.Domain, error) {
	return s.queryDomains(ctx, `
		SELECT id, name, team_id, email_provider, is_delegated, is_verified
		FROM domains WHERE lower(name) = lower($1)`, name)
}

func (s *Store) queryDomains(ctx context.Context, query string, arg any) ([]*campaigns.Domain, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var result []*campaigns.Domain
	for rows.Next() {
		var domain campaigns.Domain
		if err := rows.Scan(&domain.ID, &domain.Name, &domain.TeamID, &domain.EmailProvider, &domain.IsDelegated, &domain.IsVerified); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		result = append(result, &domain)
	}
	return result, rows.Err()
}

func (s *Store) UpdateDomain(ctx context.Context, domain *campaigns.Domain) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE domains
		SET name = $2, team_id = $3, email_provider = $4, is_delegated = $5, is_verified = $6
		WHERE id = $1`,
		domain.ID, domain.Name, domain.TeamID, domain.EmailProvider, domain.IsDelegated, domain.IsVerified,
	)
	if err != nil {
		return fmt.Errorf("update domain: %w", err)
	}
	return requireRow(result, domain.ID)
}

func (s *Store) AppendActivity(ctx context.Context, activity []campaigns.CampaignActivity) error {
	for _, row := range activity {
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		payload, err := json.Marshal(row.Payload)
		if err != nil {
			return fmt.Errorf("marshal activity payload: %w", err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO campaign_activity (id, campaign_id, team_id, attack_id, attack_log_id, activity_type, payload, performed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			row.ID, row.CampaignID, row.TeamID, row.AttackID, row.AttackLogID,
			row.ActivityType, payload, row.PerformedAt,
		)
		if err != nil {
			return fmt.Errorf("insert activity: %w", translate(err))
		}
	}
	return nil
}

func (s *Store) ListActivity(ctx context.Context, campaignID string) ([]campaigns.CampaignActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_id, team_id, attack_id, attack_log_id, activity_type, payload, performed_at
		FROM campaign_activity WHERE campaign_id = $1
		ORDER BY performed_at`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var result []campaigns.CampaignActivity
	for rows.Next() {
		var row campaigns.CampaignActivity
		var payload []byte
		if err := rows.Scan(&row.ID, &row.CampaignID, &row.TeamID, &row.AttackID, &row.AttackLogID, &row.ActivityType, &payload, &row.PerformedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &row.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal activity payload: %w", err)
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*campaigns.CampaignData, error) {
	var campaign campaigns.CampaignData
	var objective, attacks []byte
	err := row.Scan(&campaign.ID, &campaign.TeamID, &campaign.Name, &campaign.StartDate,
		&campaign.DurationDays, &objective, &attacks, &campaign.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(objective, &campaign.Objective); err != nil {
		return nil, fmt.Errorf("unmarshal objective: %w", err)
	}
	if err := json.Unmarshal(attacks, &campaign.Attacks); err != nil {
		return nil, fmt.Errorf("unmarshal attacks: %w", err)
	}
	return &campaign, nil
}

func marshalAttacks(attacks campaigns.CampaignAttackRecord) ([]byte, error) {
	if attacks == nil {
		attacks = campaigns.CampaignAttackRecord{}
	}
	data, err := json.Marshal(attacks)
	if err != nil {
		return nil, fmt.Errorf("marshal attacks: %w", err)
	}
	return data, nil
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", id, campaigns.ErrNotFound)
	}
	return nil
}

var _ campaigns.Store = (*Store)(nil)
