package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baitlabs/phishflow/backend/internal/campaigns"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestCreateCampaign(t *testing.T) {
	store, mock := newMock(t)

	campaign := campaigns.NewDraft("team-1")
	campaign.ID = uuid.NewString()
	mock.ExpectExec(`INSERT INTO campaigns`).
		WithArgs(campaign.ID, "team-1", campaign.Name, campaign.StartDate,
			campaign.DurationDays, sqlmock.AnyArg(), sqlmock.AnyArg(), campaign.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.CreateCampaign(context.Background(), campaign))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCampaignDuplicate(t *testing.T) {
	store, mock := newMock(t)

	campaign := campaigns.NewDraft("team-1")
	mock.ExpectExec(`INSERT INTO campaigns`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateCampaign(context.Background(), campaign)
	assert.ErrorIs(t, err, campaigns.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCampaignScansJSONColumns(t *testing.T) {
	store, mock := newMock(t)

	objective := campaigns.CampaignObjective{
		ID:   "obj-1",
		Goal: campaigns.GoalClickPhishingLink,
		Targets: []campaigns.CampaignTarget{
			{Email: "a@b.co", CalledName: "A"},
		},
	}
	attacks := campaigns.CampaignAttackRecord{
		"a@b.co": {ID: "atk-1", Status: campaigns.AttackOngoing},
	}
	objectiveJSON, err := json.Marshal(objective)
	require.NoError(t, err)
	attacksJSON, err := json.Marshal(attacks)
	require.NoError(t, err)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM campaigns WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "team_id", "name", "start_date", "duration_days", "objective", "attacks", "created_at",
		}).AddRow("c1", "team-1", "Drill", "2024-01-01", 7, objectiveJSON, attacksJSON, created))

	campaign, err := store.GetCampaign(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, objective, campaign.Objective)
	assert.Equal(t, campaigns.AttackOngoing, campaign.Attacks["a@b.co"].Status)
	assert.False(t, campaign.IsDraft())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCampaignNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`SELECT .* FROM campaigns WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetCampaign(context.Background(), "missing")
	assert.ErrorIs(t, err, campaigns.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAttacks(t *testing.T) {
	store, mock := newMock(t)

	attacks := campaigns.CampaignAttackRecord{
		"a@b.co": {ID: "atk-1", Status: campaigns.AttackSuccess},
	}
	mock.ExpectExec(`UPDATE campaigns SET attacks = \$2 WHERE id = \$1`).
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.ReplaceAttacks(context.Background(), "c1", attacks))

	mock.ExpectExec(`UPDATE campaigns SET attacks = \$2 WHERE id = \$1`).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.ReplaceAttacks(context.Background(), "missing", attacks)
	assert.ErrorIs(t, err, campaigns.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTeam(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO teams .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("team-1", "Acme", "org-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	team := &campaigns.Team{ID: "team-1", Name: "Acme", OrgID: "org-1", Languages: []string{"en", "de"}}
	require.NoError(t, store.UpsertTeam(context.Background(), team))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDomainsByName(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`SELECT .* FROM domains WHERE lower\(name\) = lower\(\$1\)`).
		WithArgs("corp.example").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "team_id", "email_provider", "is_delegated", "is_verified",
		}).
			AddRow("d1", "corp.example", "team-1", "Unknown", false, false).
			AddRow("d2", "Corp.Example", "team-2", "Google", true, true))

	domains, err := store.ListDomainsByName(context.Background(), "corp.example")
	require.NoError(t, err)
	require.Len(t, domains, 2)
	assert.True(t, domains[1].IsDelegated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendActivityAssignsIDs(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO campaign_activity`).
		WithArgs(sqlmock.AnyArg(), "c1", "team-1", "atk-1", "log-1",
			campaigns.LogEmailSent, sqlmock.AnyArg(), "2024-01-01T10:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows := []campaigns.CampaignActivity{{
		CampaignID:   "c1",
		TeamID:       "team-1",
		AttackID:     "atk-1",
		AttackLogID:  "log-1",
		ActivityType: campaigns.LogEmailSent,
		PerformedAt:  "2024-01-01T10:00:00Z",
	}}
	require.NoError(t, store.AppendActivity(context.Background(), rows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCampaignRemovesActivityFirst(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(`DELETE FROM campaign_activity WHERE campaign_id = \$1`).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM campaigns WHERE id = \$1`).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.DeleteCampaign(context.Background(), "c1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
