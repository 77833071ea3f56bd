package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baitlabs/phishflow/backend/internal/attackservice"
	"github.com/baitlabs/phishflow/backend/internal/campaigns"
	"github.com/baitlabs/phishflow/backend/internal/memorystore"
)

type fakeAttackClient struct {
	mu sync.Mutex

	createCalls  int
	createErr    error
	createResult *attackservice.ObjectiveResult
	lastCreated  attackservice.Objective

	fetchCalls   int
	fetchErr     error
	fetchResult  []attackservice.Attack
	fetchBlocked chan struct{}
	fetchStarted chan struct{}
	startOnce    sync.Once
}

func (f *fakeAttackClient) CreateObjective(ctx context.Context, objective attackservice.Objective) (*attackservice.ObjectiveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastCreated = objective
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createResult != nil {
		return f.createResult, nil
	}
	result := &attackservice.ObjectiveResult{}
	for i, target := range objective.Targets {
		result.Attacks = append(result.Attacks, attackservice.Attack{
			ID:        "atk-" + string(rune('1'+i)),
			Status:    campaigns.AttackWaitingForData,
			Target:    target,
			Objective: objective.ID,
		})
	}
	return result, nil
}

func (f *fakeAttackClient) FetchAttacks(ctx context.Context, objectiveID string) ([]attackservice.Attack, error) {
	if f.fetchStarted != nil {
		f.startOnce.Do(func() { close(f.fetchStarted) })
	}
	if f.fetchBlocked != nil {
		<-f.fetchBlocked
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	return f.fetchResult, f.fetchErr
}

func newLaunchFixture(t *testing.T) (*Service, *memorystore.Store, *fakeAttackClient, *campaigns.CampaignData) {
	t.Helper()
	ctx := context.Background()
	store := memorystore.New()
	client := &fakeAttackClient{}
	service := New(store, client)

	require.NoError(t, store.UpsertTeam(ctx, &campaigns.Team{ID: "team-1", Name: "Acme", OrgID: "org-1"}))
	require.NoError(t, store.CreateDomain(ctx, &campaigns.Domain{
		Name: "corp.example", TeamID: "team-1", IsDelegated: true,
	}))

	campaign := campaigns.NewDraft("team-1")
	campaign.Objective.Targets = []campaigns.CampaignTarget{
		{Email: "alice@corp.example", CalledName: "Alice"},
		{Email: "bob@corp.example", CalledName: "Bob"},
		{Email: "", CalledName: ""},
	}
	require.NoError(t, store.CreateCampaign(ctx, campaign))
	return service, store, client, campaign
}

func TestLaunch(t *testing.T) {
	ctx := context.Background()
	service, store, client, campaign := newLaunchFixture(t)

	launched, err := service.Launch(ctx, "team-1", campaign.ID)
	require.NoError(t, err)
	assert.False(t, launched.IsDraft())
	assert.Len(t, launched.Attacks, 2)

	// Incomplete rows are dropped and the valid subset is frozen.
	assert.Len(t, launched.Objective.Targets, 2)

	assert.Equal(t, campaign.Objective.ID, client.lastCreated.ID)
	assert.Equal(t, "org-1", client.lastCreated.OrgID)
	assert.Equal(t, campaigns.GoalClickPhishingLink, client.lastCreated.Goal)
	require.Len(t, client.lastCreated.Targets, 2)

	persisted, err := store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.False(t, persisted.IsDraft())
}

func TestLaunchPreconditionOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("ownership before validity", func(t *testing.T) {
		service, store, client, _ := newLaunchFixture(t)
		foreign := campaigns.NewDraft("team-2")
		foreign.Name = ""
		require.NoError(t, store.CreateCampaign(ctx, foreign))

		_, err := service.Launch(ctx, "team-1", foreign.ID)
		assert.ErrorIs(t, err, ErrNotOwned)
		assert.Zero(t, client.createCalls)
	})

	t.Run("validity before draft check", func(t *testing.T) {
		service, store, client, campaign := newLaunchFixture(t)
		campaign.Name = ""
		campaign.Attacks = campaigns.CampaignAttackRecord{"x@y.com": {ID: "atk"}}
		require.NoError(t, store.UpdateCampaign(ctx, campaign))

		_, err := service.Launch(ctx, "team-1", campaign.ID)
		assert.ErrorIs(t, err, ErrInvalidData)
		assert.Zero(t, client.createCalls)
	})

	t.Run("already launched", func(t *testing.T) {
		service, _, client, campaign := newLaunchFixture(t)
		_, err := service.Launch(ctx, "team-1", campaign.ID)
		require.NoError(t, err)

		_, err = service.Launch(ctx, "team-1", campaign.ID)
		assert.ErrorIs(t, err, ErrAlreadyLaunched)
		assert.Equal(t, 1, client.createCalls, "relaunch must not call the attack service again")
	})

	t.Run("missing campaign", func(t *testing.T) {
		service, _, _, _ := newLaunchFixture(t)
		_, err := service.Launch(ctx, "team-1", "missing")
		assert.ErrorIs(t, err, campaigns.ErrNotFound)
	})
}

func TestLaunchUndelegatedDomains(t *testing.T) {
	ctx := context.Background()
	service, store, client, campaign := newLaunchFixture(t)

	campaign.Objective.Targets = append(campaign.Objective.Targets,
		campaigns.CampaignTarget{Email: "eve@elsewhere.example", CalledName: "Eve"})
	require.NoError(t, store.UpdateCampaign(ctx, campaign))

	_, err := service.Launch(ctx, "team-1", campaign.ID)
	var undelegated *UndelegatedError
	require.ErrorAs(t, err, &undelegated)
	assert.Equal(t, []string{"elsewhere.example"}, undelegated.Domains)
	assert.Contains(t, undelegated.Error(), "elsewhere.example")
	assert.Zero(t, client.createCalls, "delegation failure must not reach the attack service")

	persisted, err := store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.True(t, persisted.IsDraft())
}

func TestLaunchUpstreamFailureStaysDraft(t *testing.T) {
	ctx := context.Background()
	service, store, client, campaign := newLaunchFixture(t)
	client.createErr = &attackservice.APIError{StatusCode: 502, Body: []byte("bad gateway")}

	_, err := service.Launch(ctx, "team-1", campaign.ID)
	require.Error(t, err)

	var apiErr *attackservice.APIError
	assert.True(t, errors.As(err, &apiErr), "upstream error must stay unwrappable")

	persisted, err := store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.True(t, persisted.IsDraft())
}

func TestLaunchRecordsActivityFromReturnedLogs(t *testing.T) {
	ctx := context.Background()
	service, store, client, campaign := newLaunchFixture(t)
	client.createResult = &attackservice.ObjectiveResult{Attacks: []attackservice.Attack{
		{
			ID:     "atk-1",
			Status: campaigns.AttackOngoing,
			Target: campaigns.AttackTarget{Email: "alice@corp.example"},
			Logs: []campaigns.AttackLog{
				{ID: "log-1", Type: campaigns.LogEmailSent, CreatedAt: "2024-01-01T10:00:00Z"},
			},
		},
	}}

	_, err := service.Launch(ctx, "team-1", campaign.ID)
	require.NoError(t, err)

	activity, err := store.ListActivity(ctx, campaign.ID)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, "atk-1", activity[0].AttackID)
	assert.Equal(t, "log-1", activity[0].AttackLogID)
	assert.Equal(t, campaigns.LogEmailSent, activity[0].ActivityType)
}

func launchedFixture(t *testing.T) (*Service, *memorystore.Store, *fakeAttackClient, *campaigns.CampaignData) {
	t.Helper()
	service, store, client, campaign := newLaunchFixture(t)
	launched, err := service.Launch(context.Background(), "team-1", campaign.ID)
	require.NoError(t, err)
	return service, store, client, launched
}

func TestSyncAttacksReplacesOnChange(t *testing.T) {
	ctx := context.Background()
	service, store, client, campaign := launchedFixture(t)

	client.fetchResult = []attackservice.Attack{
		{
			ID:     campaign.Attacks["alice@corp.example"].ID,
			Status: campaigns.AttackOngoing,
			Target: campaigns.AttackTarget{Email: "alice@corp.example"},
			Logs:   []campaigns.AttackLog{{ID: "log-1", Type: campaigns.LogEmailSent}},
		},
		{
			ID:     campaign.Attacks["bob@corp.example"].ID,
			Status: campaigns.AttackWaitingForData,
			Target: campaigns.AttackTarget{Email: "bob@corp.example"},
		},
	}

	record, updated, err := service.SyncAttacks(ctx, "team-1", campaign.ID)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, campaigns.AttackOngoing, record["alice@corp.example"].Status)
	assert.Len(t, record["alice@corp.example"].Logs, 1)

	persisted, err := store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, campaigns.AttackOngoing, persisted.Attacks["alice@corp.example"].Status)

	// Same response again is a no-op.
	_, updated, err = service.SyncAttacks(ctx, "team-1", campaign.ID)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestSyncAttacksFailureKeepsStoredRecord(t *testing.T) {
	ctx := context.Background()
	service, store, client, campaign := launchedFixture(t)
	client.fetchErr = errors.New("upstream down")

	_, _, err := service.SyncAttacks(ctx, "team-1", campaign.ID)
	require.Error(t, err)

	persisted, err := store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.Attacks, persisted.Attacks)
}

func TestSyncAttacksDraftIsNoop(t *testing.T) {
	ctx := context.Background()
	service, _, client, campaign := newLaunchFixture(t)

	_, updated, err := service.SyncAttacks(ctx, "team-1", campaign.ID)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Zero(t, client.fetchCalls)
}

func TestSyncAttacksInFlightGuard(t *testing.T) {
	ctx := context.Background()
	service, _, client, campaign := launchedFixture(t)

	client.fetchBlocked = make(chan struct{})
	client.fetchStarted = make(chan struct{})
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		service.SyncAttacks(ctx, "team-1", campaign.ID)
	}()

	// Wait until the first sync is parked inside the fetch, then probe.
	<-client.fetchStarted
	_, _, err := service.SyncAttacks(ctx, "team-1", campaign.ID)
	assert.ErrorIs(t, err, ErrSyncInFlight)

	close(client.fetchBlocked)
	<-firstDone

	// Guard releases once the sync finishes.
	client.fetchBlocked = nil
	_, _, err = service.SyncAttacks(ctx, "team-1", campaign.ID)
	require.NotErrorIs(t, err, ErrSyncInFlight)
}

func TestPollStopsOnCancel(t *testing.T) {
	service, _, client, campaign := launchedFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		service.Poll(ctx, "team-1", campaign.ID, 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.fetchCalls > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll did not stop after cancel")
	}
}
