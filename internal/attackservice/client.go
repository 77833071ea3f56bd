// Package attackservice is the HTTP client for the external
// attack-orchestration service. The dashboard only ever talks to it
// through the three operations below, authenticated with a static API
// key.
package attackservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/baitlabs/phishflow/backend/internal/campaigns"
)

// Objective is the attack service's wire form of a campaign goal. The ID
// is the campaign's objective UUID, reused as the service-side
// idempotency key.
type Objective struct {
	ID        string                   `json:"id"`
	Goal      campaigns.ObjectiveGoal  `json:"goal"`
	Targets   []campaigns.AttackTarget `json:"targets"`
	OrgID     string                   `json:"org_id"`
	BeginsAt  string                   `json:"begins_at"`
	ExpiresAt string                   `json:"expires_at,omitempty"`
}

// Attack is one target's attack as returned by the service.
type Attack struct {
	ID        string                 `json:"id"`
	CreatedAt string                 `json:"created_at"`
	Target    campaigns.AttackTarget `json:"target"`
	Logs      []campaigns.AttackLog  `json:"logs,omitempty"`
	Status    campaigns.AttackStatus `json:"status"`
	Objective string                 `json:"objective"`
}

// ObjectiveResult is the create-objective response.
type ObjectiveResult struct {
	Attacks []Attack `json:"attacks"`
}

type delegationResult struct {
	Enabled bool `json:"enabled"`
}

// APIError carries a non-2xx response verbatim so callers can propagate
// the upstream body to the user.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("attack service returned status %d: %s", e.StatusCode, e.Body)
}

// Client calls the attack service. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an attack service client. A zero timeout defaults to
// 30 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateObjective registers the objective and returns the attacks the
// service created for it, one per accepted target.
func (c *Client) CreateObjective(ctx context.Context, objective Objective) (*ObjectiveResult, error) {
	var result ObjectiveResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/objectives", objective, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchAttacks retrieves the current attack list for an objective,
// including each attack's log trail.
func (c *Client) FetchAttacks(ctx context.Context, objectiveID string) ([]Attack, error) {
	var attacks []Attack
	path := "/api/v1/objectives/" + objectiveID + "/attacks"
	if err := c.do(ctx, http.MethodGet, path, nil, &attacks); err != nil {
		return nil, err
	}
	return attacks, nil
}

// CheckDomainDelegation asks the service whether mail delegation is
// enabled for the given admin email. The check is DNS- and send-based on
// the service side.
func (c *Client) CheckDomainDelegation(ctx context.Context, email string) (bool, error) {
	body := map[string]string{"email": email}
	var result delegationResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/checks/domain-delegation-enabled", body, &result); err != nil {
		return false, err
	}
	return result.Enabled, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: respBody}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
