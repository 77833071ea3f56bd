// Package profileservice is the HTTP client for the account/profile
// service that owns organization records.
package profileservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Organization mirrors the profile service's organization payload. Only
// the fields the dashboard updates are carried.
type Organization struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Domains   []string `json:"domains,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// Client calls the profile service. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UpdateOrganization pushes the organization record upstream. Callers
// treat failures as log-only: the dashboard keeps its own copy.
func (c *Client) UpdateOrganization(ctx context.Context, org Organization) error {
	data, err := json.Marshal(org)
	if err != nil {
		return fmt.Errorf("marshal organization: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/v1/organizations", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("profile service returned status %d: %s", resp.StatusCode, body)
	}
	return nil
}
