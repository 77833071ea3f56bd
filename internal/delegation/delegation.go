// Package delegation answers whether a team's email domain is delegated
// to the platform and drives the verification handshake with the attack
// service.
package delegation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/baitlabs/phishflow/backend/internal/campaigns"
	"github.com/baitlabs/phishflow/backend/internal/logx"
	"github.com/baitlabs/phishflow/backend/internal/metrics"
)

var (
	// ErrNotOwned means the domain belongs to a different team. Unlike
	// campaigns this surfaces as 403; domain names are not secrets.
	ErrNotOwned = errors.New("domain not owned by team")
	// ErrNoTeam means the caller has no active team context.
	ErrNoTeam = errors.New("no active team")
	// ErrEmailMismatch means the verifying user's email is not on the
	// domain being verified.
	ErrEmailMismatch = errors.New("user email does not belong to domain")
	// ErrClaimedByOther blocks verification of a domain another team
	// already delegated.
	ErrClaimedByOther = errors.New("domain already delegated by another team")
)

// Checker is the delegation probe the verify flow calls out to.
type Checker interface {
	CheckDomainDelegation(ctx context.Context, email string) (bool, error)
}

// Service reads and updates domain delegation state.
type Service struct {
	store   campaigns.Store
	checker Checker
}

func New(store campaigns.Store, checker Checker) *Service {
	return &Service{store: store, checker: checker}
}

// Status derives the tri-state delegation answer for a domain row.
// DELEGATED_BY_OTHER wins over NOT_DELEGATED: if any other row with the
// same name is delegated, this team cannot claim it.
func (s *Service) Status(ctx context.Context, domain *campaigns.Domain) (campaigns.DelegationStatus, error) {
	if domain.IsDelegated {
		return campaigns.Delegated, nil
	}

	rows, err := s.store.ListDomainsByName(ctx, domain.Name)
	if err != nil {
		return "", fmt.Errorf("list domains by name: %w", err)
	}
	for _, row := range rows {
		if row.ID != domain.ID && row.IsDelegated {
			return campaigns.DelegatedByOther, nil
		}
	}
	return campaigns.NotDelegated, nil
}

// Verify runs the delegation check for a domain and persists the
// outcome. Preconditions run in order: team context, ownership, the
// user's email must be on the domain, and the domain must not already
// be claimed by another team.
func (s *Service) Verify(ctx context.Context, teamID, userEmail, domainID string) (*campaigns.Domain, error) {
	if teamID == "" {
		return nil, ErrNoTeam
	}

	domain, err := s.store.GetDomain(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if domain.TeamID != teamID {
		return nil, ErrNotOwned
	}
	if !strings.EqualFold(campaigns.EmailDomain(userEmail), campaigns.NormalizeDomain(domain.Name)) {
		return nil, ErrEmailMismatch
	}

	status, err := s.Status(ctx, domain)
	if err != nil {
		return nil, err
	}
	if status == campaigns.DelegatedByOther {
		return nil, ErrClaimedByOther
	}

	enabled, err := s.checker.CheckDomainDelegation(ctx, userEmail)
	if err != nil {
		metrics.DelegationChecksTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("check domain delegation: %w", err)
	}

	domain.IsDelegated = enabled
	domain.IsVerified = true
	if err := s.store.UpdateDomain(ctx, domain); err != nil {
		return nil, fmt.Errorf("persist domain: %w", err)
	}

	outcome := "not_delegated"
	if enabled {
		outcome = "delegated"
	}
	metrics.DelegationChecksTotal.WithLabelValues(outcome).Inc()
	logx.L().Infow("Delegation: domain verified", "domain", domain.Name, "team", teamID, "delegated", enabled)
	return domain, nil
}
