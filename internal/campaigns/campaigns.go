package campaigns

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// The shortest possible valid example is "a@b.cd".
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)

// IsEmail reports whether text is a well-formed email address.
func IsEmail(text string) bool {
	return emailPattern.MatchString(text)
}

// NormalizeDomain trims and lower-cases a domain name.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// EmailDomain returns the normalized domain part of an email address.
// Incomplete draft rows yield an empty string for an empty email.
func EmailDomain(email string) string {
	parts := strings.Split(email, "@")
	return NormalizeDomain(parts[len(parts)-1])
}

// IsValidTarget reports whether a target row is complete enough to be
// sent to the attack service.
func IsValidTarget(target CampaignTarget) bool {
	return len(target.CalledName) > 0 && IsEmail(target.Email)
}

// AsAttackTarget converts a target to the attack service's wire form,
// pruning empty optional fields.
func AsAttackTarget(target CampaignTarget) AttackTarget {
	links := make([]string, 0, len(target.SocialLinks))
	for _, link := range target.SocialLinks {
		if link != "" {
			links = append(links, link)
		}
	}
	if len(links) == 0 {
		links = nil
	}
	return AttackTarget{
		Email:       target.Email,
		CalledName:  target.CalledName,
		SocialLinks: links,
	}
}

// IsDraft reports whether the campaign has not been launched. The attacks
// record is the sole discriminator; it must be computed, never cached,
// because campaigns are read from multiple sources.
func (c *CampaignData) IsDraft() bool {
	return len(c.Attacks) == 0
}

// State is the explicit draft/launched variant of IsDraft.
func (c *CampaignData) State() CampaignState {
	if c.IsDraft() {
		return StateDraft
	}
	return StateLaunched
}

// CanLaunch reports whether the campaign is a draft with at least one
// valid target.
func (c *CampaignData) CanLaunch() bool {
	if !c.IsDraft() {
		return false
	}
	for _, target := range c.Objective.Targets {
		if IsValidTarget(target) {
			return true
		}
	}
	return false
}

// HasValidData is the structural gate applied before trusting a stored
// record as campaign data. Records failing it are excluded from lists and
// hard-fail launch/sync, never silently coerced.
func (c *CampaignData) HasValidData() bool {
	if c.Name == "" || c.StartDate == "" {
		return false
	}
	if c.DurationDays < 1 || c.DurationDays > 365 {
		return false
	}
	if _, err := uuid.Parse(c.Objective.ID); err != nil {
		return false
	}
	return c.Objective.Targets != nil
}

// IsPreparing reports whether any attack is still waiting for profile
// data.
func (c *CampaignData) IsPreparing() bool {
	for _, attack := range c.Attacks {
		if attack.Status == AttackWaitingForData {
			return true
		}
	}
	return false
}

const dateOnlyLayout = "2006-01-02"

// StartTime parses the campaign start date. Date-only strings are
// interpreted as UTC midnight so a bare calendar date does not drift
// across timezones.
func (c *CampaignData) StartTime() (time.Time, error) {
	if len(c.StartDate) == len(dateOnlyLayout) {
		return time.Parse(dateOnlyLayout, c.StartDate)
	}
	return time.Parse(time.RFC3339, c.StartDate)
}

// EndTime is the start time plus the campaign duration.
func (c *CampaignData) EndTime() (time.Time, error) {
	start, err := c.StartTime()
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, 0, c.DurationDays), nil
}

// Status derives the human-facing campaign status at the given instant.
// An unparseable start date reports Done rather than guessing.
func (c *CampaignData) Status(now time.Time) CampaignStatus {
	if c.IsDraft() {
		return StatusDraft
	}
	end, err := c.EndTime()
	if err != nil || !now.Before(end) {
		return StatusDone
	}
	if c.IsPreparing() {
		return StatusPreparing
	}
	return StatusActive
}

// SortCampaigns orders a campaign list for display: drafts before
// launched campaigns, then most recently created first within each group.
// The order is a stable total order.
func SortCampaigns(list []*CampaignData) {
	sort.SliceStable(list, func(i, j int) bool {
		left, right := list[i], list[j]
		if left.IsDraft() != right.IsDraft() {
			return left.IsDraft()
		}
		return left.CreatedAt.After(right.CreatedAt)
	})
}

// DidAttacksUpdate reports whether the candidate record differs from the
// current one: a new email key, a status change, or a log-count change.
// It is deliberately not a deep comparison; logs are append-only, so a
// count check is sufficient to catch new events.
func DidAttacksUpdate(curr, next CampaignAttackRecord) bool {
	for email, updated := range next {
		original, ok := curr[email]
		if !ok {
			return true
		}
		if original.Status != updated.Status {
			return true
		}
		if len(original.Logs) != len(updated.Logs) {
			return true
		}
	}
	return false
}

// ValidationResult is the outcome of the pre-launch delegation check.
type ValidationResult struct {
	OK                 bool     `json:"ok"`
	UndelegatedDomains []string `json:"undelegated_domains"`
}

// ValidateCampaign checks that every target email domain has been
// delegated. Empty domains from incomplete draft rows are ignored. The
// undelegated list is sorted for deterministic display.
func ValidateCampaign(c *CampaignData, delegatedDomains []string) ValidationResult {
	delegated := make(map[string]struct{}, len(delegatedDomains))
	for _, name := range delegatedDomains {
		delegated[NormalizeDomain(name)] = struct{}{}
	}

	seen := make(map[string]struct{})
	var undelegated []string
	for _, target := range c.Objective.Targets {
		domain := EmailDomain(target.Email)
		if domain == "" {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		if _, ok := delegated[domain]; !ok {
			undelegated = append(undelegated, domain)
		}
	}
	sort.Strings(undelegated)

	return ValidationResult{OK: len(undelegated) == 0, UndelegatedDomains: undelegated}
}

// NewDraft creates a fresh campaign draft for a team. The objective ID is
// generated here, once, and correlates the campaign with the attack
// service for its whole life.
func NewDraft(teamID string) *CampaignData {
	return &CampaignData{
		TeamID:       teamID,
		Name:         "New campaign",
		StartDate:    time.Now().UTC().Format(dateOnlyLayout),
		DurationDays: 7,
		Attacks:      CampaignAttackRecord{},
		Objective: CampaignObjective{
			ID:      uuid.NewString(),
			Goal:    GoalClickPhishingLink,
			Targets: []CampaignTarget{},
		},
	}
}
