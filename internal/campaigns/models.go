package campaigns

import "time"

// ObjectiveGoal identifies what the attack service should try to make a
// target do. Only link-click phishing is supported today.
type ObjectiveGoal string

const GoalClickPhishingLink ObjectiveGoal = "CLICK_PHISHING_LINK"

// AttackStatus is the attack service's per-target state.
type AttackStatus string

const (
	AttackWaitingForData AttackStatus = "WAITING_FOR_DATA"
	AttackOngoing        AttackStatus = "ONGOING"
	AttackFailed         AttackStatus = "FAILED"
	AttackSuccess        AttackStatus = "SUCCESS"
)

// Attack log event types emitted by the attack service. Logs are
// append-only and chronologically ordered within an attack.
const (
	LogEmailSent   = "EMAIL_SENT"
	LogEmailOpened = "EMAIL_OPENED"
	LogLinkClicked = "LINK_CLICKED"
)

// CampaignTarget is one row of a campaign's target list as edited in the
// dashboard. Draft rows may be incomplete; see IsValidTarget.
type CampaignTarget struct {
	Email       string   `json:"email"`
	CalledName  string   `json:"called_name"`
	SocialLinks []string `json:"social_links"`
}

// AttackTarget is the attack service's wire form of a target. Optional
// fields are omitted entirely rather than sent empty; the service rejects
// null/empty optionals.
type AttackTarget struct {
	Email       string   `json:"email"`
	CalledName  string   `json:"called_name,omitempty"`
	SocialLinks []string `json:"social_links,omitempty"`
}

// CampaignObjective correlates a campaign with the attack service's
// objective. The ID is generated once at draft creation and never
// changes; the attack service uses it as an idempotency key.
type CampaignObjective struct {
	ID      string           `json:"id"`
	Goal    ObjectiveGoal    `json:"goal"`
	Targets []CampaignTarget `json:"targets"`
}

// AttackLog is a single typed event within an attack.
type AttackLog struct {
	ID        string         `json:"id"`
	CreatedAt string         `json:"created_at"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

// CampaignAttack is the persisted slice of one target's attack: the
// external attack id, its status, and (after sync) its log trail.
type CampaignAttack struct {
	ID     string       `json:"id"`
	Status AttackStatus `json:"status"`
	Logs   []AttackLog  `json:"logs,omitempty"`
}

// CampaignAttackRecord maps target email to its attack. An empty record
// is what makes a campaign a draft.
type CampaignAttackRecord map[string]CampaignAttack

// CampaignState is the draft/launched discriminator, derived from the
// attacks record at the model boundary. It is never persisted.
type CampaignState string

const (
	StateDraft    CampaignState = "DRAFT"
	StateLaunched CampaignState = "LAUNCHED"
)

// CampaignStatus is the human-facing progress status, a pure function of
// current time and attack state. Never persisted, to avoid staleness.
type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "Draft"
	StatusPreparing CampaignStatus = "Preparing"
	StatusActive    CampaignStatus = "Active"
	StatusDone      CampaignStatus = "Done"
)

// CampaignData is the campaign entity. StartDate is either a date-only
// string ("YYYY-MM-DD", interpreted as UTC midnight) or a full ISO
// timestamp.
type CampaignData struct {
	ID           string               `json:"id"`
	TeamID       string               `json:"team_id"`
	Name         string               `json:"name"`
	StartDate    string               `json:"start_date"`
	DurationDays int                  `json:"duration_days"`
	Objective    CampaignObjective    `json:"objective"`
	Attacks      CampaignAttackRecord `json:"attacks"`
	CreatedAt    time.Time            `json:"created_at"`
}

// Team is the owning team/organization. OrgID correlates the team with
// the external attack and profile services.
type Team struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	OrgID     string   `json:"org_id"`
	Languages []string `json:"languages,omitempty"`
}

// EmailProvider classifies a domain's mail hosting, resolved from DNS.
type EmailProvider string

const (
	ProviderGoogle    EmailProvider = "Google"
	ProviderOffice365 EmailProvider = "Office365"
	ProviderUnknown   EmailProvider = "Unknown"
)

// Domain is a team's email domain and its delegation state.
type Domain struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	TeamID        string        `json:"team_id"`
	EmailProvider EmailProvider `json:"email_provider"`
	IsDelegated   bool          `json:"is_delegated"`
	IsVerified    bool          `json:"is_verified"`
}

// DelegationStatus is the tri-state answer for a domain's delegation.
type DelegationStatus string

const (
	Delegated        DelegationStatus = "DELEGATED"
	DelegatedByOther DelegationStatus = "DELEGATED_BY_OTHER"
	NotDelegated     DelegationStatus = "NOT_DELEGATED"
)

// CampaignActivity is one audit-trail row, created from an attack log
// entry at launch time.
type CampaignActivity struct {
	ID           string         `json:"id"`
	CampaignID   string         `json:"campaign_id"`
	TeamID       string         `json:"team_id"`
	AttackID     string         `json:"attack_id"`
	AttackLogID  string         `json:"attack_log_id"`
	ActivityType string         `json:"activity_type"`
	Payload      map[string]any `json:"payload,omitempty"`
	PerformedAt  string         `json:"performed_at"`
}
