package campaigns

// SegmentStats are the funnel counts derived from a campaign's attacks.
// Invariant: Breached <= Opened <= Sent <= Ready <= Total.
type SegmentStats struct {
	Total    int `json:"total"`
	Ready    int `json:"ready"`
	Sent     int `json:"sent"`
	Opened   int `json:"opened"`
	Breached int `json:"breached"`
}

// SegmentType names one funnel stage.
type SegmentType string

const (
	SegmentTotal    SegmentType = "total"
	SegmentReady    SegmentType = "ready"
	SegmentSent     SegmentType = "sent"
	SegmentOpened   SegmentType = "opened"
	SegmentBreached SegmentType = "breached"
)

// HasLogOfType reports whether the attack's log trail contains any of the
// given log types.
func HasLogOfType(attack CampaignAttack, logTypes ...string) bool {
	for _, log := range attack.Logs {
		for _, logType := range logTypes {
			if log.Type == logType {
				return true
			}
		}
	}
	return false
}

// CalculateSegments rolls attacks up into funnel counts. The highest
// event reached implies all lower stages: EMAIL_OPENED does not register
// when the target runs an ad-blocker, but a LINK_CLICKED log means the
// email was necessarily sent and opened. The priority order must not be
// changed.
func CalculateSegments(attacks []CampaignAttack) SegmentStats {
	stats := SegmentStats{Total: len(attacks)}

	for _, attack := range attacks {
		switch {
		case HasLogOfType(attack, LogLinkClicked):
			stats.Ready++
			stats.Sent++
			stats.Opened++
			stats.Breached++
		case HasLogOfType(attack, LogEmailOpened):
			stats.Ready++
			stats.Sent++
			stats.Opened++
		case HasLogOfType(attack, LogEmailSent):
			stats.Ready++
			stats.Sent++
		case attack.Status != AttackWaitingForData:
			stats.Ready++
		}
	}

	return stats
}

// requiredLogTypes is the membership-test form of the funnel roll-up: a
// target belongs to a segment if any of these log types is present.
var requiredLogTypes = map[SegmentType][]string{
	SegmentBreached: {LogLinkClicked},
	SegmentOpened:   {LogLinkClicked, LogEmailOpened},
	SegmentSent:     {LogLinkClicked, LogEmailOpened, LogEmailSent},
	SegmentReady:    {},
	SegmentTotal:    {},
}

// FilterBySegment returns a predicate selecting the targets that belong
// to a funnel segment. An empty segment or "total" selects everything.
func FilterBySegment(segment SegmentType, attacks CampaignAttackRecord) func(CampaignTarget) bool {
	if segment == "" || segment == SegmentTotal {
		return func(CampaignTarget) bool { return true }
	}
	requires := requiredLogTypes[segment]

	return func(target CampaignTarget) bool {
		attack, ok := attacks[target.Email]
		if !ok {
			return false
		}
		if segment == SegmentReady {
			return attack.Status != AttackWaitingForData
		}
		return HasLogOfType(attack, requires...)
	}
}
