package persona

import (
	"fmt"
	"strings"

	"nexus/internal/mission"
	"nexus/internal/store"
	"nexus/internal/types"
)

// Composer builds the system instruction for one loop run from the
// department profile, the KPI mood, stored credentials, and the active
// mission.
type Composer struct {
	store    *store.Store
	missions *mission.Manager
}

// NewComposer returns a Composer over the store and mission manager.
func NewComposer(s *store.Store, m *mission.Manager) *Composer {
	return &Composer{store: s, missions: m}
}

// Compose renders the system instruction for a department acting on a
// channel. Lookup failures soften to omissions: a persona without a mood
// clause is better than no persona at all.
func (c *Composer) Compose(dept types.Department, channel string) string {
	profile := ProfileFor(dept)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n", profile.Title, profile.Role)

	if rep, err := c.store.GetReputation(dept); err == nil {
		b.WriteString("\n")
		b.WriteString(moodClause(rep))
		b.WriteString("\n")
	}

	if creds, err := c.store.Credentials(channel); err == nil && creds != nil {
		fmt.Fprintf(&b, "\nStored credentials for %s are available: login %q. ", creds.Service, creds.Login)
		b.WriteString("Use the browser_login tool when a site requires them; never print the password.\n")
		if creds.Notes != "" {
			fmt.Fprintf(&b, "Credential notes: %s\n", creds.Notes)
		}
	}

	if ms, err := c.missions.Active(channel); err == nil {
		fmt.Fprintf(&b, "\nAn active mission is in progress:\n%s", mission.Format(ms))
		b.WriteString("Keep your work aligned with the current step and use mission_control to record progress.\n")
	}

	return b.String()
}

// moodClause translates a KPI row into a tone directive.
func moodClause(rep types.Reputation) string {
	switch types.Mood(rep.Score) {
	case types.MoodAggressive:
		return fmt.Sprintf(
			"Your department's evaluation score is %d with a streak of %d successes. "+
				"You are on a roll: act decisively, take initiative, and propose bold next steps.",
			rep.Score, rep.Streak)
	case types.MoodDefensive:
		return fmt.Sprintf(
			"Your department's evaluation score is %d. Recent performance has been poor: "+
				"be careful and conservative, double-check before acting, and prefer small reversible steps.",
			rep.Score)
	default:
		return fmt.Sprintf(
			"Your department's evaluation score is %d. Work steadily and accurately.",
			rep.Score)
	}
}
