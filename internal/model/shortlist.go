package model

import "time"

// ShortlistEntry is one row of the dated, ranked outreach shortlist.
// The score is frozen at generation time; later recomputation never alters
// an already-written pick.
type ShortlistEntry struct {
	PickDate      time.Time `json:"pick_date"`
	Rank          int       `json:"rank"`
	Orgnr         string    `json:"orgnr"`
	ReasonSummary string    `json:"reason_summary,omitempty"`
	ScoreSnapshot float64   `json:"total_score_snapshot"`
}

// Outreach tracks contact state per company; last_contact_at feeds the
// shortlist cooldown rule.
type Outreach struct {
	Orgnr         string     `json:"orgnr"`
	Owner         string     `json:"owner,omitempty"`
	Status        string     `json:"status"`
	LastContactAt *time.Time `json:"last_contact_at,omitempty"`
	NextStepAt    *time.Time `json:"next_step_at,omitempty"`
	Note          string     `json:"note,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Outreach statuses that make a company ineligible for re-surfacing
// regardless of the cooldown window.
const (
	OutreachStatusNew      = "new"
	OutreachStatusActive   = "active"
	OutreachStatusDeclined = "declined"
	OutreachStatusExcluded = "excluded"
)
