// Package shortlist builds the dated, ranked outreach list from scored
// companies.
package shortlist

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/model"
	"github.com/awc-invest/prospect-cli/internal/store"
)

// Eligible reports whether a candidate may appear on a shortlist, and the
// rule that excluded it when not.
func Eligible(c store.Candidate, cooldownMonths int, now time.Time) (bool, string) {
	if c.IsPublicSector {
		return false, "public sector"
	}
	if c.ExcludedReason != "" {
		return false, "manually excluded: " + c.ExcludedReason
	}

	switch c.OutreachStatus {
	case model.OutreachStatusActive, model.OutreachStatusDeclined, model.OutreachStatusExcluded:
		return false, "outreach status " + c.OutreachStatus
	}

	if c.LastContactAt != nil && cooldownMonths > 0 {
		if c.LastContactAt.After(now.AddDate(0, -cooldownMonths, 0)) {
			return false, fmt.Sprintf("contacted within %d months", cooldownMonths)
		}
	}

	return true, ""
}

// Rank orders candidates by priority descending with orgnr ascending as the
// tie-break, and keeps the top size. The tie-break makes regeneration from
// identical inputs byte-for-byte reproducible.
func Rank(cands []store.Candidate, size int) []store.Candidate {
	ranked := make([]store.Candidate, len(cands))
	copy(ranked, cands)

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		return ranked[i].Orgnr < ranked[j].Orgnr
	})

	if size > 0 && len(ranked) > size {
		ranked = ranked[:size]
	}
	return ranked
}

// Generator produces and persists shortlists.
type Generator struct {
	Store *store.Store

	Size           int
	CooldownMonths int
}

// Generate builds the shortlist for one pick date from the scores of a
// fiscal year and replaces that date's picks in a single transaction. Picks
// for other dates are never touched.
func (g *Generator) Generate(ctx context.Context, fiscalYear int, pickDate time.Time) ([]model.ShortlistEntry, error) {
	log := zap.L().With(zap.String("component", "shortlist"))

	cands, err := g.Store.ShortlistCandidates(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	eligible := make([]store.Candidate, 0, len(cands))
	skipped := 0
	for _, c := range cands {
		ok, reason := Eligible(c, g.CooldownMonths, now)
		if !ok {
			log.Debug("candidate ineligible",
				zap.String("orgnr", c.Orgnr), zap.String("reason", reason))
			skipped++
			continue
		}
		eligible = append(eligible, c)
	}

	ranked := Rank(eligible, g.Size)

	entries := make([]model.ShortlistEntry, 0, len(ranked))
	for i, c := range ranked {
		entries = append(entries, model.ShortlistEntry{
			PickDate:      pickDate,
			Rank:          i + 1,
			Orgnr:         c.Orgnr,
			ReasonSummary: reasonSummary(c),
			ScoreSnapshot: c.Priority,
		})
	}

	if err := g.Store.ReplaceShortlist(ctx, pickDate, entries); err != nil {
		return nil, err
	}

	log.Info("shortlist generated",
		zap.Time("pick_date", pickDate),
		zap.Int("picks", len(entries)),
		zap.Int("candidates", len(cands)),
		zap.Int("ineligible", skipped))
	return entries, nil
}

// reasonSummary renders the frozen one-line explanation stored with a pick.
func reasonSummary(c store.Candidate) string {
	tags := c.Tags
	// The tag column accumulates history; the last segment is current.
	if idx := strings.LastIndex(tags, " | "); idx >= 0 {
		tags = tags[idx+3:]
	}
	if tags == "" {
		return fmt.Sprintf("priority %.1f", c.Priority)
	}
	return fmt.Sprintf("priority %.1f; %s", c.Priority, tags)
}
