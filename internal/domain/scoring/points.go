// Package scoring folds resolved race results into the cumulative team
// ledger and keeps the ledger invariants: one entry per first letter after
// the merge pass and at most one current-player entry.
package scoring

import (
	"github.com/eito54/grosoq/internal/domain/identity"
	"github.com/eito54/grosoq/internal/domain/model"
)

// racePoints maps finishing position (1-based) to points.
var racePoints = [model.MaxBatchSize]int{15, 12, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}

// RacePoints returns the points for a finishing rank. Missing or out of
// range ranks score nothing.
func RacePoints(rank *int) int {
	if rank == nil || *rank < 1 || *rank > len(racePoints) {
		return 0
	}
	return racePoints[*rank-1]
}

// teamOf is the ledger key of a result row: its resolved team, or the
// player name when no team was assigned.
func teamOf(r model.RawPlayerResult) string {
	if t := identity.Normalize(r.Team); t != "" {
		return t
	}
	return identity.Normalize(r.Name)
}

// ApplyRace adds race points for every result to a copy of ledger.
// AddedScore holds only this batch's points; teams seen for the first
// time are appended in batch order.
func ApplyRace(ledger model.Ledger, results []model.RawPlayerResult) model.Ledger {
	out := ledger.Clone()
	for i := range out {
		out[i].AddedScore = 0
	}
	for _, r := range results {
		team := teamOf(r)
		if team == "" {
			continue
		}
		pts := RacePoints(r.Rank)
		idx := out.Index(team)
		if idx < 0 {
			out = append(out, model.LedgerEntry{Name: team})
			idx = len(out) - 1
		}
		out[idx].Score += pts
		out[idx].AddedScore += pts
		out[idx].IsCurrentPlayer = out[idx].IsCurrentPlayer || r.IsCurrentPlayer
	}
	return out
}

// ApplyTotals rebuilds the score of every reported team from the overlay
// totals in results. Rows of the same team are summed. Teams not reported
// keep their entry untouched apart from AddedScore, which is zeroed.
func ApplyTotals(ledger model.Ledger, results []model.RawPlayerResult) model.Ledger {
	out := ledger.Clone()
	for i := range out {
		out[i].AddedScore = 0
	}
	reset := make(map[string]bool)
	for _, r := range results {
		team := teamOf(r)
		if team == "" {
			continue
		}
		idx := out.Index(team)
		if idx < 0 {
			out = append(out, model.LedgerEntry{Name: team})
			idx = len(out) - 1
		}
		if !reset[team] {
			reset[team] = true
			out[idx].Score = 0
			out[idx].IsCurrentPlayer = false
		}
		out[idx].Score += r.Total()
		out[idx].IsCurrentPlayer = out[idx].IsCurrentPlayer || r.IsCurrentPlayer
	}
	return out
}
