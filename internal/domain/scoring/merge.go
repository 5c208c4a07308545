package scoring

import (
	"github.com/eito54/grosoq/internal/domain/identity"
	"github.com/eito54/grosoq/internal/domain/model"
)

// MergeByInitial folds entries sharing an upper-cased first letter into a
// single entry named after the highest-scoring member (the earlier member
// wins ties). Scores and added scores are summed, the current flag is
// OR-ed, and the merged entry takes the position of the group's first
// member. It returns the merged ledger and how many entries were folded
// away.
func MergeByInitial(entries model.Ledger) (model.Ledger, int) {
	out := make(model.Ledger, 0, len(entries))
	pos := make(map[string]int)
	best := make(map[string]int)
	merged := 0

	for _, e := range entries {
		key := identity.Initial(e.Name)
		if key == "" {
			out = append(out, e)
			continue
		}
		idx, ok := pos[key]
		if !ok {
			pos[key] = len(out)
			best[key] = e.Score
			out = append(out, e)
			continue
		}
		merged++
		m := &out[idx]
		if e.Score > best[key] {
			best[key] = e.Score
			m.Name = e.Name
		}
		m.Score += e.Score
		m.AddedScore += e.AddedScore
		m.IsCurrentPlayer = m.IsCurrentPlayer || e.IsCurrentPlayer
	}
	return out, merged
}

// EnforceCurrentPlayer leaves at most one entry flagged as the current
// player. A non-empty pinned name overrides the flags entirely; otherwise
// the first flagged entry keeps its flag.
func EnforceCurrentPlayer(entries model.Ledger, pinned string) model.Ledger {
	if pinned != "" {
		for i := range entries {
			entries[i].IsCurrentPlayer = entries[i].Name == pinned
		}
		return entries
	}
	seen := false
	for i := range entries {
		if !entries[i].IsCurrentPlayer {
			continue
		}
		if seen {
			entries[i].IsCurrentPlayer = false
		}
		seen = true
	}
	return entries
}
