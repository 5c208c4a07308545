package model

import "sort"

// LedgerEntry is one team's cumulative score.
type LedgerEntry struct {
	Name            string `json:"name"`
	Score           int    `json:"score"`
	AddedScore      int    `json:"addedScore"`
	IsCurrentPlayer bool   `json:"isCurrentPlayer"`
}

// Standing is a ledger entry with its display rank.
type Standing struct {
	Rank int `json:"rank"`
	LedgerEntry
}

// Ledger is the ordered list of team entries.
type Ledger []LedgerEntry

// Clone returns an independent copy of the ledger.
func (l Ledger) Clone() Ledger {
	if l == nil {
		return nil
	}
	out := make(Ledger, len(l))
	copy(out, l)
	return out
}

// Index returns the position of the entry named name, or -1.
func (l Ledger) Index(name string) int {
	for i := range l {
		if l[i].Name == name {
			return i
		}
	}
	return -1
}

// Standings orders the ledger by score desc, then name asc, and assigns
// 1-based ranks. The ledger itself is not reordered.
func (l Ledger) Standings() []Standing {
	sorted := l.Clone()
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Name < sorted[j].Name
	})
	out := make([]Standing, len(sorted))
	for i, e := range sorted {
		out[i] = Standing{Rank: i + 1, LedgerEntry: e}
	}
	return out
}
