// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// MaxBatchSize is the most player rows a single result screen can show.
const MaxBatchSize = 12

// Mode selects how a batch of results is folded into the ledger.
type Mode string

const (
	// ModeRace treats the batch as one race: ranks become points added to totals.
	ModeRace Mode = "race"
	// ModeTotal treats the batch as on-screen cumulative totals that replace prior scores.
	ModeTotal Mode = "total"
	// ModeManual tags ledger saves caused by a user edit rather than a screenshot.
	ModeManual Mode = "manual"
)

// ParseMode maps user input onto a Mode. Empty input means ModeRace.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "race":
		return ModeRace, nil
	case "total", "total-score", "total_score":
		return ModeTotal, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

func (m Mode) String() string { return string(m) }

// RawPlayerResult is one detected row of a result screen.
type RawPlayerResult struct {
	Rank            *int   `json:"rank,omitempty" validate:"omitempty,min=0"`
	Name            string `json:"name" validate:"required"`
	Team            string `json:"team,omitempty"`
	Score           *int   `json:"score,omitempty" validate:"omitempty,min=0"`
	TotalScore      *int   `json:"totalScore,omitempty" validate:"omitempty,min=0"`
	IsCurrentPlayer bool   `json:"isCurrentPlayer"`
}

// Total returns the absolute score reported for the row, preferring
// TotalScore over Score. Missing values count as zero.
func (r RawPlayerResult) Total() int {
	switch {
	case r.TotalScore != nil:
		return *r.TotalScore
	case r.Score != nil:
		return *r.Score
	default:
		return 0
	}
}

// IntPtr is a small helper for optional integer fields.
func IntPtr(v int) *int { return &v }

// PlayerMapping maps a normalized player name to its canonical team name.
type PlayerMapping map[string]string

// Clone returns an independent copy of the mapping.
func (m PlayerMapping) Clone() PlayerMapping {
	out := make(PlayerMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SelfPlayerRecord remembers the most recently highlighted player.
type SelfPlayerRecord struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}
