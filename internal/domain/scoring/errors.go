package scoring

import "errors"

var (
	ErrUnknownMode   = errors.New("unknown scoring mode")
	ErrEmptyTeam     = errors.New("team name is empty")
	ErrNegativeScore = errors.New("score must not be negative")
	ErrTeamNotFound  = errors.New("team not found")
)
