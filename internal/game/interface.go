// Package game defines the mini-games that can pay out tokens and the
// registry used to validate submitted scores.
package game

import (
	"errors"
	"fmt"
)

// Score validation errors.
var (
	ErrUnknownGame  = errors.New("unknown game type")
	ErrInvalidScore = errors.New("score must be positive")
	ErrScoreTooHigh = errors.New("score exceeds the game's maximum")
)

// Game describes one mini-game whose results are reported by the client.
type Game interface {
	// Type returns the identifier sent as gameType (e.g. "trivia").
	Type() string

	// Name returns the display name.
	Name() string

	// ValidateScore checks a reported score.
	ValidateScore(score int64) error
}

// BoundedGame is a Game that accepts scores in (0, MaxScore].
// A zero MaxScore means there is no upper bound.
type BoundedGame struct {
	GameType string
	GameName string
	MaxScore int64
}

// Type implements Game.
func (g BoundedGame) Type() string { return g.GameType }

// Name implements Game.
func (g BoundedGame) Name() string { return g.GameName }

// ValidateScore implements Game.
func (g BoundedGame) ValidateScore(score int64) error {
	if score <= 0 {
		return ErrInvalidScore
	}
	if g.MaxScore > 0 && score > g.MaxScore {
		return fmt.Errorf("%w: %d > %d", ErrScoreTooHigh, score, g.MaxScore)
	}
	return nil
}
