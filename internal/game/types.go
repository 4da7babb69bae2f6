// internal/game/types.go
//
// Core type definitions for the typing game.
// Defines:
//   - Rules: timing and scoring parameters of a session.
//   - Snapshot: read-only view published to the presentation layer.
//   - Summary: result handed to the game-over hook.
//   - roundState / sessionState: state owned exclusively by a Controller.

package game

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRules is wrapped by Rules.Validate failures.
var ErrInvalidRules = errors.New("game: invalid rules")

// Rules holds the tunable parameters of a session.
type Rules struct {
	RoundTimeout  time.Duration // time allowed to type a word
	RoundInterval time.Duration // period of the round scheduler
	Tick          time.Duration // countdown republish period
	MaxBites      int           // bites that end the session
	ManStart      int           // man position after reset (percent)
	DogStart      int           // dog position after reset (percent)
	DogStep       int           // dog advance per miss (percent)
	SafetyGap     int           // minimum distance kept between dog and man
}

// DefaultRules returns the classic 5s / 10s / 5 bites configuration.
func DefaultRules() Rules {
	return Rules{
		RoundTimeout:  5 * time.Second,
		RoundInterval: 10 * time.Second,
		Tick:          time.Second,
		MaxBites:      5,
		ManStart:      75,
		DogStart:      25,
		DogStep:       5,
		SafetyGap:     5,
	}
}

// Validate rejects rules that would break the session invariants.
func (r Rules) Validate() error {
	switch {
	case r.RoundTimeout <= 0 || r.RoundInterval <= 0 || r.Tick <= 0:
		return fmt.Errorf("%w: durations must be positive", ErrInvalidRules)
	case r.MaxBites <= 0:
		return fmt.Errorf("%w: max bites must be positive", ErrInvalidRules)
	case r.DogStep <= 0 || r.SafetyGap < 0:
		return fmt.Errorf("%w: dog step must be positive and safety gap non-negative", ErrInvalidRules)
	case r.DogStart < 0 || r.ManStart > 100:
		return fmt.Errorf("%w: positions must be within 0-100", ErrInvalidRules)
	case r.DogStart > r.ManStart-r.SafetyGap:
		return fmt.Errorf("%w: dog must start at least %d behind the man", ErrInvalidRules, r.SafetyGap)
	}
	return nil
}

// Snapshot is the state exposed to renderers after every change.
type Snapshot struct {
	ID              string `json:"id"`
	Version         uint64 `json:"version"`
	CurrentWord     string `json:"currentWord"`
	UserInput       string `json:"userInput"`
	TimeLeftSeconds int    `json:"timeLeftSeconds"`
	IsActive        bool   `json:"isActive"`
	BittenCount     int    `json:"bittenCount"`
	ManPosition     int    `json:"manPosition"`
	DogPosition     int    `json:"dogPosition"`
	IsGameOver      bool   `json:"isGameOver"`
	Rounds          int    `json:"rounds"`
	WordsTyped      int    `json:"wordsTyped"`
}

// Summary describes a session that just reached game over.
type Summary struct {
	SessionID  string
	StartedAt  time.Time
	EndedAt    time.Time
	Rounds     int
	WordsTyped int
	Bites      int
}

// roundState is the per-round challenge. The zero value is an idle round.
type roundState struct {
	word      string
	input     string
	active    bool
	startedAt time.Time
	deadline  time.Time
}

// sessionState lives for the whole session and is reset on restart.
type sessionState struct {
	bitten    int
	man       int
	dog       int
	rounds    int
	typed     int
	startedAt time.Time
}
