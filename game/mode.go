// Package game implements the live play engine: per-room game sessions with
// click validation, countdown and limited timers, hints, cheat mode, and the
// registry that matches players into sessions.
package game

import "fmt"

// Mode identifies the play mode of a session.
type Mode string

// Supported play modes.
const (
	SoloClassic Mode = "solo-classic"
	DuoClassic  Mode = "duo-classic"
	SoloLimited Mode = "solo-limited"
	DuoLimited  Mode = "duo-limited"
)

// ParseMode validates a mode string received from a client.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case SoloClassic, DuoClassic, SoloLimited, DuoLimited:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown game mode %q", s)
	}
}

// IsDuo reports whether the mode pairs two players into one session.
func (m Mode) IsDuo() bool {
	return m == DuoClassic || m == DuoLimited
}

// IsLimited reports whether the mode chains games against one shared clock.
func (m Mode) IsLimited() bool {
	return m == SoloLimited || m == DuoLimited
}

// State is the lifecycle state of a session.
type State string

// Session lifecycle states.
const (
	StateCreated   State = "created"
	StateRunning   State = "running"
	StateEnded     State = "ended"
	StateAbandoned State = "abandoned"
)

// Outcome describes how a session reached a terminal state.
type Outcome string

// Session outcomes.
const (
	// OutcomeWin means every region was claimed.
	OutcomeWin Outcome = "win"

	// OutcomeTimeUp means the clock ran out.
	OutcomeTimeUp Outcome = "time-up"

	// OutcomeForfeit means a player left and the remaining player wins.
	OutcomeForfeit Outcome = "forfeit"

	// OutcomeRunComplete means a limited-mode run exhausted every
	// available game.
	OutcomeRunComplete Outcome = "run-complete"

	// OutcomeAbandoned means the session was closed without a winner.
	OutcomeAbandoned Outcome = "abandoned"
)
