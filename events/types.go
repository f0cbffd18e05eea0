// Package events provides a lightweight pub/sub event bus connecting game
// sessions to the socket layer and the metrics exporter.
package events

import (
	"time"

	"github.com/pixelhunt/pixelhunt/raster"
)

// Type identifies an event kind.
type Type string

// Gameplay events published by sessions.
const (
	// TypeDifferenceFound is published when a click claims a region.
	TypeDifferenceFound Type = "difference-found"

	// TypeDifferenceError is published when a click misses or hits an
	// already-claimed region.
	TypeDifferenceError Type = "difference-error"

	// TypeTimerUpdated is published on every timer tick and adjustment.
	TypeTimerUpdated Type = "timer-updated"

	// TypeGameEnded is published when a session reaches a terminal state.
	TypeGameEnded Type = "game-ended"

	// TypeNextGame is published when a limited-mode session moves to the
	// next unplayed game.
	TypeNextGame Type = "next-game"

	// TypeHintRevealed is published when a player consumes a hint.
	TypeHintRevealed Type = "hint-revealed"

	// TypeCheatToggled is published when cheat mode is switched on or off.
	TypeCheatToggled Type = "cheat-toggled"

	// TypeGameStarted is published when a session leaves the created state.
	TypeGameStarted Type = "game-started"
)

// Event is one occurrence delivered to listeners. RoomID routes the event to
// the connected players of one room.
type Event struct {
	Type      Type
	RoomID    string
	SessionID string
	Timestamp time.Time
	Payload   any
}

// DifferenceFoundPayload carries a successful claim.
type DifferenceFoundPayload struct {
	PlayerID        string              `json:"playerId"`
	GroupIndex      int                 `json:"groupIndex"`
	DifferentPixels []raster.Coordinate `json:"differentPixels"`
	RemainingGroups int                 `json:"remainingGroups"`
	Score           int                 `json:"score"`
}

// DifferenceErrorPayload carries a rejected claim.
type DifferenceErrorPayload struct {
	PlayerID string            `json:"playerId"`
	Point    raster.Coordinate `json:"point"`
}

// TimerUpdatedPayload carries the current clock reading in seconds.
type TimerUpdatedPayload struct {
	Seconds int `json:"seconds"`
}

// GameEndedPayload carries the terminal outcome of a session.
type GameEndedPayload struct {
	Outcome  string `json:"outcome"`
	WinnerID string `json:"winnerId,omitempty"`
}

// NextGamePayload announces the next limited-mode game.
type NextGamePayload struct {
	GameID          string `json:"gameId"`
	RemainingGroups int    `json:"remainingGroups"`
}

// HintRevealedPayload carries the highlighted subset of one remaining region.
type HintRevealedPayload struct {
	Pixels     []raster.Coordinate `json:"pixels"`
	HintsUsed  int                 `json:"hintsUsed"`
	HintBudget int                 `json:"hintBudget"`
}

// CheatToggledPayload carries the full remaining-region highlight while cheat
// mode is active.
type CheatToggledPayload struct {
	Active bool                `json:"active"`
	Pixels []raster.Coordinate `json:"pixels,omitempty"`
}

// GameStartedPayload announces a session entering the running state.
type GameStartedPayload struct {
	GameID          string `json:"gameId"`
	Mode            string `json:"mode"`
	RemainingGroups int    `json:"remainingGroups"`
	InitialSeconds  int    `json:"initialSeconds"`
}
