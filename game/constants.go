package game

import "sync"

// Constants are the timer parameters applied to a session. They are
// process-wide and adjustable at runtime; each session snapshots the values
// it was created with, so a live change never corrupts an in-progress game.
type Constants struct {
	// InitialTime is the starting countdown in seconds (classic mode).
	InitialTime int `json:"initialTime" yaml:"initial_time"`

	// BonusTime is added to the clock for each correct click in classic
	// mode and subtracted from elapsed time in limited mode.
	BonusTime int `json:"bonusTime" yaml:"bonus_time"`

	// PenaltyTime is charged for each wrong click.
	PenaltyTime int `json:"penaltyTime" yaml:"penalty_time"`
}

// DefaultConstants returns the standard timer parameters.
func DefaultConstants() Constants {
	return Constants{
		InitialTime: 30,
		BonusTime:   5,
		PenaltyTime: 5,
	}
}

// ConstantsHolder guards the process-wide constants. Sessions call Snapshot
// at creation time; admin endpoints call Update.
type ConstantsHolder struct {
	mu      sync.RWMutex
	current Constants
}

// NewConstantsHolder creates a holder with the given initial values.
func NewConstantsHolder(c Constants) *ConstantsHolder {
	return &ConstantsHolder{current: c}
}

// Snapshot returns the current constants by value.
func (h *ConstantsHolder) Snapshot() Constants {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Update replaces the constants for sessions created from now on.
func (h *ConstantsHolder) Update(c Constants) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = c
}
