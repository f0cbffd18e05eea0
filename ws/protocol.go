// Package ws is the realtime socket layer: one hub fans gameplay events out
// to the connected players of each room, and each client connection feeds
// player commands into its game session.
package ws

import (
	"encoding/json"

	"github.com/pixelhunt/pixelhunt/game"
)

// Inbound message types sent by players.
const (
	MsgJoinRoom    = "join-room"
	MsgLeaveRoom   = "leave-room"
	MsgDetectDiff  = "detect-diff"
	MsgRequestHint = "request-hint"
	MsgToggleCheat = "toggle-cheat"
)

// Outbound message types produced by the hub. Gameplay events reuse their
// bus type strings (difference-found, timer-updated, game-ended, ...).
const (
	MsgJoined = "joined"
	MsgError  = "error"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// inboundEnvelope defers payload decoding until the type is known.
type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinRoomPayload asks to create or join a room.
type JoinRoomPayload struct {
	RoomID     string `json:"roomId"`
	GameID     string `json:"gameId,omitempty"`
	Mode       string `json:"mode"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName,omitempty"`
}

// DetectDiffPayload is one click at image coordinates.
type DetectDiffPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// JoinedPayload acknowledges a join with the session snapshot the client
// should render from.
type JoinedPayload struct {
	RoomID          string        `json:"roomId"`
	SessionID       string        `json:"sessionId"`
	Mode            string        `json:"mode"`
	State           game.State    `json:"state"`
	CurrentGameID   string        `json:"currentGameId,omitempty"`
	SecondsLeft     int           `json:"secondsLeft"`
	RemainingGroups int           `json:"remainingGroups"`
	Players         []game.Player `json:"players"`
}

// ErrorPayload reports a rejected message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for ErrorPayload.
const (
	CodeBadMessage     = "bad-message"
	CodeNotInRoom      = "not-in-room"
	CodeRoomFull       = "room-full"
	CodeInvalidClick   = "invalid-click"
	CodeHintsExhausted = "hints-exhausted"
	CodeSessionClosed  = "session-closed"
	CodeRateLimited    = "rate-limited"
	CodeInternal       = "internal"
)
