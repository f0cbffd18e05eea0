package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelhunt/pixelhunt/cache"
	"github.com/pixelhunt/pixelhunt/diff"
	"github.com/pixelhunt/pixelhunt/events"
	"github.com/pixelhunt/pixelhunt/game"
	"github.com/pixelhunt/pixelhunt/storage"
)

// stubStore serves a fixed catalog and difference set.
type stubStore struct {
	games []storage.Game
	infos map[string]*diff.Info
}

func (s *stubStore) LoadCatalog(context.Context) ([]storage.Game, error) { return s.games, nil }

func (s *stubStore) SaveCatalog(_ context.Context, games []storage.Game) error {
	s.games = games
	return nil
}

func (s *stubStore) LoadDifferences(_ context.Context, id string) (*diff.Info, error) {
	info, ok := s.infos[id]
	if !ok {
		return nil, &storage.StorageError{Op: "load differences", Err: cache.ErrNotFound}
	}
	return info, nil
}

func (s *stubStore) SaveDifferences(_ context.Context, id string, info *diff.Info) error {
	s.infos[id] = info
	return nil
}

func (s *stubStore) DeleteDifferences(_ context.Context, id string) error {
	delete(s.infos, id)
	return nil
}

// newTestHub stands up a hub whose catalog holds one game with regions at
// (10,10), (20,20) and (30,30).
func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	store := &stubStore{
		games: []storage.Game{{ID: "game-1", Name: "game-1"}},
		infos: map[string]*diff.Info{
			"game-1": diff.NewInfo("game-1", []diff.Group{
				{{X: 10, Y: 10}},
				{{X: 20, Y: 20}},
				{{X: 30, Y: 30}},
			}),
		},
	}
	bus := events.NewBus()
	registry := game.NewRegistry(game.RegistryConfig{
		Bus:          bus,
		Constants:    game.NewConstantsHolder(game.DefaultConstants()),
		Cache:        cache.NewMemoryStore(),
		Differences:  store,
		Catalog:      store,
		TickInterval: time.Hour,
	})
	hub := NewHub(registry, bus)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(Envelope{Type: msgType, Payload: payload}))
}

// readUntil reads frames until one of the given type arrives, skipping the
// interleaved timer and broadcast traffic.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var env inboundEnvelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %q", msgType)
		if env.Type == msgType {
			return env.Payload
		}
	}
}

func joinRoom(t *testing.T, conn *websocket.Conn, roomID, playerID, mode string) JoinedPayload {
	t.Helper()
	sendMsg(t, conn, MsgJoinRoom, JoinRoomPayload{
		RoomID:   roomID,
		GameID:   "game-1",
		Mode:     mode,
		PlayerID: playerID,
	})
	var joined JoinedPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgJoined), &joined))
	return joined
}

func TestClient_SoloGameOverSocket(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dialWS(t, srv)

	joined := joinRoom(t, conn, "room-1", "p1", "solo-classic")
	assert.Equal(t, game.StateRunning, joined.State)
	assert.Equal(t, 3, joined.RemainingGroups)

	// A hit broadcasts difference-found.
	sendMsg(t, conn, MsgDetectDiff, DetectDiffPayload{X: 10, Y: 10})
	var found events.DifferenceFoundPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, string(events.TypeDifferenceFound)), &found))
	assert.Equal(t, "p1", found.PlayerID)
	assert.Equal(t, 2, found.RemainingGroups)

	// A miss broadcasts difference-error.
	sendMsg(t, conn, MsgDetectDiff, DetectDiffPayload{X: 300, Y: 300})
	var miss events.DifferenceErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, string(events.TypeDifferenceError)), &miss))
	assert.Equal(t, 300, miss.Point.X)

	// Hints and cheat mode round-trip as events.
	sendMsg(t, conn, MsgRequestHint, nil)
	var hint events.HintRevealedPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, string(events.TypeHintRevealed)), &hint))
	assert.Equal(t, 1, hint.HintsUsed)

	sendMsg(t, conn, MsgToggleCheat, nil)
	var cheat events.CheatToggledPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, string(events.TypeCheatToggled)), &cheat))
	assert.True(t, cheat.Active)
	assert.NotEmpty(t, cheat.Pixels)

	// Claiming the remaining regions ends the game.
	sendMsg(t, conn, MsgDetectDiff, DetectDiffPayload{X: 20, Y: 20})
	sendMsg(t, conn, MsgDetectDiff, DetectDiffPayload{X: 30, Y: 30})
	var ended events.GameEndedPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, string(events.TypeGameEnded)), &ended))
	assert.Equal(t, string(game.OutcomeWin), ended.Outcome)
	assert.Equal(t, "p1", ended.WinnerID)
}

func TestClient_RejectsMalformedAndEarlyMessages(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dialWS(t, srv)

	// Clicking before joining a room.
	sendMsg(t, conn, MsgDetectDiff, DetectDiffPayload{X: 1, Y: 1})
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgError), &errPayload))
	assert.Equal(t, CodeNotInRoom, errPayload.Code)

	// Unknown message type.
	sendMsg(t, conn, "teleport", nil)
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgError), &errPayload))
	assert.Equal(t, CodeBadMessage, errPayload.Code)

	// Join with a bogus mode.
	sendMsg(t, conn, MsgJoinRoom, JoinRoomPayload{RoomID: "room-1", Mode: "ranked", PlayerID: "p1"})
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgError), &errPayload))
	assert.Equal(t, CodeBadMessage, errPayload.Code)
}

func TestClient_OutOfBoundsClick(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dialWS(t, srv)
	joinRoom(t, conn, "room-1", "p1", "solo-classic")

	sendMsg(t, conn, MsgDetectDiff, DetectDiffPayload{X: 9999, Y: -3})
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, MsgError), &errPayload))
	assert.Equal(t, CodeInvalidClick, errPayload.Code)
}

func TestHub_DuoBroadcastAndForfeit(t *testing.T) {
	hub, srv := newTestHub(t)

	conn1 := dialWS(t, srv)
	sendMsg(t, conn1, MsgJoinRoom, JoinRoomPayload{
		RoomID: "room-1", GameID: "game-1", Mode: "duo-classic", PlayerID: "p1",
	})
	var joined JoinedPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn1, MsgJoined), &joined))
	assert.Equal(t, game.StateCreated, joined.State)

	conn2 := dialWS(t, srv)
	joined2 := joinRoom(t, conn2, "room-1", "p2", "duo-classic")
	assert.Equal(t, game.StateRunning, joined2.State)
	assert.Len(t, joined2.Players, 2)

	require.Eventually(t, func() bool { return hub.RoomSize("room-1") == 2 },
		time.Second, 5*time.Millisecond)

	// The pairing start reaches the first player too.
	readUntil(t, conn1, string(events.TypeGameStarted))

	// Player 2's claim is broadcast to player 1.
	sendMsg(t, conn2, MsgDetectDiff, DetectDiffPayload{X: 10, Y: 10})
	var found events.DifferenceFoundPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn1, string(events.TypeDifferenceFound)), &found))
	assert.Equal(t, "p2", found.PlayerID)

	// Player 2 disconnecting forfeits the duel to player 1.
	require.NoError(t, conn2.Close())
	var ended events.GameEndedPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn1, string(events.TypeGameEnded)), &ended))
	assert.Equal(t, string(game.OutcomeForfeit), ended.Outcome)
	assert.Equal(t, "p1", ended.WinnerID)
}
