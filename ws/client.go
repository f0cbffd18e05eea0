package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/pixelhunt/pixelhunt/game"
	"github.com/pixelhunt/pixelhunt/logger"
	"github.com/pixelhunt/pixelhunt/raster"
)

// Connection tuning.
const (
	// writeWait is the write deadline for each outbound message.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong before dropping the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames; player commands are tiny.
	maxMessageSize = 8 * 1024

	// sendQueueSize is the per-client outbound buffer. A client that can
	// not drain this many events is considered dead.
	sendQueueSize = 64

	// msgRate and msgBurst bound inbound message throughput per client.
	msgRate  = 20
	msgBurst = 40
)

// Origin checks are delegated to the fronting proxy.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Client is one player connection. The read pump owns the room and session
// fields; the write pump serializes all writes to the peer.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	// Read-pump confined.
	roomID   string
	playerID string
	session  *game.Session
}

// ServeHTTP upgrades the request and runs the connection until the peer goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		id:      uuid.NewString(),
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(msgRate, msgBurst),
		cancel:  cancel,
	}
	c.ctx = logger.WithClientID(ctx, c.id)

	go c.writePump()
	c.readPump()
}

// enqueue queues an outbound frame without blocking. A client whose queue is
// full has stopped reading; dropping its connection is the only safe move.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		logger.SocketError(c.id, errors.New("send queue overflow"))
		c.cancel()
	}
}

func (c *Client) sendEnvelope(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logger.SocketError(c.id, err)
		return
	}
	c.enqueue(data)
}

func (c *Client) sendError(code, message string) {
	c.sendEnvelope(Envelope{Type: MsgError, Payload: ErrorPayload{Code: code, Message: message}})
}

// readPump reads player commands until the connection drops, then detaches
// the player from their session.
func (c *Client) readPump() {
	defer func() {
		c.leave()
		c.cancel()
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.SocketError(c.id, err)
			}
			return
		}
		if c.ctx.Err() != nil {
			return
		}
		if !c.limiter.Allow() {
			c.sendError(CodeRateLimited, "slow down")
			continue
		}
		c.handleMessage(data)
	}
}

// writePump serializes writes: queued frames, pings, and the close frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.sendError(CodeBadMessage, "malformed envelope")
		return
	}

	switch env.Type {
	case MsgJoinRoom:
		c.handleJoin(env.Payload)
	case MsgLeaveRoom:
		c.leave()
	case MsgDetectDiff:
		c.handleClick(env.Payload)
	case MsgRequestHint:
		c.handleHint()
	case MsgToggleCheat:
		c.handleCheat()
	default:
		c.sendError(CodeBadMessage, "unknown message type: "+env.Type)
	}
}

func (c *Client) handleJoin(raw json.RawMessage) {
	if c.session != nil {
		c.sendError(CodeBadMessage, "already in a room")
		return
	}

	var payload JoinRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.RoomID == "" {
		c.sendError(CodeBadMessage, "join-room needs roomId and mode")
		return
	}
	mode, err := game.ParseMode(payload.Mode)
	if err != nil {
		c.sendError(CodeBadMessage, err.Error())
		return
	}
	if payload.PlayerID == "" {
		payload.PlayerID = c.id
	}

	// Register with the hub first so the game-started event of a session
	// that begins inside CreateOrJoin reaches this client.
	c.hub.add(payload.RoomID, c)

	session, err := c.hub.registry.CreateOrJoin(c.ctx, payload.RoomID, payload.GameID, mode, game.Player{
		ID:   payload.PlayerID,
		Name: payload.PlayerName,
	})
	if err != nil {
		c.hub.remove(payload.RoomID, c)
		switch {
		case errors.Is(err, game.ErrRoomFull):
			c.sendError(CodeRoomFull, "room already full")
		case errors.Is(err, game.ErrSessionClosed):
			c.sendError(CodeSessionClosed, "session already over")
		default:
			logger.SocketError(c.id, err, "room_id", payload.RoomID)
			c.sendError(CodeInternal, "could not join room")
		}
		return
	}

	c.roomID = payload.RoomID
	c.playerID = payload.PlayerID
	c.session = session

	snap, err := session.Snapshot(c.ctx)
	if err != nil {
		c.sendError(CodeInternal, "could not read session state")
		return
	}
	players := make([]game.Player, len(snap.Players))
	copy(players, snap.Players)
	c.sendEnvelope(Envelope{Type: MsgJoined, Payload: JoinedPayload{
		RoomID:          snap.RoomID,
		SessionID:       snap.ID,
		Mode:            string(snap.Mode),
		State:           snap.State,
		CurrentGameID:   snap.CurrentGameID,
		SecondsLeft:     snap.SecondsLeft,
		RemainingGroups: snap.RemainingGroups,
		Players:         players,
	}})
}

func (c *Client) handleClick(raw json.RawMessage) {
	if c.session == nil {
		c.sendError(CodeNotInRoom, "join a room first")
		return
	}
	var payload DetectDiffPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError(CodeBadMessage, "detect-diff needs x and y")
		return
	}

	// Hits and misses are broadcast to the room as gameplay events; only
	// rejections come back on this connection.
	_, err := c.session.Click(c.ctx, c.playerID, raster.Coordinate{X: payload.X, Y: payload.Y})
	switch {
	case err == nil:
	case errors.Is(err, game.ErrInvalidClick):
		c.sendError(CodeInvalidClick, "click out of bounds or game not running")
	case errors.Is(err, game.ErrSessionClosed):
		c.sendError(CodeSessionClosed, "session already over")
	default:
		logger.SocketError(c.id, err)
		c.sendError(CodeInternal, "click failed")
	}
}

func (c *Client) handleHint() {
	if c.session == nil {
		c.sendError(CodeNotInRoom, "join a room first")
		return
	}
	_, err := c.session.RequestHint(c.ctx)
	switch {
	case err == nil:
	case errors.Is(err, game.ErrHintsExhausted):
		c.sendError(CodeHintsExhausted, "hint budget exhausted")
	case errors.Is(err, game.ErrSessionClosed):
		c.sendError(CodeSessionClosed, "session already over")
	default:
		logger.SocketError(c.id, err)
		c.sendError(CodeInternal, "hint failed")
	}
}

func (c *Client) handleCheat() {
	if c.session == nil {
		c.sendError(CodeNotInRoom, "join a room first")
		return
	}
	if _, err := c.session.ToggleCheat(c.ctx); err != nil && !errors.Is(err, game.ErrSessionClosed) {
		logger.SocketError(c.id, err)
		c.sendError(CodeInternal, "cheat toggle failed")
	}
}

// leave detaches the client from its room and tells the session the player
// is gone.
func (c *Client) leave() {
	if c.session == nil {
		return
	}
	c.session.Leave(c.playerID)
	c.hub.remove(c.roomID, c)
	c.roomID = ""
	c.playerID = ""
	c.session = nil
}
