package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pixelhunt/pixelhunt/diff"
	"github.com/pixelhunt/pixelhunt/events"
	"github.com/pixelhunt/pixelhunt/logger"
	"github.com/pixelhunt/pixelhunt/raster"
)

// Gameplay limits.
const (
	// HintBudget is the number of hints available per session.
	HintBudget = 3

	// DefaultLimitedBudget is the wall-clock budget of a limited run in
	// seconds.
	DefaultLimitedBudget = 120

	// hintSampleStride selects every Nth pixel of a region for a hint
	// highlight, enough to locate the region without giving it away.
	hintSampleStride = 4

	defaultTickInterval = time.Second

	commandBuffer = 32
)

// Session errors.
var (
	// ErrSessionClosed is returned when operating on an ended or
	// abandoned session.
	ErrSessionClosed = errors.New("game session closed")

	// ErrInvalidClick is returned for clicks outside the image bounds or
	// against a session that is not running. Callers log and ignore it.
	ErrInvalidClick = errors.New("invalid click")

	// ErrHintsExhausted is returned when the hint budget is spent.
	ErrHintsExhausted = errors.New("hint budget exhausted")

	// ErrRoomFull is returned when joining a session that already has its
	// full complement of players.
	ErrRoomFull = errors.New("room already full")

	// ErrEndOfSequence signals that a limited-mode run has played every
	// available game. It is a normal control-flow outcome, not a failure.
	ErrEndOfSequence = errors.New("no unplayed games remain")
)

// Player is one connected participant and their score.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// ClickResult is the outcome of one validated click. It is computed per
// click and never stored.
type ClickResult struct {
	IsDifferent     bool                `json:"isDifferent"`
	GroupIndex      int                 `json:"groupIndex"`
	DifferentPixels []raster.Coordinate `json:"differentPixels,omitempty"`
	RemainingGroups int                 `json:"remainingGroups"`
}

// NextGameProvider supplies the next unplayed game for a limited-mode run.
// Implementations return ErrEndOfSequence when every game has been played.
type NextGameProvider interface {
	NextGame(ctx context.Context, played map[string]bool) (gameID string, info *diff.Info, err error)
}

// Snapshot is a point-in-time copy of session state, used by tests and the
// HTTP surface. It is safe to read after the session has ended.
type Snapshot struct {
	ID              string
	RoomID          string
	Mode            Mode
	State           State
	Outcome         Outcome
	WinnerID        string
	Players         []Player
	CurrentGameID   string
	SecondsLeft     int
	RemainingGroups int
	HintsUsed       int
	CheatActive     bool
	PlayedGameIDs   []string
}

// SessionConfig configures a new session.
type SessionConfig struct {
	RoomID    string
	Mode      Mode
	Constants Constants
	Bus       *events.Bus

	// GameID is the catalog game the creating player asked for. A pending
	// duo session starts with this game once its second player arrives.
	GameID string

	// Provider is required for limited modes.
	Provider NextGameProvider

	// LimitedBudget is the limited-run wall-clock budget in seconds.
	// Defaults to DefaultLimitedBudget.
	LimitedBudget int

	// TickInterval overrides the 1s timer tick (tests only).
	TickInterval time.Duration
}

// Session is one active play instance. All mutable state is owned by a
// single run goroutine; connections dispatch typed commands into it, so two
// sessions never contend for a shared lock and claims are race-free.
type Session struct {
	id              string
	roomID          string
	mode            Mode
	consts          Constants
	budget          int
	tickInterval    time.Duration
	requestedGameID string

	bus      *events.Bus
	provider NextGameProvider

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan command
	done   chan struct{}

	// Owned by the run goroutine. Reading these fields is only safe after
	// done is closed.
	state       State
	players     []*Player
	gameID      string
	groups      []diff.Group
	remaining   diff.RemainingMap
	groupsLeft  int
	secondsLeft int
	elapsed     int
	hintsUsed   int
	cheat       bool
	played      map[string]bool
	fetching    bool
	outcome     Outcome
	winnerID    string
}

type command interface{ isCommand() }

type joinCmd struct {
	player Player
	reply  chan error
}

type attachCmd struct {
	gameID string
	info   *diff.Info
	reply  chan error
}

type clickCmd struct {
	playerID string
	point    raster.Coordinate
	reply    chan clickReply
}

type clickReply struct {
	result *ClickResult
	err    error
}

type hintCmd struct {
	reply chan hintReply
}

type hintReply struct {
	pixels []raster.Coordinate
	err    error
}

type cheatCmd struct {
	reply chan bool
}

type leaveCmd struct {
	playerID string
}

type closeCmd struct{}

type endSequenceCmd struct{}

type snapshotCmd struct {
	reply chan Snapshot
}

func (joinCmd) isCommand()        {}
func (attachCmd) isCommand()      {}
func (clickCmd) isCommand()       {}
func (hintCmd) isCommand()        {}
func (cheatCmd) isCommand()       {}
func (leaveCmd) isCommand()       {}
func (closeCmd) isCommand()       {}
func (endSequenceCmd) isCommand() {}
func (snapshotCmd) isCommand()    {}

// NewSession creates a session in the created state with its first player
// and starts the run loop. The session becomes running once a game is
// attached.
func NewSession(cfg SessionConfig, first Player) (*Session, error) {
	if cfg.Bus == nil {
		return nil, errors.New("session requires an event bus")
	}
	if cfg.Mode.IsLimited() && cfg.Provider == nil {
		return nil, errors.New("limited mode requires a next-game provider")
	}
	if cfg.LimitedBudget == 0 {
		cfg.LimitedBudget = DefaultLimitedBudget
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = defaultTickInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:              uuid.NewString(),
		roomID:          cfg.RoomID,
		mode:            cfg.Mode,
		consts:          cfg.Constants,
		budget:          cfg.LimitedBudget,
		tickInterval:    cfg.TickInterval,
		requestedGameID: cfg.GameID,
		bus:             cfg.Bus,
		provider:        cfg.Provider,
		ctx:             ctx,
		cancel:          cancel,
		cmds:            make(chan command, commandBuffer),
		done:            make(chan struct{}),
		state:           StateCreated,
		players:         []*Player{{ID: first.ID, Name: first.Name}},
		played:          make(map[string]bool),
	}

	go s.run()

	logger.SessionEvent(s.id, "created", "room_id", s.roomID, "mode", s.mode)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// RoomID returns the room the session belongs to.
func (s *Session) RoomID() string { return s.roomID }

// Mode returns the play mode.
func (s *Session) Mode() Mode { return s.mode }

// RequestedGameID returns the catalog game asked for at creation. It is
// fixed at construction and safe to read from any goroutine.
func (s *Session) RequestedGameID() string { return s.requestedGameID }

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Join adds the second player to a pending duo session.
func (s *Session) Join(ctx context.Context, player Player) error {
	reply := make(chan error, 1)
	if err := s.dispatch(ctx, joinCmd{player: player, reply: reply}); err != nil {
		return err
	}
	res, err := await(ctx, s, reply)
	if err != nil {
		return err
	}
	return res
}

// Attach hands a detection result to the session and starts play. The
// session owns the remaining-map copy from here on.
func (s *Session) Attach(ctx context.Context, gameID string, info *diff.Info) error {
	reply := make(chan error, 1)
	if err := s.dispatch(ctx, attachCmd{gameID: gameID, info: info, reply: reply}); err != nil {
		return err
	}
	res, err := await(ctx, s, reply)
	if err != nil {
		return err
	}
	return res
}

// Click validates a player's click against the live remaining-region map.
func (s *Session) Click(ctx context.Context, playerID string, point raster.Coordinate) (*ClickResult, error) {
	if !point.InBounds() {
		logger.Warn("click outside image bounds", "session_id", s.id, "x", point.X, "y", point.Y)
		return nil, ErrInvalidClick
	}

	reply := make(chan clickReply, 1)
	if err := s.dispatch(ctx, clickCmd{playerID: playerID, point: point, reply: reply}); err != nil {
		return nil, err
	}
	r, err := await(ctx, s, reply)
	if err != nil {
		return nil, err
	}
	return r.result, r.err
}

// RequestHint consumes one hint and returns a highlight subset of one
// remaining region. The region is not claimed.
func (s *Session) RequestHint(ctx context.Context) ([]raster.Coordinate, error) {
	reply := make(chan hintReply, 1)
	if err := s.dispatch(ctx, hintCmd{reply: reply}); err != nil {
		return nil, err
	}
	r, err := await(ctx, s, reply)
	if err != nil {
		return nil, err
	}
	return r.pixels, r.err
}

// ToggleCheat flips cheat mode and returns the new state.
func (s *Session) ToggleCheat(ctx context.Context) (bool, error) {
	reply := make(chan bool, 1)
	if err := s.dispatch(ctx, cheatCmd{reply: reply}); err != nil {
		return false, err
	}
	return await(ctx, s, reply)
}

// Leave reports a player disconnect or quit. In duo mode the remaining
// player is declared the implicit winner.
func (s *Session) Leave(playerID string) {
	select {
	case s.cmds <- leaveCmd{playerID: playerID}:
	case <-s.done:
	}
}

// Close abandons the session without declaring a winner.
func (s *Session) Close() {
	select {
	case s.cmds <- closeCmd{}:
	case <-s.done:
	}
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.done:
		// The run goroutine has exited; its final writes are visible.
		return s.buildSnapshot(), nil
	default:
	}

	reply := make(chan Snapshot, 1)
	if err := s.dispatch(ctx, snapshotCmd{reply: reply}); err != nil {
		// Lost the race with termination; the final state is now stable.
		if errors.Is(err, ErrSessionClosed) {
			return s.buildSnapshot(), nil
		}
		return Snapshot{}, err
	}
	return await(ctx, s, reply)
}

// dispatch queues a command for the run loop.
func (s *Session) dispatch(ctx context.Context, cmd command) error {
	select {
	case s.cmds <- cmd:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await reads a reply, giving up if the session terminates before the
// command is processed.
func await[T any](ctx context.Context, s *Session, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		// The command may have been processed in the same instant the
		// session terminated; prefer the buffered reply if it is there.
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrSessionClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
