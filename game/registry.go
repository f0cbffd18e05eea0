package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pixelhunt/pixelhunt/cache"
	"github.com/pixelhunt/pixelhunt/diff"
	"github.com/pixelhunt/pixelhunt/events"
	"github.com/pixelhunt/pixelhunt/logger"
	"github.com/pixelhunt/pixelhunt/storage"
)

// ErrNoSession is returned when a room has no active session.
var ErrNoSession = errors.New("no session for room")

// RegistryConfig wires a Registry to its collaborators.
type RegistryConfig struct {
	Bus         *events.Bus
	Constants   *ConstantsHolder
	Cache       cache.Store
	Differences storage.DifferenceStore
	Catalog     storage.CatalogStore

	// LimitedBudget overrides the limited-run clock budget in seconds.
	LimitedBudget int

	// TickInterval overrides the session timer tick (tests only).
	TickInterval time.Duration
}

// Registry maps room IDs to live sessions and performs matchmaking. The
// mutex guards only the map itself; session construction and all I/O happen
// outside it, so operations on different rooms never block each other.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	bus     *events.Bus
	consts  *ConstantsHolder
	cache   cache.Store
	diffs   storage.DifferenceStore
	catalog storage.CatalogStore

	limitedBudget int
	tickInterval  time.Duration
}

// NewRegistry creates an empty session registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		sessions:      make(map[string]*Session),
		bus:           cfg.Bus,
		consts:        cfg.Constants,
		cache:         cfg.Cache,
		diffs:         cfg.Differences,
		catalog:       cfg.Catalog,
		limitedBudget: cfg.LimitedBudget,
		tickInterval:  cfg.TickInterval,
	}
}

// CreateOrJoin returns the session for a room, creating it for the first
// player and pairing the second joiner into a pending duo session. Solo
// sessions and completed duo pairs start playing immediately; a pending duo
// session starts when its second player arrives.
func (r *Registry) CreateOrJoin(ctx context.Context, roomID, gameID string, mode Mode, player Player) (*Session, error) {
	r.mu.Lock()
	existing := r.sessions[roomID]
	r.mu.Unlock()

	if existing != nil {
		if err := existing.Join(ctx, player); err != nil {
			return nil, err
		}
		// The creator picked the game; the second joiner's request is a
		// fallback only.
		startID := existing.RequestedGameID()
		if startID == "" {
			startID = gameID
		}
		if err := r.startSession(ctx, existing, startID); err != nil {
			r.remove(roomID, existing)
			existing.Close()
			return nil, err
		}
		return existing, nil
	}

	cfg := SessionConfig{
		RoomID:        roomID,
		Mode:          mode,
		Constants:     r.consts.Snapshot(),
		Bus:           r.bus,
		GameID:        gameID,
		LimitedBudget: r.limitedBudget,
		TickInterval:  r.tickInterval,
	}
	if mode.IsLimited() {
		cfg.Provider = r
	}

	session, err := NewSession(cfg, player)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, raced := r.sessions[roomID]; raced {
		r.mu.Unlock()
		session.Close()
		return nil, fmt.Errorf("room %q is already being created", roomID)
	}
	r.sessions[roomID] = session
	r.mu.Unlock()

	go r.reap(roomID, session)

	if !mode.IsDuo() {
		if err := r.startSession(ctx, session, gameID); err != nil {
			r.remove(roomID, session)
			session.Close()
			return nil, err
		}
	}

	return session, nil
}

// Lookup returns the session for a room, if any.
func (r *Registry) Lookup(roomID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[roomID]
	return s, ok
}

// Close abandons and releases the session for a room. Connected peers learn
// of the closure through the session's game-ended event.
func (r *Registry) Close(roomID string) error {
	r.mu.Lock()
	session, ok := r.sessions[roomID]
	if ok {
		delete(r.sessions, roomID)
	}
	r.mu.Unlock()

	if !ok {
		return ErrNoSession
	}
	session.Close()
	return nil
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// NextGame implements NextGameProvider: it selects a random catalog game not
// yet in the played set and loads its detection result. Returns
// ErrEndOfSequence when every game has been played.
func (r *Registry) NextGame(ctx context.Context, played map[string]bool) (string, *diff.Info, error) {
	games, err := r.catalog.LoadCatalog(ctx)
	if err != nil {
		return "", nil, err
	}

	candidates := make([]storage.Game, 0, len(games))
	for _, g := range games {
		if !played[g.ID] {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		return "", nil, ErrEndOfSequence
	}

	chosen := candidates[rand.IntN(len(candidates))]
	info, err := r.diffs.LoadDifferences(ctx, chosen.ID)
	if err != nil {
		return "", nil, err
	}
	return chosen.ID, info, nil
}

// startSession loads the session's first detection result and attaches it.
// Classic sessions prefer the freshly cached result (consuming it so no two
// games can share one mutable map) and fall back to persisted differences
// for catalog replays.
func (r *Registry) startSession(ctx context.Context, s *Session, gameID string) error {
	if s.Mode().IsLimited() {
		id, info, err := r.NextGame(ctx, map[string]bool{})
		if err != nil {
			return err
		}
		return s.Attach(ctx, id, info)
	}

	info, err := r.loadInfo(ctx, gameID)
	if err != nil {
		return err
	}
	return s.Attach(ctx, gameID, info)
}

func (r *Registry) loadInfo(ctx context.Context, gameID string) (*diff.Info, error) {
	info, err := r.cache.Take(ctx, gameID)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return nil, err
	}
	return r.diffs.LoadDifferences(ctx, gameID)
}

// reap removes the session from the registry once it terminates, whatever
// path ended it.
func (r *Registry) reap(roomID string, s *Session) {
	<-s.Done()
	r.remove(roomID, s)
	logger.Debug("session reaped", "room_id", roomID, "session_id", s.ID())
}

// remove deletes the mapping only if it still points at the given session.
func (r *Registry) remove(roomID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[roomID]; ok && current == s {
		delete(r.sessions, roomID)
	}
}
