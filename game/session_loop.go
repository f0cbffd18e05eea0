package game

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/pixelhunt/pixelhunt/diff"
	"github.com/pixelhunt/pixelhunt/events"
	"github.com/pixelhunt/pixelhunt/logger"
	"github.com/pixelhunt/pixelhunt/raster"
)

// run is the session's single writer. Every mutation of timer, remaining-map
// and score state happens here, so concurrent duo clicks on one region
// resolve to exactly one claim.
func (s *Session) run() {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case cmd := <-s.cmds:
			s.handle(cmd)
		case <-ticker.C:
			s.handleTick()
		}

		if s.state == StateEnded || s.state == StateAbandoned {
			return
		}
	}
}

func (s *Session) handle(cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		c.reply <- s.handleJoin(c.player)
	case attachCmd:
		err := s.handleAttach(c.gameID, c.info)
		if c.reply != nil {
			c.reply <- err
		}
	case clickCmd:
		result, err := s.handleClick(c.playerID, c.point)
		c.reply <- clickReply{result: result, err: err}
	case hintCmd:
		pixels, err := s.handleHint()
		c.reply <- hintReply{pixels: pixels, err: err}
	case cheatCmd:
		c.reply <- s.handleCheat()
	case leaveCmd:
		s.handleLeave(c.playerID)
	case closeCmd:
		s.end(StateAbandoned, OutcomeAbandoned, "")
	case endSequenceCmd:
		s.end(StateEnded, OutcomeRunComplete, s.bestPlayerID())
	case snapshotCmd:
		c.reply <- s.buildSnapshot()
	}
}

func (s *Session) handleJoin(player Player) error {
	if !s.mode.IsDuo() || len(s.players) >= 2 {
		return ErrRoomFull
	}
	if s.state != StateCreated {
		return ErrSessionClosed
	}
	s.players = append(s.players, &Player{ID: player.ID, Name: player.Name})
	logger.SessionEvent(s.id, "player joined", "player_id", player.ID)
	return nil
}

// handleAttach installs a detection result and starts (or, in limited mode,
// continues) play. The session copies the remaining map so the cached result
// is never shared.
func (s *Session) handleAttach(gameID string, info *diff.Info) error {
	if s.state == StateEnded || s.state == StateAbandoned {
		return ErrSessionClosed
	}

	first := s.gameID == ""
	s.gameID = gameID
	s.groups = info.Groups
	s.remaining = info.CopyRemaining()
	s.groupsLeft = len(info.Groups)
	s.played[gameID] = true
	s.fetching = false
	s.state = StateRunning

	if first {
		if s.mode.IsLimited() {
			s.elapsed = 0
		} else {
			s.secondsLeft = s.consts.InitialTime
		}
		s.publish(events.TypeGameStarted, events.GameStartedPayload{
			GameID:          gameID,
			Mode:            string(s.mode),
			RemainingGroups: s.groupsLeft,
			InitialSeconds:  s.clockSeconds(),
		})
	} else {
		s.publish(events.TypeNextGame, events.NextGamePayload{
			GameID:          gameID,
			RemainingGroups: s.groupsLeft,
		})
	}

	logger.SessionEvent(s.id, "game attached", "game_id", gameID, "regions", s.groupsLeft)
	return nil
}

func (s *Session) handleClick(playerID string, point raster.Coordinate) (*ClickResult, error) {
	if s.state != StateRunning || s.fetching {
		return nil, ErrInvalidClick
	}

	groupIdx, ok := s.remaining[point]
	if !ok {
		// Misses and duplicate claims are the same case: the region
		// identity is the unit of claim.
		s.applyPenalty()
		s.publish(events.TypeDifferenceError, events.DifferenceErrorPayload{
			PlayerID: playerID,
			Point:    point,
		})
		s.publishTimer()
		result := &ClickResult{IsDifferent: false, GroupIndex: -1, RemainingGroups: s.groupsLeft}
		s.checkTimeUp()
		return result, nil
	}

	pixels := s.groups[groupIdx]
	for _, c := range pixels {
		delete(s.remaining, c)
	}
	s.groupsLeft--

	player := s.playerByID(playerID)
	if player != nil {
		player.Score++
	}

	s.applyBonus()
	s.publish(events.TypeDifferenceFound, events.DifferenceFoundPayload{
		PlayerID:        playerID,
		GroupIndex:      groupIdx,
		DifferentPixels: pixels,
		RemainingGroups: s.groupsLeft,
		Score:           s.scoreOf(playerID),
	})
	s.publishTimer()

	result := &ClickResult{
		IsDifferent:     true,
		GroupIndex:      groupIdx,
		DifferentPixels: pixels,
		RemainingGroups: s.groupsLeft,
	}

	if s.groupsLeft == 0 {
		s.handleGameComplete()
	}
	return result, nil
}

// handleGameComplete fires when the last region of the current game is
// claimed: classic mode ends in a win, limited mode moves on to the next
// unplayed game.
func (s *Session) handleGameComplete() {
	if !s.mode.IsLimited() {
		s.end(StateEnded, OutcomeWin, s.bestPlayerID())
		return
	}

	// The catalog lookup does I/O, so it runs outside the session loop
	// and reports back as a command.
	s.fetching = true
	played := make(map[string]bool, len(s.played))
	for id := range s.played {
		played[id] = true
	}
	go s.fetchNextGame(played)
}

func (s *Session) fetchNextGame(played map[string]bool) {
	gameID, info, err := s.provider.NextGame(s.ctx, played)
	if err != nil {
		if !errors.Is(err, ErrEndOfSequence) {
			logger.Error("failed to load next limited game", "session_id", s.id, "error", err)
		}
		select {
		case s.cmds <- endSequenceCmd{}:
		case <-s.done:
		}
		return
	}

	select {
	case s.cmds <- attachCmd{gameID: gameID, info: info}:
	case <-s.done:
	}
}

func (s *Session) handleHint() ([]raster.Coordinate, error) {
	if s.state != StateRunning || s.fetching {
		return nil, ErrSessionClosed
	}
	if s.hintsUsed >= HintBudget {
		return nil, ErrHintsExhausted
	}

	indexes := s.remainingGroupIndexes()
	if len(indexes) == 0 {
		return nil, ErrHintsExhausted
	}
	groupIdx := indexes[rand.IntN(len(indexes))]

	group := s.groups[groupIdx]
	pixels := make([]raster.Coordinate, 0, len(group)/hintSampleStride+1)
	for i := 0; i < len(group); i += hintSampleStride {
		pixels = append(pixels, group[i])
	}

	s.hintsUsed++
	s.publish(events.TypeHintRevealed, events.HintRevealedPayload{
		Pixels:     pixels,
		HintsUsed:  s.hintsUsed,
		HintBudget: HintBudget,
	})
	return pixels, nil
}

func (s *Session) handleCheat() bool {
	s.cheat = !s.cheat

	payload := events.CheatToggledPayload{Active: s.cheat}
	if s.cheat {
		payload.Pixels = s.remainingPixels()
	}
	s.publish(events.TypeCheatToggled, payload)
	return s.cheat
}

func (s *Session) handleLeave(playerID string) {
	if s.state == StateEnded || s.state == StateAbandoned {
		return
	}

	if s.mode.IsDuo() {
		for _, p := range s.players {
			if p.ID != playerID {
				s.end(StateAbandoned, OutcomeForfeit, p.ID)
				return
			}
		}
	}
	s.end(StateAbandoned, OutcomeAbandoned, "")
}

// handleTick advances the shared clock. Fetching the next limited game
// pauses click handling only; load latency is still charged to the run.
func (s *Session) handleTick() {
	if s.state != StateRunning {
		return
	}

	if s.mode.IsLimited() {
		s.elapsed++
	} else {
		s.secondsLeft--
	}
	s.publishTimer()
	s.checkTimeUp()
}

// end performs the terminal transition exactly once. The context cancel
// stops the ticker and any in-flight next-game fetch the instant the session
// ends, and closing done releases every waiting caller.
func (s *Session) end(state State, outcome Outcome, winnerID string) {
	if s.state == StateEnded || s.state == StateAbandoned {
		return
	}
	s.state = state
	s.outcome = outcome
	s.winnerID = winnerID

	s.publish(events.TypeGameEnded, events.GameEndedPayload{
		Outcome:  string(outcome),
		WinnerID: winnerID,
	})
	logger.SessionEvent(s.id, "ended", "outcome", string(outcome), "winner_id", winnerID)

	s.cancel()
	close(s.done)
}

func (s *Session) applyPenalty() {
	if s.mode.IsLimited() {
		s.elapsed += s.consts.PenaltyTime
	} else {
		s.secondsLeft -= s.consts.PenaltyTime
		if s.secondsLeft < 0 {
			s.secondsLeft = 0
		}
	}
}

func (s *Session) applyBonus() {
	if s.mode.IsLimited() {
		s.elapsed -= s.consts.BonusTime
		if s.elapsed < 0 {
			s.elapsed = 0
		}
	} else {
		s.secondsLeft += s.consts.BonusTime
	}
}

// clockSeconds returns the player-facing clock reading.
func (s *Session) clockSeconds() int {
	if s.mode.IsLimited() {
		left := s.budget - s.elapsed
		if left < 0 {
			return 0
		}
		return left
	}
	if s.secondsLeft < 0 {
		return 0
	}
	return s.secondsLeft
}

func (s *Session) checkTimeUp() {
	if s.state != StateRunning {
		return
	}
	if s.mode.IsLimited() {
		if s.elapsed >= s.budget {
			s.end(StateEnded, OutcomeTimeUp, "")
		}
		return
	}
	if s.secondsLeft <= 0 {
		s.end(StateEnded, OutcomeTimeUp, "")
	}
}

func (s *Session) publishTimer() {
	s.publish(events.TypeTimerUpdated, events.TimerUpdatedPayload{Seconds: s.clockSeconds()})
}

func (s *Session) publish(eventType events.Type, payload any) {
	s.bus.Publish(&events.Event{
		Type:      eventType,
		RoomID:    s.roomID,
		SessionID: s.id,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func (s *Session) playerByID(id string) *Player {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) scoreOf(id string) int {
	if p := s.playerByID(id); p != nil {
		return p.Score
	}
	return 0
}

// bestPlayerID returns the highest-scoring player, or empty on a tie.
func (s *Session) bestPlayerID() string {
	if len(s.players) == 1 {
		return s.players[0].ID
	}
	best, runnerUp := "", -1
	bestScore := -1
	for _, p := range s.players {
		if p.Score > bestScore {
			runnerUp = bestScore
			bestScore = p.Score
			best = p.ID
		} else if p.Score > runnerUp {
			runnerUp = p.Score
		}
	}
	if bestScore == runnerUp {
		return ""
	}
	return best
}

func (s *Session) remainingGroupIndexes() []int {
	seen := make(map[int]bool)
	var indexes []int
	for _, idx := range s.remaining {
		if !seen[idx] {
			seen[idx] = true
			indexes = append(indexes, idx)
		}
	}
	return indexes
}

func (s *Session) remainingPixels() []raster.Coordinate {
	pixels := make([]raster.Coordinate, 0, len(s.remaining))
	for c := range s.remaining {
		pixels = append(pixels, c)
	}
	return pixels
}

func (s *Session) buildSnapshot() Snapshot {
	players := make([]Player, len(s.players))
	for i, p := range s.players {
		players[i] = *p
	}
	playedIDs := make([]string, 0, len(s.played))
	for id := range s.played {
		playedIDs = append(playedIDs, id)
	}
	return Snapshot{
		ID:              s.id,
		RoomID:          s.roomID,
		Mode:            s.mode,
		State:           s.state,
		Outcome:         s.outcome,
		WinnerID:        s.winnerID,
		Players:         players,
		CurrentGameID:   s.gameID,
		SecondsLeft:     s.clockSeconds(),
		RemainingGroups: s.groupsLeft,
		HintsUsed:       s.hintsUsed,
		CheatActive:     s.cheat,
		PlayedGameIDs:   playedIDs,
	}
}
