package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pixelhunt/pixelhunt/detect"
	"github.com/pixelhunt/pixelhunt/diff"
	"github.com/pixelhunt/pixelhunt/game"
	"github.com/pixelhunt/pixelhunt/logger"
	"github.com/pixelhunt/pixelhunt/raster"
	"github.com/pixelhunt/pixelhunt/storage"
)

// detectionRequest is a pair of base64-encoded BMP uploads.
type detectionRequest struct {
	Image1 string `json:"image1"`
	Image2 string `json:"image2"`
}

// confirmRequest turns a pending detection into a catalog game.
type confirmRequest struct {
	JobID string `json:"jobId"`
	Name  string `json:"name"`
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleRunDetection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var req detectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Image1 == "" || req.Image2 == "" {
		writeError(w, http.StatusBadRequest, "image1 and image2 are required")
		return
	}

	result, err := s.cfg.Detector.Run(r.Context(), req.Image1, req.Image2)
	if err != nil {
		var formatErr *raster.FormatError
		switch {
		case errors.As(err, &formatErr):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, diff.ErrRegionCount):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			logger.ErrorContext(r.Context(), "detection failed", "error", err)
			writeError(w, http.StatusInternalServerError, "detection failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleCancelDetection(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobID")
	if err := s.cfg.Detector.Cancel(r.Context(), jobID); err != nil {
		if errors.Is(err, detect.ErrUnknownJob) {
			writeError(w, http.StatusNotFound, "unknown detection job")
			return
		}
		logger.ErrorContext(r.Context(), "detection cancel failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "cancel failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfirmGame(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.JobID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "jobId and name are required")
		return
	}

	gameEntry, err := s.cfg.Detector.Confirm(r.Context(), req.JobID, req.Name)
	if err != nil {
		if errors.Is(err, detect.ErrUnknownJob) {
			writeError(w, http.StatusNotFound, "unknown detection job")
			return
		}
		logger.ErrorContext(r.Context(), "game confirm failed", "job_id", req.JobID, "error", err)
		writeError(w, http.StatusInternalServerError, "confirm failed")
		return
	}

	writeJSON(w, http.StatusCreated, gameEntry)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.cfg.Catalog.LoadCatalog(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "catalog load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	if games == nil {
		games = []storage.Game{}
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameID")

	games, err := s.cfg.Catalog.LoadCatalog(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "catalog load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}

	var removed *storage.Game
	kept := make([]storage.Game, 0, len(games))
	for _, g := range games {
		if g.ID == gameID {
			removed = &g
			continue
		}
		kept = append(kept, g)
	}
	if removed == nil {
		writeError(w, http.StatusNotFound, "unknown game")
		return
	}

	if err := s.cfg.Catalog.SaveCatalog(r.Context(), kept); err != nil {
		logger.ErrorContext(r.Context(), "catalog save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "catalog update failed")
		return
	}

	// Artifact cleanup is best effort once the game is out of the catalog.
	if err := s.cfg.Differences.DeleteDifferences(r.Context(), gameID); err != nil {
		logger.WarnContext(r.Context(), "difference cleanup failed", "game_id", gameID, "error", err)
	}
	urls := []string{removed.OriginalURL, removed.ModifiedURL, removed.DifferenceURL, removed.ThumbnailURL}
	if err := s.cfg.Assets.DeleteAssets(r.Context(), urls...); err != nil {
		logger.WarnContext(r.Context(), "asset cleanup failed", "game_id", gameID, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// roomStateResponse is the read-only session view for spectating dashboards.
type roomStateResponse struct {
	SessionID       string        `json:"sessionId"`
	RoomID          string        `json:"roomId"`
	Mode            game.Mode     `json:"mode"`
	State           game.State    `json:"state"`
	Outcome         game.Outcome  `json:"outcome,omitempty"`
	WinnerID        string        `json:"winnerId,omitempty"`
	Players         []game.Player `json:"players"`
	CurrentGameID   string        `json:"currentGameId,omitempty"`
	SecondsLeft     int           `json:"secondsLeft"`
	RemainingGroups int           `json:"remainingGroups"`
	HintsUsed       int           `json:"hintsUsed"`
}

func (s *Server) handleRoomState(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	session, ok := s.cfg.Registry.Lookup(roomID)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for room")
		return
	}

	snap, err := session.Snapshot(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "snapshot failed", "room_id", roomID, "error", err)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	writeJSON(w, http.StatusOK, roomStateResponse{
		SessionID:       snap.ID,
		RoomID:          snap.RoomID,
		Mode:            snap.Mode,
		State:           snap.State,
		Outcome:         snap.Outcome,
		WinnerID:        snap.WinnerID,
		Players:         snap.Players,
		CurrentGameID:   snap.CurrentGameID,
		SecondsLeft:     snap.SecondsLeft,
		RemainingGroups: snap.RemainingGroups,
		HintsUsed:       snap.HintsUsed,
	})
}

func (s *Server) handleCloseRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	if err := s.cfg.Registry.Close(roomID); err != nil {
		if errors.Is(err, game.ErrNoSession) {
			writeError(w, http.StatusNotFound, "no session for room")
			return
		}
		logger.ErrorContext(r.Context(), "room close failed", "room_id", roomID, "error", err)
		writeError(w, http.StatusInternalServerError, "close failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetConstants(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Constants.Snapshot())
}

func (s *Server) handleUpdateConstants(w http.ResponseWriter, r *http.Request) {
	var consts game.Constants
	if err := json.NewDecoder(r.Body).Decode(&consts); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if consts.InitialTime <= 0 || consts.BonusTime < 0 || consts.PenaltyTime < 0 {
		writeError(w, http.StatusBadRequest, "constants out of range")
		return
	}

	s.cfg.Constants.Update(consts)
	logger.InfoContext(r.Context(), "constants updated",
		"initial", consts.InitialTime, "bonus", consts.BonusTime, "penalty", consts.PenaltyTime)
	writeJSON(w, http.StatusOK, consts)
}
