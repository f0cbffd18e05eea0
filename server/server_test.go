package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelhunt/pixelhunt/cache"
	"github.com/pixelhunt/pixelhunt/detect"
	"github.com/pixelhunt/pixelhunt/events"
	"github.com/pixelhunt/pixelhunt/game"
	"github.com/pixelhunt/pixelhunt/raster"
	"github.com/pixelhunt/pixelhunt/storage"
	"github.com/pixelhunt/pixelhunt/storage/local"
)

type testEnv struct {
	srv      *httptest.Server
	store    *local.FileStore
	registry *game.Registry
	cache    *cache.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := local.NewFileStore(t.TempDir())
	require.NoError(t, err)
	diffCache := cache.NewMemoryStore()
	bus := events.NewBus()
	constants := game.NewConstantsHolder(game.DefaultConstants())

	registry := game.NewRegistry(game.RegistryConfig{
		Bus:          bus,
		Constants:    constants,
		Cache:        diffCache,
		Differences:  store,
		Catalog:      store,
		TickInterval: time.Hour,
	})
	engine := detect.NewEngine(detect.Config{
		Cache:       diffCache,
		Assets:      store,
		Differences: store,
		Catalog:     store,
		Radius:      2,
	})

	s := New(Config{
		Registry:    registry,
		Detector:    engine,
		Catalog:     store,
		Differences: store,
		Assets:      store,
		Constants:   constants,
		AssetPath:   store.AssetPath,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: store, registry: registry, cache: diffCache}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func uploadPair(t *testing.T, e *testEnv, spots ...raster.Coordinate) *detect.Result {
	t.Helper()
	white := raster.New(raster.Pixel{R: 255, G: 255, B: 255})
	modified := white.WithPixels(spots, raster.Pixel{R: 0, G: 0, B: 0})

	resp := e.do(t, http.MethodPost, "/api/detections", map[string]string{
		"image1": base64.StdEncoding.EncodeToString(raster.Encode(white)),
		"image2": base64.StdEncoding.EncodeToString(raster.Encode(modified)),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	result := decodeBody[*detect.Result](t, resp)
	return result
}

var gameSpots = []raster.Coordinate{{X: 50, Y: 50}, {X: 200, Y: 120}, {X: 400, Y: 300}}

func TestDetectionEndpoint(t *testing.T) {
	e := newTestEnv(t)

	result := uploadPair(t, e, gameSpots...)
	assert.Equal(t, 3, result.NumberOfDifferences)
	assert.NotEmpty(t, result.JobID)

	// The uploaded assets are served back.
	resp, err := e.srv.Client().Get(e.srv.URL + result.ThumbnailURL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDetectionEndpoint_IdenticalImages(t *testing.T) {
	e := newTestEnv(t)

	// Uploading the same image twice reports zero differences rather than
	// rejecting the pair.
	white := base64.StdEncoding.EncodeToString(raster.Encode(raster.New(raster.Pixel{R: 255, G: 255, B: 255})))
	resp := e.do(t, http.MethodPost, "/api/detections", map[string]string{
		"image1": white, "image2": white,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	result := decodeBody[*detect.Result](t, resp)
	assert.Equal(t, 0, result.NumberOfDifferences)
	assert.Equal(t, 0, result.DifferentPixelsCount)
	assert.Equal(t, 0, e.cache.Len(), "an empty detection produces no playable game")
}

func TestDetectionEndpoint_BadInput(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/api/detections", map[string]string{
		"image1": "!!not-base64!!", "image2": "!!also-not!!",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/detections", map[string]string{"image1": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDetectionEndpoint_UnplayableRegionCount(t *testing.T) {
	e := newTestEnv(t)

	white := raster.New(raster.Pixel{R: 255, G: 255, B: 255})
	modified := white.WithPixels([]raster.Coordinate{{X: 5, Y: 5}}, raster.Pixel{})
	resp := e.do(t, http.MethodPost, "/api/detections", map[string]string{
		"image1": base64.StdEncoding.EncodeToString(raster.Encode(white)),
		"image2": base64.StdEncoding.EncodeToString(raster.Encode(modified)),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestDetectionCancel(t *testing.T) {
	e := newTestEnv(t)
	result := uploadPair(t, e, gameSpots...)

	resp := e.do(t, http.MethodDelete, "/api/detections/"+result.JobID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, http.MethodDelete, "/api/detections/"+result.JobID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGameLifecycle(t *testing.T) {
	e := newTestEnv(t)
	result := uploadPair(t, e, gameSpots...)

	resp := e.do(t, http.MethodPost, "/api/games", map[string]string{
		"jobId": result.JobID, "name": "city night",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[storage.Game](t, resp)
	assert.Equal(t, "city night", created.Name)
	assert.Equal(t, result.JobID, created.ID)

	resp = e.do(t, http.MethodGet, "/api/games", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	games := decodeBody[[]storage.Game](t, resp)
	require.Len(t, games, 1)

	resp = e.do(t, http.MethodDelete, "/api/games/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/games", nil)
	games = decodeBody[[]storage.Game](t, resp)
	assert.Empty(t, games)

	resp = e.do(t, http.MethodDelete, "/api/games/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfirmUnknownJob(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodPost, "/api/games", map[string]string{
		"jobId": "no-such-job", "name": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConstantsEndpoint(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/api/constants", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	consts := decodeBody[game.Constants](t, resp)
	assert.Equal(t, 30, consts.InitialTime)

	resp = e.do(t, http.MethodPatch, "/api/constants", game.Constants{
		InitialTime: 45, BonusTime: 7, PenaltyTime: 3,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/constants", nil)
	consts = decodeBody[game.Constants](t, resp)
	assert.Equal(t, 45, consts.InitialTime)
	assert.Equal(t, 7, consts.BonusTime)

	resp = e.do(t, http.MethodPatch, "/api/constants", game.Constants{InitialTime: 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoomStateEndpoint(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/api/rooms/room-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	result := uploadPair(t, e, gameSpots...)
	session, err := e.registry.CreateOrJoin(context.Background(), "room-1", result.JobID,
		game.SoloClassic, game.Player{ID: "p1"})
	require.NoError(t, err)
	t.Cleanup(session.Close)

	resp = e.do(t, http.MethodGet, "/api/rooms/room-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decodeBody[roomStateResponse](t, resp)
	assert.Equal(t, game.StateRunning, state.State)
	assert.Equal(t, 3, state.RemainingGroups)
	assert.Len(t, state.Players, 1)

	resp = e.do(t, http.MethodDelete, "/api/rooms/room-1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, http.MethodDelete, "/api/rooms/room-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAssetTraversalBlocked(t *testing.T) {
	e := newTestEnv(t)
	url := fmt.Sprintf("%s/assets/%s", e.srv.URL, "..%2F..%2Fetc%2Fpasswd")
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
