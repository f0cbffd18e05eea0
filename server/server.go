// Package server exposes the engine over HTTP: detection uploads, catalog
// management, runtime constants and the realtime socket endpoint.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pixelhunt/pixelhunt/detect"
	"github.com/pixelhunt/pixelhunt/game"
	"github.com/pixelhunt/pixelhunt/storage"
)

const (
	// defaultReadHeaderTimeout prevents Slowloris attacks.
	defaultReadHeaderTimeout = 10 * time.Second

	// maxUploadBytes bounds a detection upload: two base64 BMPs plus JSON
	// framing fit comfortably in 4MB.
	maxUploadBytes = 4 << 20
)

// Config wires the server to the engine components.
type Config struct {
	Registry    *game.Registry
	Detector    *detect.Engine
	Catalog     storage.CatalogStore
	Differences storage.DifferenceStore
	Assets      storage.AssetStore
	Constants   *game.ConstantsHolder

	// Socket handles websocket upgrades at /ws.
	Socket http.Handler

	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler

	// AssetPath resolves an asset URL path to a file on disk.
	AssetPath func(url string) (string, bool)
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. Defaults to ":8080".
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithReadHeaderTimeout overrides the header read timeout.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) { s.readHeaderTimeout = d }
}

// Server is the HTTP front of the engine.
type Server struct {
	cfg               Config
	addr              string
	readHeaderTimeout time.Duration
	httpSrv           *http.Server
}

// New creates a server.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:               cfg,
		addr:              ":8080",
		readHeaderTimeout: defaultReadHeaderTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full route table wrapped with HTTP tracing.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/detections", s.handleRunDetection)
	mux.HandleFunc("DELETE /api/detections/{jobID}", s.handleCancelDetection)

	mux.HandleFunc("POST /api/games", s.handleConfirmGame)
	mux.HandleFunc("GET /api/games", s.handleListGames)
	mux.HandleFunc("DELETE /api/games/{gameID}", s.handleDeleteGame)

	mux.HandleFunc("GET /api/rooms/{roomID}", s.handleRoomState)
	mux.HandleFunc("DELETE /api/rooms/{roomID}", s.handleCloseRoom)

	mux.HandleFunc("GET /api/constants", s.handleGetConstants)
	mux.HandleFunc("PATCH /api/constants", s.handleUpdateConstants)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if s.cfg.Socket != nil {
		mux.Handle("GET /ws", s.cfg.Socket)
	}
	if s.cfg.Metrics != nil {
		mux.Handle("GET /metrics", s.cfg.Metrics)
	}
	if s.cfg.AssetPath != nil {
		mux.HandleFunc("GET /assets/", s.handleAsset)
	}

	return otelhttp.NewHandler(mux, "pixelhunt-api")
}

// ListenAndServe starts the server on the configured address.
func (s *Server) ListenAndServe() error {
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Serve starts the server on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}
	return s.httpSrv.Serve(ln)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	path, ok := s.cfg.AssetPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
