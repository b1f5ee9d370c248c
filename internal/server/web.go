// Package server is the daemon's HTTP front: the token-guarded control
// RPC, the display bridge websocket, cached media for renderers, and
// Prometheus metrics, all on one listener.
package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signloop/signloop/pkg/logger"
)

type WebServer struct {
	lg       logger.Logger
	addr     string
	secret   string
	cacheDir string
	rpc      *RPCServer
	hub      *DisplayHub
	server   *http.Server
	mu       sync.Mutex
}

// NewWebServer wires the route handlers together. rpc and hub may be
// nil; the corresponding routes are then left out.
func NewWebServer(lg logger.Logger, addr, secret, cacheDir string, rpc *RPCServer, hub *DisplayHub) *WebServer {
	if lg == nil {
		lg = &logger.NopLogger{}
	}
	return &WebServer{
		lg:       lg,
		addr:     addr,
		secret:   secret,
		cacheDir: cacheDir,
		rpc:      rpc,
		hub:      hub,
	}
}

// Handler builds the route table. Only the RPC endpoint is token
// guarded: media and the display bridge exist for the renderer, which
// cannot set websocket headers from a browser, so for those the bind
// address is the boundary.
func (s *WebServer) Handler() http.Handler {
	r := mux.NewRouter()
	if s.rpc != nil {
		r.Handle("/rpc", requireToken(s.secret, s.rpc.bridge)).Methods(http.MethodPost)
	}
	if s.hub != nil {
		r.HandleFunc("/ws/display", s.hub.Accept).Methods(http.MethodGet)
	}
	if s.cacheDir != "" {
		r.HandleFunc("/media/{name}", s.serveMedia).Methods(http.MethodGet, http.MethodHead)
	}
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	return r
}

// serveMedia hands a cached file to the renderer. ServeFile gives us
// range requests, which video renderers use to seek.
func (s *WebServer) serveMedia(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.Error(w, "bad media name", http.StatusBadRequest)
		return
	}
	if strings.HasSuffix(name, ".part") {
		// Staging files of in-flight downloads are not playable.
		http.NotFound(w, r)
		return
	}
	p := filepath.Join(s.cacheDir, name)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, p)
}

func (s *WebServer) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (s *WebServer) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}
	s.mu.Unlock()

	s.lg.Info("control server listening on %s", s.addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil // Expected during shutdown
	}
	return err
}

// Shutdown gracefully stops the web server.
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
