package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// adminServer is a read-only diagnostics surface, unauthenticated and
// unencrypted by design: it exposes liveness, the session count and a
// per-session summary, and carries no session-mutating routes.
type adminServer struct {
	srv    *http.Server
	server *Server
	log    zerolog.Logger
}

func newAdminServer(addr string, s *Server) *adminServer {
	a := &adminServer{server: s, log: s.log}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/sessions", a.handleSessions)
	a.srv = &http.Server{Addr: addr, Handler: mux}
	return a
}

func (a *adminServer) Start() {
	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Warn().Err(err).Msg("admin server error")
		}
	}()
}

func (a *adminServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	a.srv.Shutdown(ctx)
}

func (a *adminServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": int(a.server.count.Load()),
	})
}

func (a *adminServer) handleSessions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.server.Sessions())
}
