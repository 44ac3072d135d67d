// Package web exposes one info panel over HTTP. Commands drive the session
// controller; a websocket pushes every state change to the page.
package web

import (
	"context"
	"net/http"

	"musicinfo/internal/cache"
	"musicinfo/internal/logger"
	"musicinfo/internal/session"
)

// CacheLister lists stored cache entries.
type CacheLister interface {
	CacheEntries() []cache.EntryInfo
}

// Runner starts tracked background work that is waited for on shutdown.
type Runner interface {
	Go(fn func(ctx context.Context))
}

type Server struct {
	ctx     context.Context
	panel   *session.Controller
	entries CacheLister
	jobMgr  *JobManager
	workers Runner
	logger  *logger.Logger
}

// NewServer creates the panel server. Websockets close when ctx is done;
// load jobs run through workers.
func NewServer(ctx context.Context, panel *session.Controller, entries CacheLister, jobMgr *JobManager, workers Runner, log *logger.Logger) *Server {
	return &Server{
		ctx:     ctx,
		panel:   panel,
		entries: entries,
		jobMgr:  jobMgr,
		workers: workers,
		logger:  log,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("PUT /api/track", s.handleSetTrack)
	mux.HandleFunc("DELETE /api/track", s.handleClearTrack)
	mux.HandleFunc("PUT /api/online", s.handleOnline)
	mux.HandleFunc("PUT /api/panel", s.handlePanel)
	mux.HandleFunc("POST /api/panel/toggle", s.handleTogglePanel)

	mux.HandleFunc("POST /api/load", s.handleLoad)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancelJob)

	mux.HandleFunc("GET /api/cache", s.handleListCache)
	mux.HandleFunc("DELETE /api/cache", s.handleClearCache)

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return s.loggingMiddleware(mux)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
