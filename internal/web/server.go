// Package web provides the HTTP surface of the sleepcheck daemon: a status
// page for the room, per-child state, the start/check/stop actions and the
// day report.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sweeney/sleepcheck/internal/action"
	"github.com/sweeney/sleepcheck/internal/alert"
	"github.com/sweeney/sleepcheck/internal/card"
	"github.com/sweeney/sleepcheck/internal/logic"
	"github.com/sweeney/sleepcheck/internal/status"
	"github.com/sweeney/sleepcheck/internal/store"
)

// Recorder is the action surface the server drives.
type Recorder interface {
	RecordStart(ctx context.Context, childID string, obs action.Observation) (logic.Event, error)
	RecordCheck(ctx context.Context, childID string, obs action.Observation) (logic.Event, error)
	RecordStop(ctx context.Context, childID string, obs action.Observation) (logic.Event, error)
}

// Options configures a Server. Tracker is required.
type Options struct {
	Addr       string
	Tracker    *status.Tracker
	Cards      *card.Manager
	Actions    Recorder
	Store      store.Store
	Permission *alert.PermissionState
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

// Server serves the status page and the API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	cards      *card.Manager
	actions    Recorder
	store      store.Store
	permission *alert.PermissionState
	loc        *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		tracker:    opts.Tracker,
		cards:      opts.Cards,
		actions:    opts.Actions,
		store:      opts.Store,
		permission: opts.Permission,
		loc:        opts.Location,
		now:        opts.Now,
		logger:     opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /api/children/{id}", s.handleChild)
	mux.HandleFunc("POST /api/children/{id}/{action}", s.handleAction)
	mux.HandleFunc("GET /api/children/{id}/days/{date}", s.handleDay)
	mux.HandleFunc("GET /api/notifications/permission", s.handleGetPermission)
	mux.HandleFunc("POST /api/notifications/permission", s.handleRequestPermission)
	mux.HandleFunc("DELETE /api/notifications/permission", s.handleResetPermission)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// snapshot is the tracker's view with live card and permission state.
func (s *Server) snapshot() status.Snapshot {
	snap := s.tracker.Snapshot()
	if s.cards != nil {
		snaps := s.cards.Snapshots()
		snap.Children = make([]status.Child, len(snaps))
		for i, cs := range snaps {
			snap.Children[i] = status.ChildFromCard(cs)
		}
	}
	if s.permission != nil {
		snap.Permission = string(s.permission.Permission())
	}
	return snap
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, s.snapshot()); err != nil {
		s.logger.Warn("render status page", zap.Error(err))
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.snapshot()))
}
