package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/table-sniper/internal/browser"
	"github.com/example/table-sniper/internal/prefs"
	"github.com/example/table-sniper/internal/store"
	"github.com/example/table-sniper/internal/timer"
)

// Controller is the scheduling surface the API exposes. The concrete
// implementation is timer.Scheduler.
type Controller interface {
	Schedule(ctx context.Context, p prefs.Preferences, tabID string) (timer.Timer, error)
	Cancel(ctx context.Context) (timer.Timer, error)
	Status(ctx context.Context) (timer.Snapshot, error)
	FillNow(ctx context.Context, p prefs.Preferences, tabID string) (bool, error)
}

// TabLister enumerates attachable browser pages.
type TabLister interface {
	Tabs(ctx context.Context) ([]browser.TabInfo, error)
}

type Server struct {
	ctrl  Controller
	store store.Store
	tabs  TabLister
	auth  *Auth
	hub   *hub
	reg   *prometheus.Registry
	log   *slog.Logger

	httpServer *http.Server
}

func NewServer(ctrl Controller, st store.Store, tabs TabLister, auth *Auth, reg *prometheus.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		ctrl:  ctrl,
		store: st,
		tabs:  tabs,
		auth:  auth,
		hub:   newHub(),
		reg:   reg,
		log:   log,
	}
}

// Notify returns the callback the scheduler uses to push status
// transitions to websocket subscribers.
func (s *Server) Notify() func(timer.Timer) {
	return s.hub.Broadcast
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.auth.middleware)

	api.HandleFunc("/session", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleLogout).Methods(http.MethodDelete)

	api.HandleFunc("/schedule", s.handleSchedule).Methods(http.MethodPost)
	api.HandleFunc("/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/status/ws", s.hub.handle).Methods(http.MethodGet)
	api.HandleFunc("/fill-now", s.handleFillNow).Methods(http.MethodPost)
	api.HandleFunc("/preferences", s.handleGetPreferences).Methods(http.MethodGet)
	api.HandleFunc("/preferences", s.handlePutPreferences).Methods(http.MethodPut)
	api.HandleFunc("/tabs", s.handleTabs).Methods(http.MethodGet)

	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondErr(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	respondOK(w, map[string]string{"status": "ok"})
}

type scheduleRequest struct {
	Preferences prefs.Preferences `json:"preferences"`
	TabID       string            `json:"tabId"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	t, err := s.ctrl.Schedule(r.Context(), req.Preferences, req.TabID)
	if err != nil {
		s.writeSchedulerErr(w, err)
		return
	}
	respondOK(w, t)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	t, err := s.ctrl.Cancel(r.Context())
	if err != nil {
		s.writeSchedulerErr(w, err)
		return
	}
	respondOK(w, t)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ctrl.Status(r.Context())
	if err != nil {
		s.writeSchedulerErr(w, err)
		return
	}
	respondOK(w, snap)
}

type fillNowResult struct {
	Success bool `json:"success"`
}

func (s *Server) handleFillNow(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ok, err := s.ctrl.FillNow(r.Context(), req.Preferences, req.TabID)
	if err != nil {
		s.writeSchedulerErr(w, err)
		return
	}
	respondOK(w, fillNowResult{Success: ok})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPreferences(r.Context())
	if errors.Is(err, timer.ErrNotFound) {
		respondOK(w, prefs.Defaults(time.Now()))
		return
	}
	if err != nil {
		s.log.Error("load preferences", "error", err)
		respondErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondOK(w, p)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var p prefs.Preferences
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := p.Validate(); err != nil {
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SetPreferences(r.Context(), p); err != nil {
		s.log.Error("save preferences", "error", err)
		respondErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondOK(w, p)
}

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	if s.tabs == nil {
		respondErr(w, http.StatusServiceUnavailable, "browser not connected")
		return
	}
	tabs, err := s.tabs.Tabs(r.Context())
	if err != nil {
		s.log.Error("list tabs", "error", err)
		respondErr(w, http.StatusBadGateway, "browser unavailable")
		return
	}
	respondOK(w, tabs)
}

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		respondOK(w, map[string]bool{"authenticated": true})
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.auth.login(w, r, req.Password); err != nil {
		respondErr(w, http.StatusUnauthorized, err.Error())
		return
	}
	respondOK(w, map[string]bool{"authenticated": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.auth != nil {
		s.auth.logout(w)
	}
	respondOK(w, map[string]bool{"authenticated": false})
}

func (s *Server) writeSchedulerErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timer.ErrInvalidPreferences),
		errors.Is(err, timer.ErrMissingDropTime),
		errors.Is(err, timer.ErrSchedulePast):
		respondErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, timer.ErrNotFound):
		respondErr(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error("scheduler operation", "error", err)
		respondErr(w, http.StatusInternalServerError, "internal error")
	}
}
