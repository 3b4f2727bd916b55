// Package api provides the HTTP API for fnopart.
//
// It exposes signal computation for a date pair, the default date pair,
// cache control, Prometheus metrics and a WebSocket stream of computation
// progress.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/fnopart/internal/analysis/participant"
	"github.com/seenimoa/fnopart/internal/config"
	"github.com/seenimoa/fnopart/internal/datasource"
	"github.com/seenimoa/fnopart/internal/logger"
	"github.com/seenimoa/fnopart/internal/metrics"
	"github.com/seenimoa/fnopart/internal/pipeline"
	"github.com/seenimoa/fnopart/internal/table"
	"github.com/seenimoa/fnopart/pkg/models"
	"github.com/seenimoa/fnopart/pkg/utils"
)

// computeTimeout bounds one signal request: a handshake plus three downloads.
const computeTimeout = 2 * time.Minute

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	svc     *pipeline.Service
	metrics *metrics.Recorder
	wsHub   *WSHub
	log     *logrus.Entry
	version string
	now     func() time.Time
}

// Options wires a Server. Config and Service are required.
type Options struct {
	Config  *config.Config
	Service *pipeline.Service
	Metrics *metrics.Recorder
	Logger  logrus.FieldLogger
	Version string
}

// NewServer creates a configured API server with all routes and middleware.
// Pipeline progress events are forwarded to WebSocket clients.
func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	srv := &Server{
		cfg:     opts.Config,
		svc:     opts.Service,
		metrics: opts.Metrics,
		wsHub:   NewWSHub(),
		log:     logger.WithComponent(log, "api"),
		version: opts.Version,
		now:     utils.NowIST,
	}
	srv.svc.Subscribe(pipeline.ObserverFunc(func(e pipeline.Event) {
		srv.wsHub.Broadcast(WSMessage{Type: MsgProgress, Data: e})
	}))

	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: computeTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.log, NoColor: true}))
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	if s.cfg.Metrics.Enabled && s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/dates/default", s.handleDefaultDates)
		r.Get("/signals", s.handleSignals)
		r.Delete("/cache", s.handleClearCache)

		r.Get("/config", s.handleGetConfig)
		r.Get("/config/secrets", s.handleGetConfigSecrets)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// ============================================================
// Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Field      string      `json:"field,omitempty"` // set for date validation errors
	Disclaimer string      `json:"disclaimer,omitempty"`
}

// DatesResponse is returned by GET /api/v1/dates/default.
type DatesResponse struct {
	Current         string   `json:"current"`
	Previous        string   `json:"previous"`
	HolidayWarnings []string `json:"holiday_warnings,omitempty"`
}

// ClearCacheResponse is returned by DELETE /api/v1/cache.
type ClearCacheResponse struct {
	Cleared int    `json:"cleared"`
	Message string `json:"message"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":         "ok",
			"version":        s.version,
			"market_status":  utils.MarketStatus(now),
			"time_ist":       utils.FormatDateTimeIST(now),
			"signal_variant": s.svc.Variant(),
			"ws_clients":     s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleDefaultDates(w http.ResponseWriter, r *http.Request) {
	current, previous := s.svc.ResolveDefaultDates()
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: DatesResponse{
			Current:         utils.FormatDateIST(current),
			Previous:        utils.FormatDateIST(previous),
			HolidayWarnings: holidayWarnings(previous, current),
		},
	})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	current, previous := s.svc.ResolveDefaultDates()
	var err error
	if v := q.Get("current"); v != "" {
		if current, err = utils.ParseDateIST(v); err != nil {
			s.writeJSON(w, http.StatusBadRequest, APIResponse{Error: "current must be a YYYY-MM-DD date", Field: "current"})
			return
		}
		previous = utils.PreviousWorkingDay(current)
	}
	if v := q.Get("previous"); v != "" {
		if previous, err = utils.ParseDateIST(v); err != nil {
			s.writeJSON(w, http.StatusBadRequest, APIResponse{Error: "previous must be a YYYY-MM-DD date", Field: "previous"})
			return
		}
	}
	var variant participant.Variant
	if v := q.Get("variant"); v != "" {
		if variant, err = participant.ParseVariant(v); err != nil {
			s.writeJSON(w, http.StatusBadRequest, APIResponse{Error: err.Error(), Field: "variant"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), computeTimeout)
	defer cancel()

	report, err := s.svc.Compute(ctx, pipeline.Request{Previous: previous, Current: current, Variant: variant})
	if err != nil {
		status, resp := errorResponse(err)
		s.writeJSON(w, status, resp)
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Success:    true,
		Data:       report,
		Disclaimer: models.Disclaimer,
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	n := s.svc.ClearFetchCache()
	s.wsHub.Broadcast(WSMessage{Type: MsgCacheCleared, Data: map[string]int{"cleared": n}})
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ClearCacheResponse{Cleared: n, Message: "Cache cleared successfully!"},
	})
}

// errorResponse maps a computation error to a status and envelope.
func errorResponse(err error) (int, APIResponse) {
	var (
		ve *pipeline.ValidationError
		fe *datasource.FetchError
		pe *table.ParseError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, APIResponse{Error: ve.Message, Field: ve.Field}
	case errors.As(err, &fe):
		msg := "Failed to fetch data from NSE: " + fe.Error()
		if fe.NotFound() {
			msg = "NSE has not published " + fe.Resource + " data for the selected date: " + fe.Error()
		}
		return http.StatusBadGateway, APIResponse{Error: msg}
	case errors.As(err, &pe):
		return http.StatusInternalServerError, APIResponse{Error: "Failed to parse NSE data: " + pe.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, APIResponse{Error: "Timed out fetching NSE data"}
	default:
		return http.StatusInternalServerError, APIResponse{Error: err.Error()}
	}
}

// holidayWarnings names NSE holidays among the given dates.
func holidayWarnings(dates ...time.Time) []string {
	var out []string
	for _, d := range dates {
		if name := utils.HolidayName(d); name != "" {
			out = append(out, utils.FormatDateIST(d)+" is an NSE holiday ("+name+"); archives may be missing")
		}
	}
	return out
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).WithField("status", status).Warn("failed to write JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
