// Package httpapi binds the shiftdesk operation surface to HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/example/shiftdesk/internal/ports/primary"
	"github.com/example/shiftdesk/internal/version"
)

// ExitEnqueuer accepts exit statistics updates for asynchronous application.
type ExitEnqueuer interface {
	Enqueue(req primary.ExitStatsRequest) bool
}

// Services are the primary ports the API serves.
type Services struct {
	Shifts    primary.ShiftRegistry
	Handovers primary.HandoverCoordinator
	Linkage   primary.LinkageService
	Reports   primary.ReportService
	Ledger    primary.LedgerService
	ExitQueue ExitEnqueuer // nil applies exits synchronously
}

// Options tune the server surface.
type Options struct {
	Metrics        bool
	JWTSecret      string       // empty disables auth
	Events         http.Handler // websocket hub, optional
	RequestTimeout time.Duration
}

// Server is the shiftdesk HTTP API server.
type Server struct {
	svc    Services
	opts   Options
	logger *slog.Logger
}

// NewServer creates a new API server.
func NewServer(svc Services, opts Options, logger *slog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{svc: svc, opts: opts, logger: logger}
}

// Handler returns the instrumented router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(countRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.String(),
		})
	})

	if s.opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	if s.opts.Events != nil {
		r.Handle("/ws/events", s.opts.Events)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
		if s.opts.JWTSecret != "" {
			r.Use(requireOperator([]byte(s.opts.JWTSecret)))
		}

		r.Route("/shifts", func(r chi.Router) {
			r.Post("/", s.handleStartShift)
			r.Get("/", s.handleListShifts)
			r.Get("/active", s.handleActiveShift)
			r.Route("/{shiftID}", func(r chi.Router) {
				r.Get("/", s.handleGetShift)
				r.Post("/end", s.handleEndShift)
				r.Post("/emergency-end", s.handleEmergencyEnd)
				r.Post("/handover", s.handleHandover)
				r.Get("/report", s.handleReport)
				r.Get("/linking", s.handleValidateLinking)
				r.Get("/stats", s.handleLiveStats)
			})
		})

		r.Route("/handovers", func(r chi.Router) {
			r.Get("/", s.handleListHandovers)
			r.Post("/resume", s.handleResumeHandover)
		})

		r.Route("/link", func(r chi.Router) {
			r.Post("/session", s.handleLinkSession)
			r.Post("/payment", s.handleLinkPayment)
			r.Post("/exit", s.handleLinkExit)
		})
		r.Post("/reconcile", s.handleReconcile)

		r.Route("/vehicles", func(r chi.Router) {
			r.Post("/", s.handleRecordEntry)
			r.Get("/parked", s.handleListParked)
			r.Get("/{entryID}", s.handleGetEntry)
			r.Post("/{entryID}/exit", s.handleRecordExit)
			r.Post("/{entryID}/payment", s.handleRecordPayment)
		})
		r.Get("/fees", s.handleFeeSchedule)
	})

	return otelhttp.NewHandler(r, "shiftdesk.http")
}
