// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/tenure/internal/adapters/dataset"
	service "github.com/okian/tenure/internal/app"
	"github.com/okian/tenure/internal/domain/model"
	"github.com/okian/tenure/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// Submit queues an analysis. Returns service.ErrQueueFull on backpressure.
	Submit(ctx context.Context, sub service.Submission) (model.Job, error)

	Get(ctx context.Context, id string) (model.Job, error)
	GetReport(ctx context.Context, id string) (service.Report, error)
	ListJobs(ctx context.Context, limit int) ([]model.Job, error)

	StatsProvider
	Pinger
}

// Default request limits.
const (
	defaultMaxBodyBytes = 64 << 20
	defaultListLimit    = 50
	defaultMaxListLimit = 500
)

type options struct {
	schema       dataset.Schema
	strata       string
	maxBodyBytes int64
	maxListLimit int
	logger       logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*options)

// WithSchema sets the columns used for CSV submissions and the features used
// when a JSON submission names none.
func WithSchema(s dataset.Schema, strata string) Option {
	return func(o *options) {
		o.schema = s
		o.strata = strata
	}
}

// WithMaxBodyBytes caps the size of a submission body.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithMaxListLimit caps the limit accepted by GET /analyses.
func WithMaxListLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxListLimit = n
		}
	}
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Server wires HTTP routes for the analysis API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	analysesHandler *AnalysesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := options{
		maxBodyBytes: defaultMaxBodyBytes,
		maxListLimit: defaultMaxListLimit,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Server{
		healthHandler:   NewHealthHandler(deps),
		statsHandler:    NewStatsHandler(deps),
		analysesHandler: NewAnalysesHandler(deps, o),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /analyses", MetricsMiddleware(s.analysesHandler.HandleSubmit, "analyses_submit"))
	mux.HandleFunc("GET /analyses", MetricsMiddleware(s.analysesHandler.HandleList, "analyses_list"))
	mux.HandleFunc("GET /analyses/{id}", MetricsMiddleware(s.analysesHandler.HandleGet, "analyses_get"))
	mux.HandleFunc("GET /analyses/{id}/hazard_ratios", MetricsMiddleware(s.analysesHandler.HandleHazardRatios, "analyses_hazard_ratios"))
	mux.HandleFunc("GET /analyses/{id}/curves", MetricsMiddleware(s.analysesHandler.HandleCurves, "analyses_curves"))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
