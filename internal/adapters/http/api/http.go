// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/okian/corep/internal/adapters/repository"
	"github.com/okian/corep/internal/domain/model"
	"github.com/okian/corep/internal/domain/template"
	"github.com/okian/corep/internal/domain/types"
	"github.com/okian/corep/internal/domain/validation"
	"github.com/okian/corep/pkg/logger"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Query(ctx context.Context, question, scenario, templateType string) (*types.Report, error)
	Assemble(ctx context.Context, templateType string, ext *model.Extraction, docs []model.RetrievedDocument) (*types.Report, error)
	ExportAudit(fields []model.FieldMapping, docs []model.RetrievedDocument, reasoning, format string) (string, error)
	Schema(templateType string) (template.Schema, error)
	Rules(templateType string) ([]validation.Descriptor, error)
	Report(ctx context.Context, id string) (*types.Report, error)
	RecentReports(ctx context.Context, n int) ([]repository.Summary, error)
}

// Option configures a Server.
type Option func(*Server)

// WithAppInfo sets the name and version reported at GET /.
func WithAppInfo(name, version string) Option {
	return func(s *Server) {
		if name != "" {
			s.appName = name
		}
		if version != "" {
			s.version = version
		}
	}
}

// WithDefaultTemplate sets the template type used when a request omits it.
func WithDefaultTemplate(templateType string) Option {
	return func(s *Server) {
		if templateType != "" {
			s.defaultTemplate = templateType
		}
	}
}

// WithCORSOrigins sets the browser origins allowed to call the API.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithQueryRateLimit limits POST /api/query to rps requests per second
// with the given burst. A non-positive rps disables the limit.
func WithQueryRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the reporting API.
type Server struct {
	deps            Dependencies
	stats           StatsProvider
	validate        *validator.Validate
	limiter         *rate.Limiter
	logger          logger.Logger
	appName         string
	version         string
	defaultTemplate string
	origins         []string

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:            deps,
		stats:           statsProvider,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		limiter:         rate.NewLimiter(2, 5),
		appName:         "COREP Reporting Assistant",
		version:         "0.1.0",
		defaultTemplate: template.OwnFunds,
		origins:         []string{"http://localhost:5173", "http://localhost:3000"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.healthHandler = NewHealthHandler(s.appName, s.version)
	s.statsHandler = NewStatsHandler(statsProvider)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", MetricsMiddleware(s.healthHandler.HandleRoot, "root"))
	mux.HandleFunc("GET /health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleMetrics, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /api/query", MetricsMiddleware(s.rateLimit(s.handleQuery), "query"))
	mux.HandleFunc("POST /api/reports", MetricsMiddleware(s.handleReport, "reports"))
	mux.HandleFunc("GET /api/reports", MetricsMiddleware(s.handleListReports, "reports_list"))
	mux.HandleFunc("GET /api/reports/{id}", MetricsMiddleware(s.handleGetReport, "reports_get"))
	mux.HandleFunc("POST /api/audit/export", MetricsMiddleware(s.handleExport, "audit_export"))
	mux.HandleFunc("GET /api/templates/{type}", MetricsMiddleware(s.handleSchema, "templates"))
	mux.HandleFunc("GET /api/validation-rules/{type}", MetricsMiddleware(s.handleRules, "validation_rules"))
}

// Handler wraps h with request ids and CORS for the configured origins.
func (s *Server) Handler(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
	}).Handler(RequestID(h))
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

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail classifies err and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	if err := s.validate.Struct(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

func (s *Server) templateOr(t string) string {
	if t == "" {
		return s.defaultTemplate
	}
	return t
}
