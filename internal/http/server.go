package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"studydash/internal/core"
	applog "studydash/internal/log"
	"studydash/internal/middleware/ratelimit"
	"studydash/internal/middleware/security"
	"studydash/internal/middleware/trace"
	"studydash/internal/revenue"
	"studydash/internal/services"
	"studydash/internal/sources"
	appweb "studydash/web"
)

// Dashboards computes dashboards and serves filtered record listings.
type Dashboards interface {
	Dashboard(ctx context.Context) (revenue.Dashboard, error)
	DashboardWith(ctx context.Context, opts revenue.Options) (revenue.Dashboard, error)
	Options() revenue.Options
	Calendar() core.Calendar
	Payments(ctx context.Context, f sources.Filter) ([]core.Payment, error)
	Students(ctx context.Context, f sources.Filter) ([]core.Student, error)
}

// Importer stores uploaded CSV files.
type Importer interface {
	ImportPayments(ctx context.Context, csvText string) (services.ImportResult, error)
	ImportStudents(ctx context.Context, csvText string) (services.ImportResult, error)
}

// SnapshotReader returns the dashboard last stored by the worker.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context) (sources.Snapshot, error)
}

// Server wraps http.Server with the dashboard routes.
type Server struct {
	http.Server

	dashboards Dashboards
	importer   Importer
	templates  *template.Template
	ready      func(context.Context) error
	snapshots  SnapshotReader

	logger        *applog.Logger
	tracer        *trace.Middleware
	detector      *security.Detector
	apiLimiter    *ratelimit.Limiter
	importLimiter *ratelimit.Limiter
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	logger      *applog.Logger
	ready       func(context.Context) error
	snapshots   SnapshotReader
	apiLimit    ratelimit.Config
	importLimit ratelimit.Config
}

// WithLogger sets the logger request-scoped loggers derive from.
func WithLogger(l *applog.Logger) Option {
	return func(c *serverConfig) { c.logger = l }
}

// WithReadyCheck makes /readyz run fn. Without it /readyz always succeeds.
func WithReadyCheck(fn func(context.Context) error) Option {
	return func(c *serverConfig) { c.ready = fn }
}

// WithSnapshots serves the worker's stored dashboards on
// /api/dashboard/snapshot.
func WithSnapshots(r SnapshotReader) Option {
	return func(c *serverConfig) { c.snapshots = r }
}

// WithRateLimits overrides the per-client limits of the API and import routes.
func WithRateLimits(api, imports ratelimit.Config) Option {
	return func(c *serverConfig) {
		c.apiLimit = api
		c.importLimit = imports
	}
}

// NewServer configures routes and templates, returning a ready-to-run
// server. importer may be nil, in which case imports answer 501.
func NewServer(addr string, dashboards Dashboards, importer Importer, opts ...Option) *Server {
	cfg := serverConfig{
		logger:      applog.New(applog.DefaultConfig()),
		apiLimit:    ratelimit.DefaultConfig(),
		importLimit: ratelimit.Config{RequestsPerMinute: 10},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		dashboards:    dashboards,
		importer:      importer,
		ready:         cfg.ready,
		snapshots:     cfg.snapshots,
		logger:        cfg.logger.WithComponent(applog.ComponentHTTP),
		detector:      security.NewDetector(),
		apiLimiter:    ratelimit.NewLimiter(cfg.apiLimit),
		importLimiter: ratelimit.NewLimiter(cfg.importLimit),
	}
	s.tracer = trace.NewMiddleware(cfg.logger, s.detector.ExtractClientIP)

	t, err := template.New("pages").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(middleware.Compress(5, "application/json", "text/html", "text/css", "text/csv"))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Use(security.NoStore)
		r.Use(s.apiLimiter.Middleware(s.detector.ExtractClientIP, rateLimited))

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/dashboard/summary", s.handleSummary)
		r.Get("/dashboard/series", s.handleSeries)
		r.Get("/dashboard/zones", s.handleZones)
		r.Get("/dashboard/snapshot", s.handleSnapshot)
		r.Get("/reports/revenue.xlsx", s.handleRevenueXLSX)

		limitImports := s.importLimiter.Middleware(s.detector.ExtractClientIP, rateLimited)
		r.Route("/payments", func(r chi.Router) {
			r.With(limitImports).Post("/import-csv", s.handleImportPayments)
			r.Get("/export-csv", s.handleExportPayments)
			r.Get("/sample-csv", handleSamplePayments)
		})
		r.Route("/students", func(r chi.Router) {
			r.With(limitImports).Post("/import-csv", s.handleImportStudents)
			r.Get("/export-csv", s.handleExportStudents)
			r.Get("/sample-csv", handleSampleStudents)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			NotFoundError("no such endpoint").Write(w)
		})
	})

	return r
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown stops the rate limiters and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.apiLimiter.Stop()
	s.importLimiter.Stop()

	traffic := s.tracer.GetMetrics()
	blocked := s.detector.GetMetrics()
	s.logger.Info("HTTP server stopping",
		"requests", traffic.TotalRequests,
		"avg_response_us", traffic.AverageResponseTime,
		"suspicious_requests", blocked.SuspiciousRequests,
		"blocked_requests", blocked.BlockedRequests,
		"api_rate_limited", s.apiLimiter.GetMetrics().TotalHits,
		"import_rate_limited", s.importLimiter.GetMetrics().TotalHits)
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady runs the ready check, which normally reads the data source.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
