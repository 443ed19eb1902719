package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/security"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/rubros"
	"finanzas/internal/services"
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Dependencies are the services behind the API.
type Dependencies struct {
	Registry  *rubros.Registry
	Invoices  *services.InvoiceService
	Snapshots *services.SnapshotService
	// Ready is optional; /readyz answers 200 when it is nil.
	Ready ReadinessCheck
	// RateLimit bounds write requests per client IP per minute. Zero uses
	// the limiter default.
	RateLimit int
}

// Server is the JSON API server.
type Server struct {
	http.Server
	deps     Dependencies
	logger   *log.Logger
	events   *log.StructuredLogger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires the routes and the middleware chain.
func NewServer(addr string, deps Dependencies, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		deps:     deps,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimit}),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rubros", s.handleListRubros).Methods(http.MethodGet)
	api.HandleFunc("/rubros/resolve", s.handleResolveRubro).Methods(http.MethodGet)
	api.HandleFunc("/estimates/normalize", s.handleNormalizeEstimates).Methods(http.MethodPost)
	api.HandleFunc("/invoices/match", s.handleMatchInvoice).Methods(http.MethodPost)
	api.HandleFunc("/invoices/unmatched", s.handleListUnmatched).Methods(http.MethodGet)
	api.HandleFunc("/invoices", s.handleIngestInvoices).Methods(http.MethodPost)
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{month}", s.handleSetBudget).Methods(http.MethodPut)
	api.HandleFunc("/cells", s.handleSaveCells).Methods(http.MethodPut)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	// The tracer runs outermost so every later log line carries the
	// request id, including rejections by the limiter.
	var h http.Handler = r
	h = s.limiter.Middleware(detector.ExtractClientIP, isWrite, func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(h)
	h = s.tracer.Middleware(h)
	s.Handler = h
	return s
}

func isWrite(r *http.Request) bool {
	return r.Method != http.MethodGet && r.Method != http.MethodHead
}

// Shutdown stops accepting requests and releases background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
		m := s.tracer.GetMetrics()
		s.logger.InfoContext(ctx, "HTTP server stopped",
			log.FieldOperation, log.OpShutdown,
			"total_requests", m.TotalRequests,
			"rate_limit_hits", s.limiter.GetMetrics().TotalHits,
			"suspicious_requests", s.detector.GetMetrics().SuspiciousRequests)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContextOr(r.Context(), s.logger).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
