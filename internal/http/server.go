package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
)

type (
	BudgetService interface {
		AddRecord(ctx context.Context, in core.NewBudgetRecord) (core.BudgetRecord, error)
		GetYearStats(ctx context.Context, p core.YearStatsParams) (core.YearReport, error)
	}

	AuthorService interface {
		AddAuthor(ctx context.Context, fullName string) (core.Author, error)
	}

	// HealthChecker reports whether the backing store can serve requests.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}

	// SchemaVersioner is implemented by stores with migrated schemas.
	SchemaVersioner interface {
		SchemaVersion() uint
	}
)

// Options tunes the middleware stack. The zero value is usable.
type Options struct {
	Logger         *log.Logger
	LogAllRequests bool
	RateLimit      ratelimit.Config
	TrustedProxies []string
	Headers        *security.HeadersConfig
	CORS           *security.CORSConfig
}

type Server struct {
	http.Server
	budget      BudgetService
	authors     AuthorService
	health      HealthChecker
	logger      *log.Logger
	rateLimiter *ratelimit.Limiter
	ipExtractor *security.IPExtractor
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, budget BudgetService, authors AuthorService, health HealthChecker, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}
	cors := security.DefaultCORSConfig()
	if opts.CORS != nil {
		cors = *opts.CORS
	}

	s := &Server{
		budget:      budget,
		authors:     authors,
		health:      health,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: ratelimit.NewLimiter(opts.RateLimit),
		ipExtractor: security.NewIPExtractor(),
		started:     time.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.ipExtractor.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}

	limited := s.rateLimiter.Middleware(s.ipExtractor.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.ipExtractor.ClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})

	mux := http.NewServeMux()
	mux.Handle("POST /budget/add", limited(http.HandlerFunc(s.handleAddRecord)))
	mux.HandleFunc("GET /budget/year/{year}/stats", s.handleYearStats)
	mux.Handle("POST /author/add", limited(http.HandlerFunc(s.handleAddAuthor)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = security.CORSMiddleware(cors)(handler)
	handler = log.RequestMiddleware(logger, opts.LogAllRequests, s.ipExtractor.ClientIP)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Shutdown stops the rate limiter and drains the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
