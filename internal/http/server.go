package http

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"budget/internal/auth"
	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/ports"
	appweb "budget/web"
)

// AuthService is the subset of *auth.Service the handlers use.
type AuthService interface {
	Authenticator
	Register(ctx context.Context, username, password string) (core.User, error)
	Login(ctx context.Context, username, password string) (auth.Session, error)
}

// EntryService is the subset of *services.EntryService the handlers use.
type EntryService interface {
	List(ctx context.Context, q core.Query) ([]core.Entry, error)
	Summary(ctx context.Context) (core.Summary, error)
	Replace(ctx context.Context, replacedBy string, entries []core.Entry) error
}

// Assistant answers free-text prompts. *assistant.Proxy implements it.
type Assistant interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Options configures NewServer. Auth, Entries and Assistant are required.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Auth      AuthService
	Entries   EntryService
	Assistant Assistant
	// Health backs /readyz; nil reports ready.
	Health ports.HealthChecker
	// CacheStats is reported on /metrics when set.
	CacheStats cache.StatsReporter

	AuthRateLimit      ratelimit.Config
	TrustedProxies     []string
	CORSAllowedOrigins []string

	// Static overrides the embedded client assets.
	Static fs.FS
	Logger *log.Logger
}

type appMetrics struct {
	started       time.Time
	registrations atomic.Int64
	logins        atomic.Int64
	failedLogins  atomic.Int64
	replaces      atomic.Int64
	aiRequests    atomic.Int64
	aiFailures    atomic.Int64
}

// Server is the REST API plus the embedded single page client.
type Server struct {
	http.Server

	auth      AuthService
	entries   EntryService
	assistant Assistant
	health    ports.HealthChecker
	cache     cache.StatsReporter
	static    fs.FS

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	metrics     appMetrics

	shutdownOnce sync.Once
}

// NewServer builds the router and middleware stack.
func NewServer(opts Options) (*Server, error) {
	if opts.Auth == nil || opts.Entries == nil || opts.Assistant == nil {
		return nil, fmt.Errorf("http server: auth, entries and assistant are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}
	static := opts.Static
	if static == nil {
		if static, err = appweb.Static(); err != nil {
			return nil, fmt.Errorf("http server: %w", err)
		}
	}
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		auth:        opts.Auth,
		entries:     opts.Entries,
		assistant:   opts.Assistant,
		health:      opts.Health,
		cache:       opts.CacheStats,
		static:      static,
		rateLimiter: ratelimit.NewLimiter(opts.AuthRateLimit),
		detector:    detector,
		tracer:      trace.NewMiddleware(detector.ExtractClientIP),
	}
	s.metrics.started = time.Now()

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           chain(s.routes(), log.Middleware(logger), s.tracer.Handler, detector.Middleware, security.Headers(security.DefaultHeadersConfig()), security.CORS(origins)),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", security.CacheStatic(3600)(http.StripPrefix("/static/", http.FileServer(http.FS(s.static)))))
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)
	api := func(component string, h http.Handler) http.Handler {
		return chain(h, security.NoStore, log.ComponentMiddleware(component))
	}

	mux.Handle("POST /api/register", api(log.ComponentAuth, limited(http.HandlerFunc(s.handleRegister))))
	mux.Handle("POST /api/login", api(log.ComponentAuth, limited(http.HandlerFunc(s.handleLogin))))
	mux.Handle("GET /api/user", api(log.ComponentAuth, requireAuth(s.auth, s.handleUser)))
	mux.Handle("GET /api/entries", api(log.ComponentEntries, requireAuth(s.auth, s.handleListEntries)))
	mux.Handle("POST /api/entries", api(log.ComponentEntries, requireAuth(s.auth, s.handleReplaceEntries)))
	mux.Handle("GET /api/summary", api(log.ComponentEntries, requireAuth(s.auth, s.handleSummary)))
	mux.Handle("POST /api/ai", api(log.ComponentAssistant, requireAuth(s.auth, s.handleAsk)))

	return mux
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.NewFields().WithClientIP(s.detector.ExtractClientIP(r)).WithHTTPRequest(r.Method, r.URL.Path, "", "").ToSlice()...)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: msgTooManyRequests})
}

// Shutdown stops background helpers, then drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
