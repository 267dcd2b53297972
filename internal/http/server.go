package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"plndash/internal/cache"
	"plndash/internal/chart"
	"plndash/internal/core"
	"plndash/internal/dashboard"
	applog "plndash/internal/log"
	"plndash/internal/middleware/ratelimit"
	"plndash/internal/middleware/security"
	"plndash/internal/middleware/trace"
	appweb "plndash/web"
)

// TableLoader hands out the memoized dataset.
type TableLoader interface {
	Load(ctx context.Context) (*core.Table, error)
	Loaded() bool
	Source() string
}

// Options configures a Server.
type Options struct {
	Addr        string
	Loader      TableLoader
	Layout      *dashboard.Layout
	Schema      core.SchemaPolicy
	DefaultMode core.Mode
	SinglePoint dashboard.SinglePoint

	ChartCacheSize int
	ChartCacheTTL  time.Duration
	RateLimit      ratelimit.Config
	// TrustedProxies are CIDRs, beyond loopback and private ranges, whose
	// X-Forwarded-For headers are believed.
	TrustedProxies []string

	Logger *applog.Logger
}

// Server serves the dashboard pages, partials, chart images and exports.
type Server struct {
	http.Server
	templates *template.Template

	loader   TableLoader
	layout   *dashboard.Layout
	schema   core.SchemaPolicy
	mode     core.Mode
	planOpts dashboard.Options
	renderer *chart.Renderer

	// Rendered chart PNGs keyed by section and selection. The table never
	// changes after load, so entries only leave through eviction or TTL.
	charts       *cache.LRUCache[[]byte]
	cacheManager *cache.Manager
	renders      singleflight.Group

	limiter  *ratelimit.Limiter
	detector *security.Detector
	headers  *security.HeadersMiddleware
	tracer   *trace.Middleware

	logger       *applog.Logger
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.Layout == nil {
		opts.Layout = dashboard.DefaultLayout()
	}
	if opts.Schema == "" {
		opts.Schema = core.SchemaStrict
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = core.ModeYear
	}
	if opts.ChartCacheSize <= 0 {
		opts.ChartCacheSize = 128
	}
	if opts.ChartCacheTTL <= 0 {
		opts.ChartCacheTTL = 10 * time.Minute
	}
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		loader:       opts.Loader,
		layout:       opts.Layout,
		schema:       opts.Schema,
		mode:         opts.DefaultMode,
		planOpts:     dashboard.Options{SinglePoint: opts.SinglePoint},
		renderer:     chart.New(),
		charts:       cache.NewLRUCache[[]byte](opts.ChartCacheSize, opts.ChartCacheTTL),
		cacheManager: cache.NewManager(opts.Logger),
		limiter:      ratelimit.NewLimiter(opts.RateLimit),
		detector:     security.NewDetector(),
		headers:      security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		logger:       logger,
		started:      time.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", applog.FieldError, err.Error())
		}
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP)

	s.cacheManager.Register(s.charts)
	s.cacheManager.StartCleanup(opts.ChartCacheTTL)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err.Error())
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err.Error())
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /ui/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /ui/months", s.handleMonths)
	mux.HandleFunc("GET /api/frame", s.handleFrameJSON)
	mux.Handle("GET /charts/{id}", s.limited(s.handleChart))
	mux.Handle("GET /export.xlsx", s.limited(s.handleExport))

	var h http.Handler = mux
	h = s.headers.Middleware(h)
	h = s.detector.Middleware(logger)(h)
	h = s.tracer.Middleware(h)
	s.Handler = h

	return s
}

// limited applies the per-client rate limit to an expensive route.
func (s *Server) limited(next http.HandlerFunc) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldPath, r.URL.Path)
		http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
	}
	return s.limiter.Middleware(s.detector.ExtractClientIP, onLimit)(next)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
