package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"pulse/internal/charts"
	"pulse/internal/core"
	"pulse/internal/log"
	"pulse/internal/middleware/ratelimit"
	"pulse/internal/middleware/security"
	"pulse/internal/middleware/trace"
	"pulse/internal/services"
	appweb "pulse/web"
)

const (
	defaultPreviewLimit = 500
	requestTimeout      = 30 * time.Second
	staticMaxAge        = 3600
)

// Config holds the listener and presentation settings of the server.
type Config struct {
	Addr               string
	PreviewRowLimit    int
	RateLimitPerMinute int
	// TrustedProxies are CIDRs, beyond loopback and private ranges, whose
	// forwarding headers name the client.
	TrustedProxies []string
}

// Deps are the services the handlers delegate to.
type Deps struct {
	Datasets *services.DatasetService
	Views    *services.ViewService
	Explorer *services.ExplorerService
	Charts   *charts.Renderer
	Logger   *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	datasets  *services.DatasetService
	views     *services.ViewService
	explorer  *services.ExplorerService
	renderer  *charts.Renderer
	logger    *log.Logger
	sl        *log.StructuredLogger

	previewLimit int

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	chartsRendered atomic.Int64
	exports        atomic.Int64
	uptime         time.Time
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if cfg.PreviewRowLimit <= 0 {
		cfg.PreviewRowLimit = defaultPreviewLimit
	}
	renderer := deps.Charts
	if renderer == nil {
		renderer = charts.NewRenderer(0, 0)
	}

	limiterCfg := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = cfg.RateLimitPerMinute
	}

	s := &Server{
		datasets:         deps.Datasets,
		views:            deps.Views,
		explorer:         deps.Explorer,
		renderer:         renderer,
		logger:           logger,
		sl:               log.NewStructuredLogger(logger),
		previewLimit:     cfg.PreviewRowLimit,
		rateLimiter:      ratelimit.NewLimiter(limiterCfg),
		securityDetector: security.NewDetector(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	for _, cidr := range cfg.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	t, err := template.New("pulse").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err, log.FieldComponent, log.ComponentTemplate)
	} else {
		s.templates = t
	}

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.StrictSlash(true)
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	r.Use(s.traceMiddleware.Middleware, headers.Middleware, s.securityDetector.Middleware(s.logger))

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(staticMaxAge)(static)).Methods(http.MethodGet)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/explorer", s.handleExplorerPage).Methods(http.MethodGet)
	r.HandleFunc("/ui/explorer", s.handleExplorerPartial).Methods(http.MethodGet)
	r.Handle("/explorer/export.{format:csv|xlsx}", s.limited(s.handleExplorerExport)).Methods(http.MethodGet)

	r.HandleFunc("/views", s.handleViewsPage).Methods(http.MethodGet)
	r.HandleFunc("/views/{view}", s.handleViewPage).Methods(http.MethodGet)
	r.HandleFunc("/ui/views/{view}", s.handleViewPartial).Methods(http.MethodGet)
	r.Handle("/views/{view}/export.{format:csv|xlsx}", s.limited(s.handleViewExport)).Methods(http.MethodGet)
	r.Handle("/charts/{view}.{format:png|svg}", s.limited(s.handleChart)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/datasets", s.handleAPIDatasets).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{id}", s.handleAPIDataset).Methods(http.MethodGet)
	api.HandleFunc("/views", s.handleAPIViews).Methods(http.MethodGet)
	api.HandleFunc("/views/{view}", s.handleAPIView).Methods(http.MethodGet)

	return r
}

// limited applies the per-client rate limit to expensive endpoints.
func (s *Server) limited(next http.HandlerFunc) http.Handler {
	return s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)(next)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"rupees":  core.FormatRupees,
		"count":   core.FormatCount,
		"number":  func(n int) string { return core.FormatCount(float64(n)) },
		"join":    strings.Join,
		"percent": func(v float64) string { return strconv.FormatFloat(v*100, 'f', 1, 64) + "%" },
	}
}
