package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"bilancio/internal/catalog"
	"bilancio/internal/chart"
	applog "bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
	appweb "bilancio/web"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Guide      *services.GuideService
	Catalog    *catalog.Catalog
	Projection services.Projection
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready              func(context.Context) error
	Logger             *applog.Logger
	RateLimitPerMinute int
	Now                func() time.Time
}

type Server struct {
	http.Server
	deps      Deps
	logger    *applog.Logger
	templates *template.Template
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and mounts every route.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Guide == nil || deps.Catalog == nil {
		return nil, errors.New("http server needs a guide service and a catalog")
	}
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	t, err := template.New("").Funcs(templateFuncs(deps.Catalog)).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		deps:      deps,
		logger:    deps.Logger.WithComponent(applog.ComponentHTTP),
		templates: t,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		tracer:    trace.NewMiddleware(security.ClientIP),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(applog.Middleware(s.logger))
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Handle("/static/*", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Get("/", s.handleIndex)
	r.Get("/ui/tour", s.handleTourLayer)
	r.Get("/ui/spotlight", s.handleSpotlight)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(security.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded", applog.FieldClientIP, security.ClientIP(r), applog.FieldPath, r.URL.Path)
			ErrorResponse(r, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
		}))

		r.Get("/tours", s.handleTours)
		r.Get("/tours/state", s.handleTourState)
		r.Post("/tours/{id}/start", s.handleTourStart)
		r.Post("/tour/next", s.handleTourNext)
		r.Post("/tour/prev", s.handleTourPrev)
		r.Post("/tour/skip", s.handleTourSkip)
		r.Post("/tour/end", s.handleTourEnd)
		r.Post("/tour/dismiss", s.handleTourDismiss)
		r.Post("/tour/key", s.handleTourKey)
		r.Post("/tour/layout", s.handleTourLayout)
		r.Post("/events", s.handleEvent)

		r.Get("/chart/window", s.handleChartWindow)
		r.Post("/chart/tooltip", s.handleChartTooltip)
		r.Get("/chart/crossing", s.handleChartCrossing)

		r.Get("/help/articles/{id}", s.handleArticle)
		r.Post("/help/articles/{id}/read", s.handleArticleRead)
		r.Post("/help/paths/{id}/complete", s.handlePathComplete)
	})
	return r
}

// Metrics exposes request counters for the status log.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// Shutdown stops the limiter janitor and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func templateFuncs(cat *catalog.Catalog) template.FuncMap {
	return template.FuncMap{
		"euros": chart.FormatEuros,
		// interpret returns the matching rule label and tone for a metric.
		"interpret": func(articleID string, v float64) map[string]string {
			a, ok := cat.Article(articleID)
			if !ok {
				return nil
			}
			rule, ok := a.Interpret(v)
			if !ok {
				return nil
			}
			return map[string]string{"Label": rule.Label, "Tone": rule.Tone}
		},
	}
}
