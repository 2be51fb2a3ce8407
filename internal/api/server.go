package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lukman83/adscout/internal/logging"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/pipeline"
	"github.com/lukman83/adscout/internal/store"
)

// Listings reads the listing store.
type Listings interface {
	Load() ([]models.Listing, error)
}

// Runner starts background pipeline runs.
type Runner interface {
	Start(req pipeline.Request) string
	Runs() *pipeline.Tracker
}

// Scheduler is the periodic run loop.
type Scheduler interface {
	Restart(ctx context.Context)
	Running() bool
}

// Deps wires the HTTP API.
type Deps struct {
	Listings   Listings
	SearchURLs *store.SearchURLs
	Schedule   *store.ScheduleFile
	Runner     Runner
	Scheduler  Scheduler // optional
	// BaseContext outlives requests; the scheduler is restarted under it.
	BaseContext context.Context
	MCP         http.Handler // mounted at /mcp when set
	APIKey      string       // bearer token required on /api and /mcp when set
	CORSOrigins []string
	Logger      *slog.Logger
}

type server struct {
	Deps
	validator *Validator
	logger    *slog.Logger
	started   time.Time
}

// NewRouter builds the HTTP handler for the API, health check and MCP
// endpoint.
func NewRouter(d Deps) (http.Handler, error) {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"*"}
	}
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	s := &server{Deps: d, validator: v, logger: d.Logger.With("component", "api"), started: time.Now()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Mcp-Session-Id"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if d.APIKey != "" {
			r.Use(bearerAuth(d.APIKey))
		}
		r.Route("/api", func(r chi.Router) {
			r.Get("/listings", s.getListings)
			r.Get("/search-urls", s.getSearchURLs)
			r.Post("/search-urls", s.postSearchURLs)
			r.Post("/scrape", s.postScrape)
			r.Get("/runs/{runID}", s.getRun)
			r.Get("/schedule", s.getSchedule)
			r.Post("/schedule", s.postSchedule)
			r.Get("/status", s.getStatus)
		})
		if d.MCP != nil {
			r.Handle("/mcp", d.MCP)
		}
	})
	return r, nil
}

// NewServer wraps handler in an http.Server with the timeouts used for
// every listener.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), logger)))
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

func bearerAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="adscout"`)
				writeError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}
			token, found := strings.CutPrefix(auth, "Bearer ")
			if !found || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="adscout", error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
