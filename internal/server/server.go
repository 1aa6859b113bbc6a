// Package server exposes the recommendation pipeline and cache management
// as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lepinkainen/bookhound/internal/books"
	"github.com/lepinkainen/bookhound/internal/cache"
	"github.com/lepinkainen/bookhound/internal/profile"
	"github.com/lepinkainen/bookhound/internal/recommend"
	"github.com/lepinkainen/bookhound/internal/source"
)

const shutdownTimeout = 10 * time.Second

// Config holds listener and middleware settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
	// RequestsPerMinute limits each client IP. Zero disables the limit.
	RequestsPerMinute int
}

// Recommender is the orchestrator surface the handlers call.
type Recommender interface {
	Recommend(ctx context.Context, p books.Profile, opts recommend.Options) (*recommend.Response, error)
	RecommendProfile(ctx context.Context, id string, opts recommend.Options) (*recommend.Response, error)
	CheckISBN(ctx context.Context, raw string, opts recommend.CheckOptions) (*recommend.CheckResult, error)
	Defaults() profile.Defaults
}

// SourceLister lists registered adapters.
type SourceLister interface {
	All() []source.Adapter
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Recommender Recommender
	Cache       *cache.Cache
	Sources     SourceLister
	// Profiles may be nil, in which case profile lookups answer 404.
	Profiles recommend.ProfileGetter
}

// Server routes HTTP requests to the recommendation pipeline.
type Server struct {
	cfg      Config
	deps     Deps
	router   chi.Router
	validate *validator.Validate
}

// New builds the router with all middleware and routes attached.
func New(cfg Config, deps Deps) *Server {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})

	s := &Server{
		cfg:      cfg,
		deps:     deps,
		validate: v,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RequestsPerMinute > 0 {
			r.Use(httprate.Limit(
				s.cfg.RequestsPerMinute,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
				}),
			))
		}

		r.Post("/recommendations", s.handleRecommend)
		r.Get("/availability/{isbn}", s.handleAvailability)
		r.Get("/sources", s.handleSources)
		r.Get("/profiles/{id}", s.handleProfile)

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", s.handleCacheStats)
			r.Post("/prune", s.handleCachePrune)
			r.Delete("/", s.handleCacheClear)
			r.Delete("/isbn/{isbn}", s.handleCacheInvalidateISBN)
			r.Delete("/source/{source}", s.handleCacheInvalidateSource)
			r.Delete("/isbn/{isbn}/source/{source}", s.handleCacheInvalidateEntry)
		})
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}
