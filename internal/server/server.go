package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"composehook/internal/config"
	"composehook/internal/deploy"
	"composehook/internal/history"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// HTTP server timeouts. There is deliberately no write timeout and no
	// request timeout middleware: the webhook handler blocks for the full
	// deployment, and image pulls can take minutes.
	HTTPReadTimeout       = 10 * time.Second
	HTTPReadHeaderTimeout = 10 * time.Second
	HTTPIdleTimeout       = 60 * time.Second

	// ShutdownTimeout bounds how long Shutdown waits for an in-flight
	// deployment to finish before giving up.
	ShutdownTimeout = 30 * time.Second
)

// Deployer triggers a deployment. *deploy.Trigger is the production
// implementation; tests substitute fakes to observe the handler without
// spawning subprocesses.
type Deployer interface {
	Deploy(ctx context.Context) (*deploy.Result, error)
}

// Server represents the HTTP server.
type Server struct {
	Config   *config.Config
	Deployer Deployer
	Gate     *deploy.Gate
	History  *history.History // nil when history is disabled
	Logger   *slog.Logger
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config, deployer Deployer, hist *history.History, logger *slog.Logger) *Server {
	return &Server{
		Config:   cfg,
		Deployer: deployer,
		Gate:     deploy.NewGate(),
		History:  hist,
		Logger:   logger,
	}
}

// Router creates and configures the HTTP router.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Logging middleware. Request lines are logged at debug so the default
	// output carries only deployment events.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

			defer func() {
				s.Logger.Debug("http_request",
					"method", req.Method,
					"path", req.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, req)
		})
	})

	// Monitoring routes (GET only)
	r.Get("/healthz", s.HandleHealth)
	r.Get("/history", s.HandleHistory)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The webhook accepts POST on any path, so callers keep working
	// whichever URL they were configured with.
	if s.Config.RateLimit > 0 {
		r.With(NewWebhookRateLimitMiddleware(s.Config.RateLimit, s.Logger)).Post("/*", s.HandleWebhook)
	} else {
		r.Post("/*", s.HandleWebhook)
	}

	return r
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully so an in-flight deployment can finish.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Config.Addr(),
		Handler:           s.Router(),
		ReadTimeout:       HTTPReadTimeout,
		ReadHeaderTimeout: HTTPReadHeaderTimeout,
		IdleTimeout:       HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.Logger.Info("Webhook server listening",
		"addr", srv.Addr,
		"compose_dir", s.Config.ComposeDir,
		"compose_file", s.Config.ComposePath())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Logger.Info("Shutting down webhook server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
