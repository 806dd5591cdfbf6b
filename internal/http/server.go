package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meurenda/internal/auth"
	"meurenda/internal/log"
	"meurenda/internal/middleware/ratelimit"
	"meurenda/internal/middleware/security"
	"meurenda/internal/middleware/trace"
	"meurenda/internal/notify"
	"meurenda/internal/services"
)

// Deps are the services the handlers call.
type Deps struct {
	Auth      *auth.Service
	Ledger    *services.LedgerService
	Dashboard *services.DashboardService
	Hub       *notify.Hub
	// Ready reports whether the backing store can serve requests.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
}

type Options struct {
	RateLimitPerMinute int
	// Heartbeat is the interval of SSE keep-alive comments.
	Heartbeat time.Duration
}

// Server is the HTTP server of the API. Shutdown also ends open SSE
// streams and the rate limiter.
type Server struct {
	http.Server
	deps      Deps
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	heartbeat time.Duration

	baseCtx      context.Context
	cancelBase   context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 25 * time.Second
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		deps:       deps,
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:   security.NewDetector(),
		heartbeat:  opts.Heartbeat,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	return s
}

func (s *Server) routes() http.Handler {
	httpLogger := s.deps.Logger.WithComponent(log.ComponentHTTP)
	tracer := trace.NewMiddleware(httpLogger, s.detector.ClientIP)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(httpLogger))
	r.Use(log.RequestIDMiddleware(trace.RequestID))
	r.Use(tracer.Handler)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		}))
		r.Use(security.NoStore)

		r.Group(func(r chi.Router) {
			r.Use(log.ComponentMiddleware(log.ComponentAuth))
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
			r.With(s.requireAuth).Post("/auth/logout", s.handleLogout)
			r.With(s.requireAuth).Get("/auth/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Group(func(r chi.Router) {
				r.Use(log.ComponentMiddleware(log.ComponentLedger))
				r.Get("/records", s.handleListRecords)
				r.Post("/records", s.handleCreateRecord)
				r.Delete("/records/{id}", s.handleDeleteRecord)

				r.Get("/goals", s.handleListGoals)
				r.Post("/goals", s.handleCreateGoal)
				r.Put("/goals/{id}", s.handleReplaceGoal)
				r.Delete("/goals/{id}", s.handleDeleteGoal)

				r.Delete("/account/data", s.handleResetData)
			})

			r.Group(func(r chi.Router) {
				r.Use(log.ComponentMiddleware(log.ComponentDashboard))
				r.Get("/goals/projections", s.handleProjections)
				r.Get("/dashboard", s.handleDashboard)
				r.Get("/reports/daily", s.handleDailyReport)
			})

			r.With(log.ComponentMiddleware(log.ComponentNotify)).Get("/stream", s.handleStream)
		})
	})

	return r
}

// Shutdown stops the rate limiter, ends SSE streams and gracefully shuts
// the server down. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.cancelBase()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// requireAuth rejects requests without a valid session and stores the
// identity in the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="meurenda"`)
			writeError(w, http.StatusUnauthorized, "missing session token")
			return
		}
		id, err := s.deps.Auth.Authenticate(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="meurenda", error="invalid_token"`)
			respondError(w, r, err)
			return
		}

		ctx := auth.WithIdentity(r.Context(), id)
		logger := log.FromContext(ctx).With(log.FieldUserID, id.UserID)
		ctx = context.WithValue(ctx, log.LoggerContextKey, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identity returns the authenticated user. Routes behind requireAuth always
// have one.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.UserFromContext(r.Context())
	return id
}

func requestID(r *http.Request) string {
	return trace.RequestID(r)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// location is the calendar time zone dates are read and written in.
func (s *Server) location() *time.Location {
	if loc := s.deps.Dashboard.Calendar().Location; loc != nil {
		return loc
	}
	return time.Local
}
