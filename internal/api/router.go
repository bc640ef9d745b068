package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Togather-Foundation/campus-events/internal/api/handlers"
	"github.com/Togather-Foundation/campus-events/internal/api/middleware"
	"github.com/Togather-Foundation/campus-events/internal/audit"
	"github.com/Togather-Foundation/campus-events/internal/auth"
	"github.com/Togather-Foundation/campus-events/internal/config"
	"github.com/Togather-Foundation/campus-events/internal/domain/events"
	"github.com/Togather-Foundation/campus-events/internal/domain/registrations"
	"github.com/Togather-Foundation/campus-events/internal/domain/users"
	"github.com/Togather-Foundation/campus-events/internal/jobs"
	"github.com/Togather-Foundation/campus-events/internal/metrics"
	"github.com/Togather-Foundation/campus-events/internal/storage/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
)

// RouterWithClient is the assembled HTTP handler plus the background pieces
// the caller has to start and stop.
type RouterWithClient struct {
	Handler     http.Handler
	RiverClient *river.Client[pgx.Tx]
	RateLimiter *middleware.RateLimiter
}

// Close releases the rate limiter's sweeper. River is stopped by the caller.
func (r *RouterWithClient) Close() {
	if r.RateLimiter != nil {
		r.RateLimiter.Stop()
	}
}

type routeDeps struct {
	Events        *handlers.EventsHandler
	Registrations *handlers.RegistrationsHandler
	Auth          *handlers.AuthHandler
	Health        *handlers.HealthChecker
	Tokens        middleware.TokenValidator
	Env           string
	Version       string
	GitCommit     string
	BuildDate     string
}

func NewRouter(cfg config.Config, logger zerolog.Logger, pool *pgxpool.Pool, version, gitCommit, buildDate string) (*RouterWithClient, error) {
	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return nil, fmt.Errorf("repository init: %w", err)
	}

	auditLogger := audit.NewLogger(logger)
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.JWTIssuer)

	eventsService := events.NewService(repo.Events(), logger)
	registrationsService := registrations.NewService(
		repo.Registrations(),
		logger,
		registrations.WithConflictWindow(cfg.Registration.ConflictWindow),
	)
	usersService := users.NewService(repo.Users(), auditLogger, logger)

	var riverClient *river.Client[pgx.Tx]
	if cfg.Jobs.Enabled {
		policy := jobs.NewRetryPolicy(cfg.Jobs.RetryReconcile)
		riverClient, err = jobs.NewClient(pool, jobs.ClientOptions{
			Workers:      jobs.NewWorkers(eventsService),
			Logger:       config.NewSlogLogger(cfg.Logging),
			ErrorLogger:  logger,
			PeriodicJobs: jobs.NewPeriodicJobs(cfg.Jobs.ReconcileInterval, policy),
			Policy:       policy,
		})
		if err != nil {
			return nil, fmt.Errorf("river client: %w", err)
		}
	} else {
		logger.Warn().Msg("background jobs disabled; events reconcile on read only")
	}

	deps := routeDeps{
		Events:        handlers.NewEventsHandler(eventsService, auditLogger, cfg.Environment),
		Registrations: handlers.NewRegistrationsHandler(registrationsService, cfg.Environment),
		Auth:          handlers.NewAuthHandler(usersService, jwtManager, auditLogger, cfg.Environment),
		Health:        handlers.NewHealthChecker(pool, riverClient, version, gitCommit),
		Tokens:        jwtManager,
		Env:           cfg.Environment,
		Version:       version,
		GitCommit:     gitCommit,
		BuildDate:     buildDate,
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.Environment)
	handler := chain(routes(deps, limiter), logger, cfg)

	return &RouterWithClient{
		Handler:     handler,
		RiverClient: riverClient,
		RateLimiter: limiter,
	}, nil
}

func routes(deps routeDeps, limiter *middleware.RateLimiter) *http.ServeMux {
	requireAuth := middleware.RequireAuth(deps.Tokens, deps.Env)
	requireAdmin := func(h http.Handler) http.Handler {
		return requireAuth(middleware.RequireAdmin(deps.Env)(h))
	}
	limited := func(tier middleware.RateLimitTier) func(http.Handler) http.Handler {
		return func(h http.Handler) http.Handler {
			return middleware.WithRateLimitTierHandler(tier)(limiter.Middleware(h))
		}
	}
	publicTier := limited(middleware.TierPublic)
	loginTier := limited(middleware.TierLogin)
	adminTier := limited(middleware.TierAdmin)
	publicBody := middleware.PublicRequestSize()
	adminBody := middleware.AdminRequestSize()

	mux := http.NewServeMux()

	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", deps.Health.Readyz())
	mux.Handle("/health", deps.Health.Health())
	mux.Handle("/version", VersionHandler(deps.Version, deps.GitCommit, deps.BuildDate))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("/api/v1/auth/register", methodMux(map[string]http.Handler{
		http.MethodPost: loginTier(publicBody(http.HandlerFunc(deps.Auth.Register))),
	}))
	mux.Handle("/api/v1/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: loginTier(publicBody(http.HandlerFunc(deps.Auth.Login))),
	}))

	mux.Handle("/api/v1/users/me", methodMux(map[string]http.Handler{
		http.MethodGet: publicTier(requireAuth(http.HandlerFunc(deps.Auth.Me))),
	}))
	mux.Handle("/api/v1/users/me/registrations", methodMux(map[string]http.Handler{
		http.MethodGet: publicTier(requireAuth(http.HandlerFunc(deps.Registrations.Mine))),
	}))

	mux.Handle("/api/v1/events", methodMux(map[string]http.Handler{
		http.MethodGet:  publicTier(http.HandlerFunc(deps.Events.List)),
		http.MethodPost: adminTier(requireAdmin(adminBody(http.HandlerFunc(deps.Events.Create)))),
	}))
	mux.Handle("/api/v1/events/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    publicTier(http.HandlerFunc(deps.Events.Get)),
		http.MethodPut:    adminTier(requireAdmin(adminBody(http.HandlerFunc(deps.Events.Update)))),
		http.MethodDelete: adminTier(requireAdmin(http.HandlerFunc(deps.Events.Delete))),
	}))
	mux.Handle("/api/v1/events/{id}/register", methodMux(map[string]http.Handler{
		http.MethodPost: publicTier(requireAuth(publicBody(http.HandlerFunc(deps.Registrations.Register)))),
	}))
	mux.Handle("/api/v1/events/{id}/registrations", methodMux(map[string]http.Handler{
		http.MethodGet: adminTier(requireAdmin(http.HandlerFunc(deps.Registrations.Attendees))),
	}))

	return mux
}

// chain wraps the mux with the global middleware, outermost first:
// CorrelationID, RequestLogging, SecurityHeaders, CORS, Tracing, HTTP
// metrics. Tracing and metrics sit directly on the mux so they can read the
// matched route pattern.
func chain(mux *http.ServeMux, logger zerolog.Logger, cfg config.Config) http.Handler {
	var handler http.Handler = mux
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CORS(cfg.CORS, logger)(handler)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
