package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/nagarseva-api/internal/auth"
	"github.com/redmonkez12/nagarseva-api/internal/complaint"
	"github.com/redmonkez12/nagarseva-api/internal/config"
	"github.com/redmonkez12/nagarseva-api/internal/httputil"
	"github.com/redmonkez12/nagarseva-api/internal/logging"
	"github.com/redmonkez12/nagarseva-api/internal/metrics"
)

// HealthCheck pings one backing dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps is everything the router mounts
type Deps struct {
	Auth           *auth.Handler
	AuthMiddleware *auth.Middleware
	Complaints     *complaint.Handler
	Metrics        *metrics.Metrics // nil disables /metrics
	HealthChecks   []HealthCheck
}

// NewRouter creates and configures the HTTP router. API routes are served
// both at the root and under /api.
func NewRouter(cfg *config.Config, deps Deps, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(deps.Metrics.Instrument)
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth(deps.HealthChecks))

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	throttle := NewUploadThrottle(cfg.Server.UploadRate, cfg.Server.UploadBurst, deps.Metrics)
	api := apiRoutes(deps, throttle)

	r.Group(api)
	r.Route("/api", api)

	return r
}

func apiRoutes(deps Deps, throttle *UploadThrottle) func(chi.Router) {
	return func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", deps.Auth.Register)
			r.Post("/login", deps.Auth.Login)
			r.Get("/verify-email", deps.Auth.VerifyEmail)
			r.Post("/resend-verification", deps.Auth.ResendVerification)
		})

		r.Route("/complaints", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)

			r.With(throttle.Middleware).Post("/", deps.Complaints.Create)
			r.Get("/my", deps.Complaints.ListOwn)
			r.Get("/{id}", deps.Complaints.GetByID)
			r.With(throttle.Middleware).Put("/{id}", deps.Complaints.Update)
			r.Delete("/{id}", deps.Complaints.Delete)

			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireAdmin)
				r.Get("/", deps.Complaints.ListAll)
				r.Put("/{id}/resolve", deps.Complaints.Resolve)
				r.Put("/{id}/reject", deps.Complaints.Reject)
			})
		})
	}
}

// HealthResponse reports overall and per-dependency status
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealth runs every dependency check
// @Summary      Health check
// @Description  Check that the API and its database and cache are reachable
// @Tags         health
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /health [get]
func handleHealth(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logging.GetLoggerFromContext(r.Context()).Error("health check failed", "check", c.Name, "error", err)
				resp.Checks[c.Name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}

		httputil.RespondJSON(w, resp, status)
	}
}
