package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-iam/internal/observability"
	"github.com/odyssey-erp/odyssey-iam/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-iam/jobs"
)

// HealthCheck probes one dependency of the process.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterParams groups dependencies for building the operations router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Metrics    *observability.Metrics
	JobHandler *jobs.Handler
	Checks     []HealthCheck
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter constructs the chi.Router serving /healthz, /metrics and job stats.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		for _, check := range params.Checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(params.Checks))
			}
			if err := check.Check(r.Context()); err != nil {
				logger.Warn("health check failed", slog.String("check", check.Name), slog.Any("error", err))
				resp.Checks[check.Name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[check.Name] = "up"
		}
		httpx.JSON(w, status, resp)
	})

	if params.JobHandler != nil {
		params.JobHandler.MountRoutes(r)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
