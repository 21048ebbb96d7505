package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Mohhit1230/Chat-App/internal/infra/config"
	"github.com/Mohhit1230/Chat-App/internal/transport/http/handlers"
	"github.com/Mohhit1230/Chat-App/internal/transport/http/middleware"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Gate        middleware.Gate
	Sessions    handlers.SessionRevoker
	Revocation  RevocationChecker
	HTTPMetrics *middleware.HTTPMetrics
}

// RevocationChecker exposes the revocation store's backend mode and health.
type RevocationChecker interface {
	handlers.ModeReporter
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())
	if deps.Config != nil && len(deps.Config.App.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Revocation != nil {
		healthOptions = append(healthOptions,
			handlers.WithRevocationMode(deps.Revocation),
			handlers.WithReadinessCheck("revocation_store", deps.Revocation.HealthCheck),
		)
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.Gate == nil || deps.Sessions == nil {
		return r
	}

	api := r.Group("/api/v1")
	{
		users := api.Group("/users")
		users.Use(middleware.RequireAuth(deps.Gate))
		handlers.NewSessionHandler(deps.Sessions).RegisterRoutes(users)
	}

	return r
}
