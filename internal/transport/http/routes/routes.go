package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/infra/config"
	"github.com/arklim/enterprise-authz/internal/transport/http/handlers"
	"github.com/arklim/enterprise-authz/internal/transport/http/middleware"
	"github.com/arklim/enterprise-authz/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Evaluations *usecase.EvaluationService
	Assignments *usecase.AssignmentService
	Policies    *usecase.PolicyService
	Resources   *usecase.ResourceService
	Audits      *usecase.AuditService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		adminMiddlewares := buildAdminMiddlewares(deps)

		if deps.Services.Evaluations != nil {
			decisionHandler := handlers.NewDecisionHandler(deps.Services.Evaluations)
			decisionHandler.RegisterRoutes(api.Group("/decisions"))
		}

		if deps.Services.Assignments != nil {
			roleHandler := handlers.NewRoleHandler(deps.Services.Assignments)

			rolesGroup := api.Group("/roles")
			roleHandler.RegisterRoleRoutes(rolesGroup)

			assignmentsGroup := api.Group("/assignments")
			assignmentsGroup.Use(adminMiddlewares...)
			roleHandler.RegisterAssignmentRoutes(assignmentsGroup)

			api.GET("/principals/:principal_id/assignments", roleHandler.ListAssignments)
		}

		if deps.Services.Policies != nil {
			policiesGroup := api.Group("/policies")
			policiesGroup.Use(adminMiddlewares...)
			policyHandler := handlers.NewPolicyHandler(deps.Services.Policies)
			policyHandler.RegisterRoutes(policiesGroup)
		}

		if deps.Services.Resources != nil {
			resourceHandler := handlers.NewResourceHandler(deps.Services.Resources)

			resourcesGroup := api.Group("/resources")
			resourcesGroup.Use(adminMiddlewares...)
			resourceHandler.RegisterResourceRoutes(resourcesGroup)

			aclsGroup := api.Group("/acls")
			aclsGroup.Use(adminMiddlewares...)
			resourceHandler.RegisterACLRoutes(aclsGroup)
		}

		if deps.Services.Audits != nil {
			auditHandler := handlers.NewAuditHandler(deps.Services.Audits)
			auditHandler.RegisterRoutes(api.Group("/audit"))
		}
	}

	return r
}

// buildAdminMiddlewares rate limits mutating administration endpoints per client IP.
func buildAdminMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.AdminMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "admin_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
