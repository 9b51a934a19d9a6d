package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/core/port"
	"github.com/arklim/enterprise-authz/internal/infra/config"
	"github.com/arklim/enterprise-authz/internal/infra/database"
	"github.com/arklim/enterprise-authz/internal/infra/directory"
	kafkainfra "github.com/arklim/enterprise-authz/internal/infra/kafka"
	"github.com/arklim/enterprise-authz/internal/infra/logger"
	redisinfra "github.com/arklim/enterprise-authz/internal/infra/redis"
	"github.com/arklim/enterprise-authz/internal/infra/telemetry"
	memoryrepo "github.com/arklim/enterprise-authz/internal/repository/memory"
	postgresrepo "github.com/arklim/enterprise-authz/internal/repository/postgres"
	redisrepo "github.com/arklim/enterprise-authz/internal/repository/redis"
	"github.com/arklim/enterprise-authz/internal/transport/http/middleware"
	"github.com/arklim/enterprise-authz/internal/transport/http/routes"
	"github.com/arklim/enterprise-authz/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	recorder *usecase.AuditRecorder
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	provider, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	clock := port.SystemClock{}

	store := usecase.NewPolicyStore(repos.Roles, repos.Assignments, repos.Policies, repos.Grants)
	if err := store.EnsureSystemRoles(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("load policy store: %w", err)
	}

	// Redis is optional: without it decisions are cached in process and the
	// admin rate limiter is disabled.
	var redisClient *redisinfra.Client
	var decisionCache port.DecisionCache
	var rateLimiter *middleware.RateLimiter
	if cfg.Redis.Host != "" {
		redisClient, err = redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		decisionCache = redisrepo.NewDecisionCache(redisClient.Client(), cfg.Cache.DecisionKeyPrefix)

		rateLimitWindow := cfg.RateLimit.WindowDuration
		if rateLimitWindow <= 0 {
			rateLimitWindow = time.Minute
		}
		rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: "authz:rate-limit",
			TTL:       rateLimitWindow * 2,
		})
		rateLimiter = middleware.NewRateLimiter(rateLimitStore, log)
	} else {
		log.Info("redis not configured, using in-process decision cache")
		decisionCache = memoryrepo.NewDecisionCache(clock)
	}

	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	recorder := usecase.NewAuditRecorder(repos.Audit, clock, log, cfg.Audit.QueueSize)

	conditions := usecase.NewConditionRegistry(directory.NewStaticProvider())

	// Every service shares one guard so administrative invalidations fence
	// out in-flight decision write-backs.
	guardedCache := usecase.NewDecisionCacheGuard(decisionCache)

	evaluationService := usecase.NewEvaluationService(store, repos.Resources, repos.ACLs, guardedCache, conditions, recorder, clock, log).
		WithCacheTTL(cfg.Cache.DecisionTTL).
		WithMetrics(provider)
	assignmentService := usecase.NewAssignmentService(store, repos.Assignments, guardedCache, recorder, eventPublisher, clock, log)
	policyService := usecase.NewPolicyService(store, repos.Policies, guardedCache, recorder, eventPublisher, clock, log)
	resourceService := usecase.NewResourceService(repos.Resources, repos.ACLs, guardedCache, recorder, eventPublisher, clock, log)
	auditService := usecase.NewAuditService(repos.Audit, clock).
		WithViolationThreshold(cfg.Audit.ViolationThreshold)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     httpMetrics,
		Database:    pool,
		Services: routes.ServiceSet{
			Evaluations: evaluationService,
			Assignments: assignmentService,
			Policies:    policyService,
			Resources:   resourceService,
			Audits:      auditService,
		},
	}
	if redisClient != nil {
		deps.Cache = redisClient
	}

	engine := routes.Register(deps)

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		recorder: recorder,
		tracer:   tracer,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		// Drain queued audit entries before the pool goes away.
		if a.recorder != nil {
			a.recorder.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting authorization API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
