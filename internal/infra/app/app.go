package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/core/port"
	"github.com/Mohhit1230/Chat-App/internal/infra/config"
	kafkainfra "github.com/Mohhit1230/Chat-App/internal/infra/kafka"
	"github.com/Mohhit1230/Chat-App/internal/infra/logger"
	redisinfra "github.com/Mohhit1230/Chat-App/internal/infra/redis"
	"github.com/Mohhit1230/Chat-App/internal/infra/security"
	"github.com/Mohhit1230/Chat-App/internal/infra/telemetry"
	"github.com/Mohhit1230/Chat-App/internal/repository/memory"
	redisrepo "github.com/Mohhit1230/Chat-App/internal/repository/redis"
	"github.com/Mohhit1230/Chat-App/internal/transport/http/middleware"
	"github.com/Mohhit1230/Chat-App/internal/transport/http/routes"
	"github.com/Mohhit1230/Chat-App/internal/usecase"
)

const tracerName = "github.com/Mohhit1230/Chat-App"

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	store    *usecase.RevocationService
	producer *kafkainfra.Producer
	consumer *kafkainfra.ConsumerGroup
	tracing  *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	application := &Application{cfg: cfg, logger: log}
	origin := fmt.Sprintf("%s-%s", cfg.App.Name, uuid.NewString())

	if cfg.Telemetry.OTLPEndpoint != "" {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			log.Warn("tracing disabled", zap.Error(err))
		} else {
			application.tracing = tp
		}
	}

	verifier, err := security.NewHMACVerifier(cfg.JWT.Secret, cfg.JWT.Leeway)
	if err != nil {
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	revocationMetrics, err := telemetry.NewRevocationMetrics(telemetry.RevocationMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init revocation metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	store, err := usecase.NewRevocationService(ctx, memory.NewRevocationRepository(), redisConnector(cfg, log), usecase.RevocationOptions{
		OperationTimeout:  cfg.Revocation.OperationTimeout,
		HealthInterval:    cfg.Revocation.HealthInterval,
		ReconnectInterval: cfg.Revocation.ReconnectInterval,
		HashKeys:          cfg.Revocation.HashKeys,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init revocation store: %w", err)
	}
	store.WithMetrics(revocationMetrics)
	if application.tracing != nil {
		store.WithTracer(application.tracing.Tracer(tracerName))
	}
	application.store = store

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, origin, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			application.producer = producer
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
		}

		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = origin
		}
		handler := kafkainfra.NewRevocationConsumer(store, log, kafkainfra.RevocationConsumerOptions{
			Origin:      origin,
			MaxEventLag: time.Minute,
		})
		consumer, err := kafkainfra.NewConsumerGroup(cfg.Kafka, groupID, origin, handler, log)
		if err != nil {
			log.Warn("failed to init kafka consumer, peer revocations will not be applied", zap.Error(err))
		} else {
			application.consumer = consumer
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	gate := usecase.NewAuthGate(store, verifier, log).WithMetrics(revocationMetrics)
	sessions := usecase.NewSessionService(store, eventPublisher, cfg.Revocation.DefaultTTL, log).WithOrigin(origin)

	application.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Gate:        gate,
		Sessions:    sessions,
		Revocation:  store,
		HTTPMetrics: httpMetrics,
	})

	return application, nil
}

// redisConnector dials Redis only when host, port and password are all set.
func redisConnector(cfg *config.AppConfig, log *zap.Logger) usecase.RemoteConnector {
	return func(ctx context.Context) (port.RemoteRevocationBackend, error) {
		if !cfg.Redis.Complete() {
			return nil, domain.ErrConfigurationIncomplete
		}
		client, err := redisinfra.NewClient(ctx, cfg.Redis, redisinfra.ClientOptions{
			OperationTimeout: cfg.Revocation.OperationTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return redisrepo.NewRevocationRepository(client, cfg.Redis.KeyPrefix), nil
	}
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close()

	go a.store.Watch(ctx)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(ctx); err != nil {
				a.logger.Error("kafka consumer stopped", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting chat API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("revocation_store", string(a.store.Mode())),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

func (a *Application) close() {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Warn("close kafka consumer", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close revocation store", zap.Error(err))
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(context.Background()); err != nil {
			a.logger.Warn("shutdown tracing", zap.Error(err))
		}
	}
}
