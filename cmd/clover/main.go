package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/contact"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/reconcile"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/verifier"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, syncLogs, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer syncLogs()

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(cfg, logger)
	if err := app.startup.Start(ctx); err != nil {
		_ = app.startup.Stop(context.Background())
		return err
	}
	app.health.SetReady(true)
	logger.Infof("%s %s started", cfg.AppName, cfg.Version)

	<-ctx.Done()
	logger.Info("Shutting down")
	app.health.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	errs = append(errs, app.startup.Stop(shutdownCtx))
	errs = append(errs, tp.Shutdown(shutdownCtx))
	return errors.Join(errs...)
}

type app struct {
	cfg     config.Config
	logger  ectologger.Logger
	startup *startup.Startup
	health  *health.Checker

	db       *database.DatabaseInstance
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	echo     *echo.Echo
}

func newApp(cfg config.Config, logger ectologger.Logger) *app {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}

	checks := map[string]health.Pinger{
		"database": health.PingFunc(func(ctx context.Context) error {
			if a.db == nil {
				return errors.New("database not connected")
			}
			return a.db.PingContext(ctx)
		}),
	}
	if cfg.RedisEnabled {
		checks["redis"] = health.PingFunc(func(ctx context.Context) error {
			if a.redis == nil {
				return errors.New("redis not connected")
			}
			return a.redis.Ping(ctx)
		})
	}
	a.health = health.NewChecker(cfg.Version, checks)

	a.startup.AddDependency(&startup.Dependency{
		Name:      "database",
		StartFunc: a.startDatabase,
		StopFunc: func(context.Context) error {
			return a.db.Close()
		},
	})

	consumerRequires := []string{"database"}
	if cfg.RedisEnabled {
		consumerRequires = append(consumerRequires, "redis")
		a.startup.AddDependency(&startup.Dependency{
			Name:      "redis",
			StartFunc: a.startRedis,
			StopFunc: func(context.Context) error {
				return a.redis.Close()
			},
		})
	}

	if cfg.KafkaConsumerEnabled {
		a.startup.AddDependency(&startup.Dependency{
			Name:      "consumer",
			Requires:  consumerRequires,
			StartFunc: a.startConsumer,
			StopFunc: func(context.Context) error {
				return errors.Join(a.consumer.Stop(), a.producer.Close())
			},
		})
	}

	a.startup.AddDependency(&startup.Dependency{
		Name:      "http",
		Requires:  []string{"database"},
		StartFunc: a.startHTTP,
		StopFunc: func(ctx context.Context) error {
			return a.echo.Shutdown(ctx)
		},
	})

	return a
}

func (a *app) startDatabase(ctx context.Context) error {
	if a.db == nil {
		db, err := database.Open(ctx, a.cfg.DatabaseDriver, a.cfg.DatabaseDSN(), database.PoolConfig{
			MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
			MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
			ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = db
	}

	migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	})
	return migrations.MigratePostgres(a.db, a.cfg.DatabaseName)
}

func (a *app) startRedis(_ context.Context) error {
	if a.redis != nil {
		return nil
	}
	client, err := redis.NewClient(redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	return nil
}

func (a *app) newService() *reconcile.Service {
	repo := contact.NewRepository(a.db, a.logger)

	var emailVerifier reconcile.EmailVerifier = verifier.Noop{}
	if a.cfg.VerifierURL != "" {
		emailVerifier = verifier.NewClient(a.cfg.VerifierURL, a.cfg.VerifierTimeout, a.logger)
	}

	opts := []reconcile.Option{
		reconcile.WithVerifier(emailVerifier),
		reconcile.WithPublisher(events.NewEmitter(a.producer, a.logger)),
	}
	if a.redis != nil {
		opts = append(opts, reconcile.WithLocker(redis.NewLocker(a.redis, a.cfg.LeadLockTTL)))
	}

	return reconcile.NewService(a.logger, repo, repo, a.cfg.ReconcileConfig(), opts...)
}

func (a *app) startConsumer(ctx context.Context) error {
	if a.producer == nil {
		a.producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      a.cfg.KafkaBrokers,
			Topic:        a.cfg.KafkaOutputTopic,
			BatchSize:    a.cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: a.cfg.KafkaRequiredAcks,
			Compression:  a.cfg.KafkaCompression,
		}, a.logger)
	}

	proc := processor.NewProcessor(a.logger, a.newService())
	a.consumer = kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:       a.cfg.KafkaBrokers,
		Topic:         a.cfg.KafkaInputTopic,
		ConsumerGroup: a.cfg.KafkaConsumerGroup,
	}, a.logger, proc.Handle)

	return a.consumer.Start(ctx)
}

func (a *app) startHTTP(_ context.Context) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: a.cfg.AllowOrigins}))

	a.health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Port),
		ReadTimeout:  time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
	}
	a.echo = e

	go func() {
		if err := e.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server stopped")
		}
	}()

	a.logger.Infof("HTTP server listening on %s", server.Addr)
	return nil
}
