package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Ramsey-B/dahlia/config"
	"github.com/Ramsey-B/dahlia/internal/handlers"
	activityrepo "github.com/Ramsey-B/dahlia/internal/repositories/activity"
	assignmentrepo "github.com/Ramsey-B/dahlia/internal/repositories/assignment"
	changelogrepo "github.com/Ramsey-B/dahlia/internal/repositories/changelogstore"
	companyrepo "github.com/Ramsey-B/dahlia/internal/repositories/company"
	contactrepo "github.com/Ramsey-B/dahlia/internal/repositories/contact"
	importlogrepo "github.com/Ramsey-B/dahlia/internal/repositories/importlog"
	noterepo "github.com/Ramsey-B/dahlia/internal/repositories/note"
	taskrepo "github.com/Ramsey-B/dahlia/internal/repositories/task"
	teamrepo "github.com/Ramsey-B/dahlia/internal/repositories/team"
	userrepo "github.com/Ramsey-B/dahlia/internal/repositories/user"
	"github.com/Ramsey-B/dahlia/pkg/changelog"
	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/events"
	"github.com/Ramsey-B/dahlia/pkg/health"
	"github.com/Ramsey-B/dahlia/pkg/importer"
	"github.com/Ramsey-B/dahlia/pkg/kafka"
	"github.com/Ramsey-B/dahlia/pkg/middleware"
	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/scope"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
	"github.com/Ramsey-B/dahlia/pkg/tracing/exporters"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	stopTracing := setupTracing(ctx, cfg, logger)
	defer stopTracing()

	sqlDB, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := runMigrations(cfg, logger, sqlDB); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	db := database.NewDatabaseInstance(sqlDB, logger)

	// Repositories
	users := userrepo.New(db, logger)
	teams := teamrepo.New(db, logger)
	companies := companyrepo.New(db, logger)
	contacts := contactrepo.New(db, logger)
	notes := noterepo.New(db, logger)
	assignments := assignmentrepo.New(db, logger)
	tasks := taskrepo.New(db, logger)
	activities := activityrepo.New(db, logger)
	importLogs := importlogrepo.New(db, logger)
	changeLog := changelogrepo.New(db, logger)

	resolver := scope.NewResolver(assignments, teams)
	recorder := changelog.NewRecorder(changeLog, logger)

	// Kafka customer events, no-op when disabled
	var customerEvents handlers.CustomerEvents = events.Noop{}
	var importEvents importer.Events = events.Noop{}
	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaEventsTopic,
		}, logger)
		emitter := events.NewEmitter(producer, logger)
		customerEvents = emitter
		importEvents = emitter
		logger.Infof("Kafka events enabled (topic: %s)", cfg.KafkaEventsTopic)
	}

	reconciler := importer.NewReconciler(
		db, logger,
		companies, contacts, notes, assignments, tasks, importLogs, teams,
		recorder, importEvents, cfg.ImportMaxRows,
	)

	// Redis-backed import rate limiting, skipped entirely when disabled
	var redisClient *redis.Client
	var importMiddleware []echo.MiddlewareFunc
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Redis")
			os.Exit(1)
		}
		defer redisClient.Close()

		limiter := redis.NewRateLimiter(redisClient, "import", cfg.ImportRateLimit, time.Minute)
		importMiddleware = append(importMiddleware, middleware.RateLimit(logger, limiter))
		logger.Infof("Import rate limiting enabled (%d/min)", cfg.ImportRateLimit)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.Recover())
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(middleware.Metrics())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	checker := health.NewChecker(dbPinger{db: db}, redisPinger(redisClient), version)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authMiddleware, err := authentication(cfg, logger, users)
	if err != nil {
		logger.WithError(err).Error("Failed to configure authentication")
		os.Exit(1)
	}

	api := e.Group("/api")
	api.Use(authMiddleware)

	handlers.NewCustomerHandler(
		resolver, companies, contacts, notes, assignments, tasks, activities,
		changeLog, recorder, reconciler, customerEvents, logger,
	).RegisterRoutes(api, importMiddleware...)
	handlers.NewTaskHandler(resolver, tasks, companies, recorder, logger).RegisterRoutes(api)
	handlers.NewUserHandler(users, logger).RegisterRoutes(api)
	handlers.NewTeamHandler(teams, users, logger).RegisterRoutes(api)
	handlers.NewUserAdminHandler(users, logger).RegisterRoutes(api)
	handlers.NewImportLogHandler(importLogs, assignments, companies, logger).RegisterRoutes(api)
	handlers.NewAnalyseHandler(resolver, users, assignments, tasks, activities, changeLog, logger).RegisterRoutes(api)

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	checker.SetReady(true)

	go func() {
		address := fmt.Sprintf(":%d", cfg.Port)
		logger.Infof("%s listening on %s", cfg.AppName, address)
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server stopped unexpectedly")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Forced server shutdown")
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Error("Failed to close Kafka producer")
		}
	}

	logger.Info("Server stopped")
}

// newLogger emits one JSON document per log line on stdout.
func newLogger(cfg config.Config) ectologger.Logger {
	enc := json.NewEncoder(os.Stdout)
	if cfg.PrettyLogs {
		enc.SetIndent("", "  ")
	}
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		_ = enc.Encode(msg)
	})
}

func setupTracing(ctx context.Context, cfg config.Config, logger ectologger.Logger) func() {
	if !cfg.TracingEnabled {
		return func() {}
	}

	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: "grpc",
		Insecure: true,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to create OTLP exporter; tracing disabled")
		return func() {}
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.AppName),
			semconv.ServiceVersion(version),
		)),
	)
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))
	logger.Infof("Tracing enabled (endpoint: %s)", cfg.TracingOTLPEndpoint)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to shut down tracer provider")
		}
	}
}

func connectDatabase(ctx context.Context, cfg config.Config, logger ectologger.Logger) (*sqlx.DB, error) {
	connCfg := database.ConnectionConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}

	var db *sqlx.DB
	var err error
	for attempt := 1; attempt <= cfg.StartupMaxAttempts; attempt++ {
		db, err = database.Connect(ctx, connCfg, logger)
		if err == nil {
			return db, nil
		}
		logger.WithError(err).Warnf("Database connection attempt %d/%d failed", attempt, cfg.StartupMaxAttempts)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return nil, err
}

func runMigrations(cfg config.Config, logger ectologger.Logger, db *sqlx.DB) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	service := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return service.Migrate(cfg.DatabaseName, driver)
}

// authentication picks OIDC token verification or the header-based local
// substitute depending on AUTH_ENABLED.
func authentication(cfg config.Config, logger ectologger.Logger, users *userrepo.Repository) (echo.MiddlewareFunc, error) {
	if cfg.AuthEnabled {
		return middleware.Authentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID, users)
	}
	logger.Warn("Token authentication disabled; using X-User-ID header auth")
	return middleware.HeaderAuthentication(logger, users), nil
}

// dbPinger adapts the database handle to the health checker.
type dbPinger struct {
	db database.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// redisPinger returns a nil Pinger when Redis is disabled so the health
// checker skips the check instead of probing a typed nil client.
func redisPinger(client *redis.Client) health.Pinger {
	if client == nil {
		return nil
	}
	return client
}
