package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	sloggorm "github.com/orandin/slog-gorm"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	otellib "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/dispatch"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/gate"
	servermiddleware "github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/middleware"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/migrations"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/routes"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/routes/coding"
	routesv1 "github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/routes/v1"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/submissions"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/watch"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/config"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/otel"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/queue"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/taskrunner"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/upload"
)

const name string = "github.com/Ashutoshbind15/dev-iterate-sub000/judgestore"

var tracer = otellib.Tracer(name)

type server struct {
	router        *echo.Echo
	config        *config.Config
	redis         *redis.Client
	analysisQueue queue.Queuer
	taskRunner    *taskrunner.Client
	otelShutdown  func(context.Context) error
}

// Everything the routes need, built by initServer or by tests
type dependencies struct {
	db            *gorm.DB
	archive       upload.Uploader
	broker        watch.Broker
	dispatcher    submissions.Dispatcher
	analysisQueue queue.Queuer
	analysis      config.AnalysisConfig
	tasks         *taskrunner.Client
}

func buildRouter(deps dependencies) (*echo.Echo, error) {
	e, err := routes.BuildEcho(logger.Logger)
	if err != nil {
		return nil, err
	}

	analysisGate := gate.New(deps.db, deps.analysisQueue, deps.analysis.BatchSize, deps.analysis.PastRemarks)
	service := submissions.New(deps.db, deps.archive, deps.broker, deps.dispatcher, analysisGate)
	middlewareHandler := servermiddleware.Handler{DB: deps.db}

	routesv1.NewHandler(service, deps.broker, deps.tasks).AddRoutes(e, &middlewareHandler)
	coding.NewHandler(service, analysisGate).AddRoutes(e)

	return e, nil
}

func initServer(ctx context.Context) (*server, error) {
	server := new(server)

	cfg, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize server config: %w", err)
	}
	server.config = cfg

	shutdownOTel, err := otel.SetupOTelSDK(ctx, "judgestore", cfg.Logging.UseOTLP)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTEL SDK: %w", err)
	}
	defer func() {
		// Something failed to initialize, make sure everything gets flushed to the server
		if server.otelShutdown == nil {
			otelShutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
			defer cancel()

			if err = shutdownOTel(otelShutdownCtx); err != nil {
				logger.Logger.Error("failed to flush otel data", "error", err)
			}
		}
	}()

	ctx, span := tracer.Start(ctx, "initServer")
	defer span.End()

	logger.LogLevel.Set(slog.Level(cfg.Logging.App.Level))

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to initialize database")
		return nil, err
	}

	span.AddEvent("migrated database to latest version")

	analysisQueue, err := newAnalysisQueue(ctx, cfg.Queue)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to initialize analysis queue")
		return nil, fmt.Errorf("failed to initialize analysis queue: %w", err)
	}
	server.analysisQueue = analysisQueue

	span.AddEvent("initialized analysis queue")

	archive, err := newArchive(ctx, cfg.Archive)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to initialize source archive")
		return nil, fmt.Errorf("failed to initialize source archive: %w", err)
	}

	span.AddEvent("initialized source archive")

	var broker watch.Broker = watch.NewLocalBroker()
	if cfg.Redis.Enabled() {
		server.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err = server.redis.Ping(ctx).Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to reach redis")
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		broker = watch.NewRedisBroker(server.redis)
		span.AddEvent("using redis watch broker")
	}

	taskRunnerClient := taskrunner.Create()

	e, err := buildRouter(dependencies{
		db:            db,
		archive:       archive,
		broker:        broker,
		dispatcher:    dispatch.New(cfg.Judge.BaseURL, cfg.Judge.DispatchTimeout),
		analysisQueue: analysisQueue,
		analysis:      *cfg.Analysis,
		tasks:         taskRunnerClient,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error building router")
		return nil, fmt.Errorf("error building router: %w", err)
	}

	span.AddEvent("created echo router")

	server.otelShutdown = shutdownOTel
	server.router = e
	server.taskRunner = taskRunnerClient

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "initialized server")
	return server, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	gormLogger := slog.New(logger.Handler)

	opts := []sloggorm.Option{
		sloggorm.WithHandler(gormLogger.Handler()),
		sloggorm.SetLogLevel(sloggorm.DefaultLogType, slog.Level(cfg.Logging.Gorm.Level)),
	}
	if cfg.Logging.Gorm.TraceQueries {
		opts = append(opts, sloggorm.WithTraceAll())
	}

	db, err := gorm.Open(
		postgres.Open(cfg.PostgresDSN()),
		&gorm.Config{Logger: sloggorm.New(opts...), TranslateError: true},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire underlying database connection: %w", err)
	}

	// Configure db connection pool
	sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConnections)
	sqlDB.SetConnMaxLifetime(cfg.Postgres.ConnectionTTL)

	if err = db.Use(gormtracing.NewPlugin()); err != nil {
		return nil, fmt.Errorf("failed to add otel plugin to gorm: %w", err)
	}

	version, err := migrations.Up(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to perform database migrations: %w", err)
	}
	logger.Logger.InfoContext(ctx, "database schema ready", "version", version)

	return db, nil
}

func newAnalysisQueue(ctx context.Context, cfg *config.QueueConfig) (queue.Queuer, error) {
	switch cfg.Backend {
	case "kafka":
		return queue.NewKafkaQueuer(queue.KafkaConfig{
			ClientID: "judgestore",
			Topic:    cfg.Kafka.Topic,
			Brokers:  cfg.Kafka.Brokers,
		})
	default:
		q, err := queue.NewAzureQueuer(queue.AzureConfig{
			AccountName: cfg.Azure.AccountName,
			AccountKey:  cfg.Azure.AccountKey,
			ServiceURL:  cfg.Azure.URL,
			QueueName:   cfg.Azure.Name,
		})
		if err != nil {
			return nil, err
		}
		if err := q.Ensure(ctx); err != nil {
			return nil, err
		}
		return q, nil
	}
}

func newArchive(ctx context.Context, cfg config.ArchiveConfig) (upload.Uploader, error) {
	backoff := func() retry.Backoff {
		return retry.WithMaxRetries(3, retry.NewFibonacci(25*time.Millisecond))
	}

	switch cfg.Backend {
	case "minio":
		u, err := upload.NewMinioUploader(upload.MinioConfig{
			Endpoint: cfg.Minio.Endpoint,
			KeyID:    cfg.Minio.AccessKeyID,
			Secret:   cfg.Minio.SecretAccessKey,
			Bucket:   cfg.Minio.BucketName,
			SSL:      cfg.Minio.SSLEnabled,
		})
		if err != nil {
			return nil, err
		}
		if err := u.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return upload.NewRetryUploaderBackoff(u, backoff), nil
	case "azure":
		u, err := upload.NewAzureUploader(upload.AzureConfig{
			AccountName: cfg.Azure.AccountName,
			AccountKey:  cfg.Azure.AccountKey,
			ServiceURL:  cfg.Azure.URL,
			Container:   cfg.Azure.Container,
		})
		if err != nil {
			return nil, err
		}
		if err := u.EnsureContainer(ctx); err != nil {
			return nil, err
		}
		return upload.NewRetryUploaderBackoff(u, backoff), nil
	default:
		logger.Logger.Warn("source archive is disabled")
		return upload.Disabled{}, nil
	}
}

func (s *server) Start() error {
	logger.Logger.Info("Starting services...", "address", s.config.ListenAddress)

	err := s.router.Start(s.config.ListenAddress)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *server) Shutdown() error {
	var errs error

	ctx, cancelTimeout := context.WithTimeout(context.Background(), s.config.ShutdownTimeout())
	defer cancelTimeout()

	if err := s.router.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, err)
	}

	// pending dispatches still run, they may end a submission in error
	if err := s.taskRunner.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to shutdown taskRunner gracefully: %w", err))
	}

	if closer, ok := s.analysisQueue.(interface{ Close() error }); ok {
		errs = errors.Join(errs, closer.Close())
	}

	if s.redis != nil {
		errs = errors.Join(errs, s.redis.Close())
	}

	if s.otelShutdown != nil {
		errs = errors.Join(errs, s.otelShutdown(ctx))
	}

	return errs
}

func main() {
	ctx, cancelSignal := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)

	logger.InitSlog(slog.LevelDebug)

	server, err := initServer(ctx)
	if err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	errch := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Got shutdown signal!")
		errch <- server.Shutdown()
		close(errch)
	}()

	if err := server.Start(); err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	if err := <-errch; err != nil {
		logger.Logger.Error("Error shutting down server", "error", err)
	}

	cancelSignal()
}
