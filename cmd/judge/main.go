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

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	otellib "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/inflight"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/routes"
	routesv1 "github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/routes/v1"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/runner"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/config"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/judge0"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/otel"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/storeclient"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/taskrunner"
)

const name string = "github.com/Ashutoshbind15/dev-iterate-sub000/judge"

var tracer = otellib.Tracer(name)

type server struct {
	router       *echo.Echo
	config       *config.JudgeConfig
	redis        *redis.Client
	taskRunner   *taskrunner.Client
	otelShutdown func(context.Context) error
}

func initServer(ctx context.Context) (*server, error) {
	server := new(server)

	cfg, err := config.LoadJudge()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize judge config: %w", err)
	}
	server.config = cfg

	shutdownOTel, err := otel.SetupOTelSDK(ctx, "judge", cfg.Logging.UseOTLP)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTEL SDK: %w", err)
	}
	defer func() {
		// flush whatever was recorded if initialization bailed out
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

	engine := judge0.NewClient(cfg.EngineClientConfig())
	store := storeclient.New(storeclient.Config{
		BaseURL:  cfg.Store.BaseURL,
		Timeout:  cfg.Store.RequestTimeout,
		RetryMax: 2,
	})

	span.AddEvent("initialized engine and store clients")

	var guard inflight.Guard = inflight.NewLocalGuard()
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
		guard = inflight.NewRedisGuard(inflight.RedisGuardConfig{
			RedisClient: server.redis,
			TTL:         cfg.InFlightTTL,
			FailOpen:    true,
		})
		span.AddEvent("using redis in-flight guard")
	}

	judgeRunner, err := runner.New(engine, store, cfg.Limits.MaxTestCases)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create runner")
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	taskRunnerClient := taskrunner.Create()

	e, err := routes.BuildEcho(logger.Logger, engine)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error building router")
		return nil, fmt.Errorf("error building router: %w", err)
	}

	span.AddEvent("created echo router")

	routesv1.NewHandler(store, judgeRunner, guard, taskRunnerClient, cfg.Limits.MaxSourceBytes).AddRoutes(e)

	server.otelShutdown = shutdownOTel
	server.router = e
	server.taskRunner = taskRunnerClient

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "initialized judge")
	return server, nil
}

func (s *server) Start() error {
	logger.Logger.Info("Starting judge...", "address", s.config.ListenAddress)

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

	// in-flight submissions still report their results before the process exits
	if err := s.taskRunner.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to shutdown taskRunner gracefully: %w", err))
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

	logger.InitSlog(slog.LevelInfo)

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
