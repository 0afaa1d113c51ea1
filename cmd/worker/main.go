package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/worker/cmds"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
	internalotel "github.com/Ashutoshbind15/dev-iterate-sub000/internal/otel"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/workererrors"
)

func runApp(ctx context.Context) int {
	useOTLP, err := strconv.ParseBool(os.Getenv("USE_OTLP"))
	if err != nil {
		useOTLP = false
	}

	shutdown, err := internalotel.SetupOTelSDK(ctx, "judgestore-worker", useOTLP)
	if err != nil {
		logger.Logger.Warn("failed to setup otel sdk", "error", err)
	}
	defer func() {
		if fail := shutdown(context.Background()); fail != nil {
			logger.Logger.Warn("no clean shutdown for otel", "error", fail)
		}
	}()

	err = cmds.Execute(ctx)
	if err != nil {
		logger.Logger.Error("error executing subcommands", "error", err)

		var ee workererrors.ExitError
		if errors.As(err, &ee) {
			return ee.Code
		}
		return types.ExitErrored
	}

	return types.ExitNormal
}

func main() {
	logger.InitSlog(slog.LevelDebug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runApp(ctx)
	stop()

	os.Exit(code)
}
