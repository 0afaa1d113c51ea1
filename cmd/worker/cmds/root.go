package cmds

import (
	"context"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
)

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/worker/cmds")

var workerLog = logger.ForComponent("worker")

var rootCmd = &cobra.Command{
	Use:           "worker",
	Short:         "Background work for the submission store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
