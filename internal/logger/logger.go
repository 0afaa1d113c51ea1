package logger

import (
	"log/slog"
	"os"

	slogotel "github.com/remychantenay/slog-otel"
)

var LogLevel = new(slog.LevelVar)

var jsonHandler = slog.NewJSONHandler(
	os.Stderr,
	&slog.HandlerOptions{AddSource: true, Level: LogLevel},
)
var sloghandler = slogotel.NewOtelHandler(slogotel.WithNoTraceEvents(true))
var Handler = sloghandler(jsonHandler)
var Logger = slog.New(Handler)

// Installs the otel aware JSON logger as the process default at the given level
func InitSlog(level slog.Level) {
	slog.SetDefault(Logger)
	LogLevel.Set(level)
}

// Logger tagged with the binary or subsystem emitting the records
func ForComponent(component string) *slog.Logger {
	return Logger.With("component", component)
}
