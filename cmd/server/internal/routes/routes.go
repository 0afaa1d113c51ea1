package routes

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/middleware"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/validator"
)

func BuildEcho(logger *slog.Logger) (*echo.Echo, error) {
	e := echo.New()

	validate := validator.Create()
	e.Validator = &validate

	e.Pre(echomiddleware.AddTrailingSlash())

	e.Use(
		otelecho.Middleware("judgestore"),
		slogecho.NewWithConfig(logger, slogecho.Config{WithRequestID: true}),
		middleware.RequestID(),
		middleware.Time(middleware.TimeKey),
	)

	e.GET("/health/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	return e, nil
}
