package routes

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/judge0"
	commonmiddleware "github.com/Ashutoshbind15/dev-iterate-sub000/internal/middleware"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/validator"
)

// Reachability check against the execution engine
type Prober interface {
	Languages(ctx context.Context) ([]judge0.Language, error)
}

type engineHealth struct {
	Error     string `json:"error,omitempty"`
	Reachable bool   `json:"reachable"`
}

type readiness struct {
	Engine *engineHealth `json:"engine,omitempty"`
	OK     bool          `json:"ok"`
}

func BuildEcho(logger *slog.Logger, engine Prober) (*echo.Echo, error) {
	e := echo.New()

	validate := validator.Create()
	e.Validator = &validate

	e.Pre(middleware.AddTrailingSlash())

	e.Use(
		otelecho.Middleware("judge"),
		slogecho.NewWithConfig(logger, slogecho.Config{WithRequestID: true}),
		commonmiddleware.RequestID(),
		commonmiddleware.Time(commonmiddleware.TimeKey),
	)

	e.GET("/healthz/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, types.OK{OK: true})
	})

	e.GET("/readyz/", func(c echo.Context) error {
		if _, err := engine.Languages(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, readiness{
				Engine: &engineHealth{Reachable: false, Error: err.Error()},
			})
		}
		return c.JSON(http.StatusOK, readiness{OK: true})
	})

	return e, nil
}
