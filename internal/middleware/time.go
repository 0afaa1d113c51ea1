package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/internal/middleware")

// Context key holding the time a request was received
const TimeKey = "time"

// Sets a fixed time as the authoritative time for a request being received
func Time(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			t := time.Now()
			c.Set(key, t)

			trace.SpanFromContext(c.Request().Context()).AddEvent("set_time", trace.WithAttributes(
				attribute.String("key", key),
				attribute.String("time", t.Format(time.RFC3339Nano)),
			))

			return next(c)
		}
	}
}

// Time stored by the Time middleware, or now when it is missing
func ReceivedAt(c echo.Context, key string) time.Time {
	if t, ok := c.Get(key).(time.Time); ok {
		return t
	}
	return time.Now()
}
