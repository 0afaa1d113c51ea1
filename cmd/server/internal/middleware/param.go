// Package middleware holds the store specific echo middleware
package middleware

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/models"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/response"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/middleware")

type Handler struct {
	DB *gorm.DB
}

func unknownRecord(paramName string) error {
	return echo.NewHTTPError(
		http.StatusNotFound,
		types.FieldError("not found", paramName, "no record with this id"),
	)
}

// PopulateFromIDParam loads the T named by the path parameter and stores it in the echo
// context under contextName as a *T. Ids that are not uuids answer 404 like unknown ones.
func PopulateFromIDParam[T models.Record](
	h *Handler,
	paramName string,
	contextName string,
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracer.Start(c.Request().Context(), "PopulateFromIDParam")
			defer span.End()

			raw := c.Param(paramName)
			span.SetAttributes(
				attribute.String("param", paramName),
				attribute.String("param.value", raw),
			)

			id, err := uuid.Parse(raw)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Ok, "not a uuid")
				return unknownRecord(paramName)
			}

			record, err := models.ByID[T](ctx, h.DB, id)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				span.RecordError(err)
				span.SetStatus(codes.Ok, "unknown id")
				return unknownRecord(paramName)
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, "lookup failed")
				return response.InternalServerError
			}

			c.Set(contextName, record)

			span.RecordError(nil)
			span.SetStatus(codes.Ok, "populated")
			return next(c)
		}
	}
}
