package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/response"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

func (h *Handler) CreateQuestion(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "CreateQuestion")
	defer span.End()

	var rdata types.CreateQuestion

	span.AddEvent("parsing request body")
	if err := c.Bind(&rdata); err != nil {
		span.SetStatus(codes.Ok, "failed to parse request data")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusBadRequest, types.StringError("failed to parse request data"))
	}

	span.AddEvent("validating request body")
	if err := c.Validate(rdata); err != nil {
		span.SetStatus(codes.Ok, "failed to validate request data")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusBadRequest, types.ValidationError(err))
	}

	question, err := h.service.CreateQuestion(ctx, rdata)
	if err != nil {
		span.SetStatus(codes.Error, "failed to create question")
		span.RecordError(err)
		return response.InternalServerError
	}

	span.SetAttributes(attribute.String("questionID", question.ID.String()))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created question")
	return c.JSON(http.StatusCreated, question.ToType(len(question.TestCases)))
}
