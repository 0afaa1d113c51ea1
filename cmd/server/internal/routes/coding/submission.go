package coding

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/response"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/submissions"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

// binds and validates the body, answering 400 itself
func bindBody(c echo.Context, out any) error {
	if err := c.Bind(out); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, types.StringError("failed to parse request data"))
	}
	if err := c.Validate(out); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, types.ValidationError(err))
	}
	return nil
}

// TestCases answers the judging settings and ordered test cases of a question
func (h *Handler) TestCases(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "TestCases")
	defer span.End()

	var rdata types.TestCasesRequest
	if err := bindBody(c, &rdata); err != nil {
		span.SetStatus(codes.Ok, "invalid request")
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.String("questionID", rdata.QuestionID))

	resp, err := h.service.TestCases(ctx, uuid.MustParse(rdata.QuestionID))
	if errors.Is(err, submissions.ErrQuestionNotFound) {
		span.SetStatus(codes.Ok, "question not found")
		span.RecordError(err)
		return response.NotFoundError
	}
	if err != nil {
		span.SetStatus(codes.Error, "failed to load test cases")
		span.RecordError(err)
		return response.InternalServerError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "returned test cases")
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SubmissionRunning(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "SubmissionRunning")
	defer span.End()

	var rdata types.SubmissionRunning
	if err := bindBody(c, &rdata); err != nil {
		span.SetStatus(codes.Ok, "invalid request")
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.String("submissionID", rdata.SubmissionID))

	err := h.service.MarkRunning(ctx, uuid.MustParse(rdata.SubmissionID))
	if errors.Is(err, submissions.ErrNotFound) {
		span.SetStatus(codes.Ok, "submission not found")
		span.RecordError(err)
		return response.NotFoundError
	}
	if err != nil {
		span.SetStatus(codes.Error, "failed to mark running")
		span.RecordError(err)
		return response.InternalServerError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "marked running")
	return c.JSON(http.StatusOK, types.OK{OK: true})
}

func (h *Handler) SubmissionResult(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "SubmissionResult")
	defer span.End()

	var rdata types.SubmissionResult
	if err := bindBody(c, &rdata); err != nil {
		span.SetStatus(codes.Ok, "invalid request")
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.String("submissionID", rdata.SubmissionID),
		attribute.String("status", string(rdata.Status)),
	)

	if rdata.PassedCount != nil && rdata.TotalCount != nil && *rdata.PassedCount > *rdata.TotalCount {
		span.SetStatus(codes.Ok, "passed count above total count")
		span.RecordError(nil)
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.FieldError("validation error", "passedCount", "must not exceed totalCount"),
		)
	}

	err := h.service.ApplyResult(ctx, rdata, false)
	if errors.Is(err, submissions.ErrNotFound) {
		span.SetStatus(codes.Ok, "submission not found")
		span.RecordError(err)
		return response.NotFoundError
	}
	if errors.Is(err, submissions.ErrPassedExceedsTotal) {
		span.SetStatus(codes.Ok, "passed count above stored total count")
		span.RecordError(err)
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.FieldError("validation error", "passedCount", "must not exceed totalCount"),
		)
	}
	if err != nil {
		span.SetStatus(codes.Error, "failed to apply result")
		span.RecordError(err)
		return response.InternalServerError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "applied result")
	return c.JSON(http.StatusOK, types.OK{OK: true})
}
