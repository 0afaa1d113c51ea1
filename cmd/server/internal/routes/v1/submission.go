package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/models"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/response"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/submissions"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

var errTypeAssertMismatch = errors.New("type assertion mismatch")

// CreateSubmission stores a queued submission, answers with it and dispatches it to the
// judging service in the background
func (h *Handler) CreateSubmission(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "CreateSubmission")
	defer span.End()

	var rdata types.CreateSubmission

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

	span.SetAttributes(
		attribute.String("questionID", rdata.QuestionID),
		attribute.String("userID", rdata.UserID),
		attribute.Int("languageID", rdata.LanguageID),
	)

	submission, err := h.service.Create(ctx, rdata)
	switch {
	case errors.Is(err, submissions.ErrQuestionNotFound):
		span.SetStatus(codes.Ok, "question not found")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusNotFound, types.StringError("question not found"))
	case errors.Is(err, submissions.ErrLanguageNotAllowed):
		span.SetStatus(codes.Ok, "language not allowed")
		span.RecordError(err)
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.FieldError("validation error", "languageId", "not allowed for this question"),
		)
	case err != nil:
		span.SetStatus(codes.Error, "failed to create submission")
		span.RecordError(err)
		return response.InternalServerError
	}

	span.AddEvent("archiving source")
	if err := h.service.Archive(ctx, submission); err != nil {
		logger.Logger.WarnContext(ctx, "failed to archive submission source",
			"submissionID", submission.ID, "error", err)
	}

	queued := *submission
	h.tasks.Run(ctx, "dispatch-submission", func(ctx context.Context) {
		h.service.Dispatch(ctx, &queued)
	})

	span.SetAttributes(attribute.String("submissionID", submission.ID.String()))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created submission")
	return c.JSON(http.StatusCreated, submission.ToType())
}

func (h *Handler) GetSubmission(c echo.Context) error {
	_, span := tracer.Start(c.Request().Context(), "GetSubmission")
	defer span.End()

	submission, ok := c.Get(submissionKey).(*models.Submission)
	if !ok {
		span.RecordError(errTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("submission: %s", errTypeAssertMismatch))
		return response.InternalServerError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got submission")
	return c.JSON(http.StatusOK, submission.ToType())
}

func (h *Handler) ListSubmissions(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListSubmissions")
	defer span.End()

	rdata := types.ListSubmissions{UserID: c.Param("user_id")}
	var questionID, cursor string

	span.AddEvent("parsing query")
	err := echo.QueryParamsBinder(c).
		String("question_id", &questionID).
		String("cursor", &cursor).
		Int("limit", &rdata.Limit).
		BindError()
	if err != nil {
		span.SetStatus(codes.Ok, "failed to parse query")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusBadRequest, types.StringError("failed to parse query"))
	}
	if questionID != "" {
		rdata.QuestionID = &questionID
	}
	if cursor != "" {
		rdata.Cursor = &cursor
	}

	if err := c.Validate(rdata); err != nil {
		span.SetStatus(codes.Ok, "failed to validate request data")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusBadRequest, types.ValidationError(err))
	}

	page, err := h.service.List(ctx, rdata)
	if errors.Is(err, submissions.ErrInvalidCursor) {
		span.SetStatus(codes.Ok, "invalid cursor")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusBadRequest, types.FieldError("validation error", "cursor", err.Error()))
	}
	if err != nil {
		span.SetStatus(codes.Error, "failed to list submissions")
		span.RecordError(err)
		return response.InternalServerError
	}

	span.SetAttributes(attribute.Int("returned", len(page.Page)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed submissions")
	return c.JSON(http.StatusOK, page)
}
