package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/runner"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/middleware"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
	srcvalidator "github.com/Ashutoshbind15/dev-iterate-sub000/internal/validator"
)

const (
	MessageInvalidBody    = "Invalid request body"
	MessageSourceTooLarge = "sourceCode exceeds MAX_SOURCE_BYTES"
	MessageAlreadyJudging = "Submission is already being judged"
	MessageMarkFailed     = "Failed to mark submission as running"
	MessageQueued         = "Submission queued for execution"
)

func rejection(status int, submissionID string, message string, details map[string]any) *echo.HTTPError {
	return echo.NewHTTPError(status, types.JudgeQuestionResponse{
		Status:       types.JudgeStatusError,
		SubmissionID: submissionID,
		Message:      message,
		Details:      details,
	})
}

func issues(err error) []map[string]string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []map[string]string{{"message": err.Error()}}
	}

	out := make([]map[string]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		out = append(out, map[string]string{
			"path":    fe.Field(),
			"message": "failed to validate while checking condition: " + fe.Tag(),
		})
	}
	return out
}

// JudgeQuestion acknowledges a dispatch once the submission is marked running and
// judges it in the background
func (h *Handler) JudgeQuestion(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "JudgeQuestion")
	defer span.End()

	requestID := middleware.GetRequestID(c)
	receivedAt := middleware.ReceivedAt(c, middleware.TimeKey)
	span.SetAttributes(attribute.String("requestID", requestID))

	var rdata types.JudgeQuestion

	span.AddEvent("parsing request body")
	if err := c.Bind(&rdata); err != nil {
		span.SetStatus(codes.Ok, "failed to parse request data")
		span.RecordError(err)
		return rejection(http.StatusBadRequest, "", MessageInvalidBody, map[string]any{
			"issues": []map[string]string{{"message": "malformed JSON body"}},
		})
	}

	span.AddEvent("validating request body")
	if err := c.Validate(rdata); err != nil {
		span.SetStatus(codes.Ok, "failed to validate request data")
		span.RecordError(err)
		return rejection(http.StatusBadRequest, rdata.SubmissionID, MessageInvalidBody, map[string]any{
			"issues": issues(err),
		})
	}

	span.SetAttributes(
		attribute.String("submissionID", rdata.SubmissionID),
		attribute.String("questionID", rdata.QuestionID),
		attribute.Int("languageID", rdata.LanguageID),
		attribute.Int("sourceBytes", len(rdata.SourceCode)),
	)

	if !srcvalidator.ValidateSourceSize(rdata.SourceCode, h.maxSourceBytes) {
		span.SetStatus(codes.Ok, "source too large")
		span.RecordError(nil)
		return rejection(http.StatusBadRequest, rdata.SubmissionID, MessageSourceTooLarge, map[string]any{
			"maxBytes": h.maxSourceBytes,
		})
	}

	kind := rdata.SubmissionKind
	if kind == "" {
		kind = types.SubmissionKindStandard
	}

	span.AddEvent("claiming submission")
	claimed, err := h.guard.Acquire(ctx, rdata.SubmissionID)
	if err != nil {
		slog.WarnContext(ctx, "in-flight guard unavailable", "error", err, "submissionID", rdata.SubmissionID)
	}
	if !claimed {
		span.SetStatus(codes.Ok, "submission already in flight")
		span.RecordError(err)
		return rejection(http.StatusConflict, rdata.SubmissionID, MessageAlreadyJudging, map[string]any{
			"requestId": requestID,
		})
	}

	span.AddEvent("marking submission running")
	err = h.store.MarkRunning(ctx, types.SubmissionRunning{
		SubmissionID:   rdata.SubmissionID,
		SubmissionKind: kind,
	})
	if err != nil {
		h.release(ctx, rdata.SubmissionID)
		slog.ErrorContext(ctx, "failed to mark submission running", "error", err, "submissionID", rdata.SubmissionID)
		span.SetStatus(codes.Error, "failed to mark running")
		span.RecordError(err)
		return rejection(http.StatusBadGateway, rdata.SubmissionID, MessageMarkFailed, map[string]any{
			"requestId": requestID,
		})
	}

	job := runner.Job{
		ReceivedAt:   receivedAt,
		RequestID:    requestID,
		SubmissionID: rdata.SubmissionID,
		QuestionID:   rdata.QuestionID,
		SourceCode:   rdata.SourceCode,
		Kind:         kind,
		LanguageID:   rdata.LanguageID,
	}

	h.tasks.Run(ctx, "judge-submission", func(ctx context.Context) {
		defer h.release(ctx, job.SubmissionID)
		h.runner.Process(ctx, job)
	})

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "accepted submission")
	return c.JSON(http.StatusAccepted, types.JudgeQuestionResponse{
		Status:       types.JudgeStatusAccepted,
		SubmissionID: rdata.SubmissionID,
		Message:      MessageQueued,
		Details:      map[string]any{"requestId": requestID},
	})
}

func (h *Handler) release(ctx context.Context, submissionID string) {
	if err := h.guard.Release(ctx, submissionID); err != nil {
		slog.WarnContext(ctx, "failed to release in-flight claim", "error", err, "submissionID", submissionID)
	}
}
