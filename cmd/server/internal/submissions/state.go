package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/models"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/audit"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

// Only open submissions change. Terminal ones are immutable.
const openGuard = "id = ? AND status IN ?"

// ErrPassedExceedsTotal rejects a result whose passed count would end up above the total,
// counting the stored value for whichever of the two the result leaves out.
var ErrPassedExceedsTotal = errors.New("passed count exceeds total count")

// MarkRunning moves a queued submission to running. Repeating it, or calling it on a
// submission that already finished, changes nothing.
func (s *Service) MarkRunning(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "Service.MarkRunning", trace.WithAttributes(
		attribute.String("submissionID", id.String()),
	))
	defer span.End()

	db := s.db.WithContext(ctx)

	result := db.Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, types.SubmissionStatusQueued).
		Update("status", types.SubmissionStatusRunning)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to mark running")
		return fmt.Errorf("failed to mark running: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		if err := s.requireExists(ctx, id); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "submission not found")
			return err
		}
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "already past queued")
		return nil
	}

	if submission, err := s.Get(ctx, id); err == nil {
		s.publish(ctx, submission)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "marked running")
	return nil
}

// ApplyResult patches the fields present in result onto an open submission. A result
// for a finished submission is ignored. Each terminal result that is applied runs the
// analysis gate for the user.
func (s *Service) ApplyResult(ctx context.Context, result types.SubmissionResult, dispatch bool) error {
	ctx, span := tracer.Start(ctx, "Service.ApplyResult", trace.WithAttributes(
		attribute.String("submissionID", result.SubmissionID),
		attribute.String("status", string(result.Status)),
		attribute.Bool("dispatch", dispatch),
	))
	defer span.End()

	id, err := uuid.Parse(result.SubmissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid submission id")
		return ErrNotFound
	}

	updates, err := resultUpdates(result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build update")
		return err
	}

	applied := countsGuard(s.db.WithContext(ctx).Model(&models.Submission{}).
		Where(openGuard, id, types.OpenSubmissionStatuses), result).
		Updates(updates)
	if applied.Error != nil {
		span.RecordError(applied.Error)
		span.SetStatus(codes.Error, "failed to apply result")
		return fmt.Errorf("failed to apply result: %w", applied.Error)
	}

	if applied.RowsAffected == 0 {
		if err := s.requireExists(ctx, id); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "submission not found")
			return err
		}
		if (result.PassedCount == nil) != (result.TotalCount == nil) {
			open, err := models.Exists[models.Submission](ctx, s.db, openGuard, id, types.OpenSubmissionStatuses)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to check submission")
				return err
			}
			if open {
				span.RecordError(ErrPassedExceedsTotal)
				span.SetStatus(codes.Error, "counts conflict with stored counts")
				return ErrPassedExceedsTotal
			}
		}
		span.AddEvent("ignored_result_for_finished_submission")
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "submission already finished")
		return nil
	}

	submission, err := s.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reload submission")
		return err
	}
	s.publish(ctx, submission)

	if result.Status.IsTerminal() {
		audit.LogSubmissionResult(
			audit.Context{SubmissionID: &submission.ID, UserID: submission.UserID},
			result.Status,
			result.PassedCount,
			result.TotalCount,
			result.DurationMs,
			dispatch,
		)

		// the result is already stored, a gate failure is retried by the next terminal result
		if _, err := s.gate.Evaluate(ctx, submission.UserID); err != nil {
			logger.Logger.ErrorContext(ctx, "analysis gate failed",
				"userID", submission.UserID, "submissionID", submission.ID, "error", err)
			span.AddEvent("gate_failed", trace.WithAttributes(attribute.String("error", err.Error())))
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "applied result")
	return nil
}

// a result carrying only one of the counts must stay consistent with the stored other one
func countsGuard(db *gorm.DB, result types.SubmissionResult) *gorm.DB {
	switch {
	case result.PassedCount != nil && result.TotalCount == nil:
		return db.Where("(total_count IS NULL OR total_count >= ?)", *result.PassedCount)
	case result.TotalCount != nil && result.PassedCount == nil:
		return db.Where("(passed_count IS NULL OR passed_count <= ?)", *result.TotalCount)
	default:
		return db
	}
}

// column updates for the fields present in the result
func resultUpdates(result types.SubmissionResult) (map[string]any, error) {
	updates := map[string]any{"status": result.Status}

	if result.PassedCount != nil {
		updates["passed_count"] = *result.PassedCount
	}
	if result.TotalCount != nil {
		updates["total_count"] = *result.TotalCount
	}
	if result.FirstFailureIndex != nil {
		updates["first_failure_index"] = *result.FirstFailureIndex
	}
	if result.FirstFailure != nil {
		raw, err := json.Marshal(result.FirstFailure)
		if err != nil {
			return nil, fmt.Errorf("failed to encode first failure: %w", err)
		}
		updates["first_failure"] = datatypes.JSON(raw)
	}
	if result.Stdout != nil {
		updates["stdout"] = *result.Stdout
	}
	if result.Stderr != nil {
		updates["stderr"] = *result.Stderr
	}
	if result.CompileOutput != nil {
		updates["compile_output"] = *result.CompileOutput
	}
	if result.DurationMs != nil {
		updates["duration_ms"] = *result.DurationMs
	}

	return updates, nil
}

// Dispatch hands a queued submission to the judging service. The judging service marks it
// running itself; a dispatch that is not accepted ends the submission in error.
func (s *Service) Dispatch(ctx context.Context, submission *models.Submission) {
	ctx, span := tracer.Start(ctx, "Service.Dispatch", trace.WithAttributes(
		attribute.String("submissionID", submission.ID.String()),
	))
	defer span.End()

	_, err := s.dispatcher.Dispatch(ctx, types.JudgeQuestion{
		QuestionID:     submission.QuestionID.String(),
		SubmissionID:   submission.ID.String(),
		LanguageID:     submission.LanguageID,
		SourceCode:     submission.SourceCode,
		SubmissionKind: submission.Kind,
	})
	if err == nil {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "dispatched submission")
		return
	}

	logger.Logger.ErrorContext(ctx, "failed to dispatch submission",
		"submissionID", submission.ID, "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, "failed to dispatch submission")

	message := fmt.Sprintf("failed to dispatch to the judging service: %v", err)
	err = s.ApplyResult(ctx, types.SubmissionResult{
		SubmissionID:   submission.ID.String(),
		Status:         types.SubmissionStatusError,
		SubmissionKind: submission.Kind,
		FirstFailure:   &types.FirstFailure{ErrorMessage: &message},
	}, true)
	if err != nil {
		logger.Logger.ErrorContext(ctx, "failed to record dispatch failure",
			"submissionID", submission.ID, "error", err)
	}
}

func (s *Service) requireExists(ctx context.Context, id uuid.UUID) error {
	exists, err := models.Exists[models.Submission](ctx, s.db, "id = ?", id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

