package gate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/models"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/audit"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

// Complete stores the downstream analysis remark and completes the pending execution it
// answers: the one named by ExecutionID, otherwise the one claiming exactly the same
// submissions. The remark is stored even when no pending execution matches.
func (g *Gate) Complete(ctx context.Context, remark types.AnalysisRemark) (*models.UserRemark, *models.AnalysisExecution, error) {
	ctx, span := tracer.Start(ctx, "Gate.Complete", trace.WithAttributes(
		attribute.String("userID", remark.UserID),
		attribute.Int("submissions", len(remark.SubmissionIDs)),
	))
	defer span.End()

	saved := &models.UserRemark{
		UserID:        remark.UserID,
		Remark:        remark.Remark,
		SubmissionIDs: []string(remark.SubmissionIDs),
	}
	var completed *models.AnalysisExecution

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		execution, err := findPending(tx, remark)
		if err != nil {
			return err
		}

		if execution != nil {
			saved.ExecutionID = &execution.ID

			result := tx.Model(&models.AnalysisExecution{}).
				Where("id = ? AND status = ?", execution.ID, types.AnalysisStatusPending).
				Updates(map[string]any{
					"status":       types.AnalysisStatusCompleted,
					"completed_at": time.Now(),
				})
			if result.Error != nil {
				return fmt.Errorf("failed to complete analysis execution: %w", result.Error)
			}
			if result.RowsAffected == 1 {
				execution.Status = types.AnalysisStatusCompleted
				completed = execution
			}
		}

		if err := tx.Create(saved).Error; err != nil {
			return fmt.Errorf("failed to save remark: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to complete analysis")
		return nil, nil, err
	}

	var executionID *uuid.UUID
	if completed != nil {
		executionID = &completed.ID
	}
	audit.LogAnalysisCompleted(audit.Context{UserID: remark.UserID}, executionID, saved.ID)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "saved remark")
	return saved, completed, nil
}

func findPending(tx *gorm.DB, remark types.AnalysisRemark) (*models.AnalysisExecution, error) {
	if remark.ExecutionID != nil {
		id, err := uuid.Parse(*remark.ExecutionID)
		if err != nil {
			return nil, ErrExecutionNotFound
		}

		var execution models.AnalysisExecution
		err = tx.Preload("Submissions").
			Where("id = ? AND user_id = ?", id, remark.UserID).
			First(&execution).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExecutionNotFound
		}
		if err != nil {
			return nil, err
		}
		return &execution, nil
	}

	var pending []models.AnalysisExecution
	err := tx.Preload("Submissions").
		Where("user_id = ? AND status = ?", remark.UserID, types.AnalysisStatusPending).
		Order("created_at ASC").
		Find(&pending).Error
	if err != nil {
		return nil, err
	}

	want := normalizeIDs(remark.SubmissionIDs)
	for i := range pending {
		have := make([]string, 0, len(pending[i].Submissions))
		for _, id := range pending[i].SubmissionIDs() {
			have = append(have, id.String())
		}
		if slices.Equal(normalizeIDs(have), want) {
			return &pending[i], nil
		}
	}

	return nil, nil
}

// sorted, deduplicated and in canonical uuid form
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if parsed, err := uuid.Parse(id); err == nil {
			id = parsed.String()
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
