// Package gate decides when a user has accumulated enough unanalyzed terminal
// submissions to start a batch analysis, and claims them so they are analyzed once.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/models"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/audit"
	internalotel "github.com/Ashutoshbind15/dev-iterate-sub000/internal/otel"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/queue"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/gate")

var ErrExecutionNotFound = errors.New("analysis execution not found")

type Gate struct {
	db          *gorm.DB
	queue       queue.Queuer
	batchSize   int
	pastRemarks int
}

func New(db *gorm.DB, q queue.Queuer, batchSize int, pastRemarks int) *Gate {
	return &Gate{db: db, queue: q, batchSize: batchSize, pastRemarks: pastRemarks}
}

// Unclaimed returns up to limit of the user's terminal submissions that no analysis
// execution has claimed, newest first. Claimed ones are filtered out before the limit applies.
func Unclaimed(ctx context.Context, db *gorm.DB, userID string, limit int) ([]models.Submission, error) {
	var submissions []models.Submission
	err := db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, types.TerminalSubmissionStatuses).
		Where(`NOT EXISTS (
			SELECT 1 FROM analysis_execution_submission aes
			WHERE aes.submission_id = coding_submission.id)`).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&submissions).Error
	return submissions, err
}

// Evaluate claims the user's newest batchSize unclaimed terminal submissions and enqueues
// their analysis, or does nothing when fewer are available. Evaluations for one user are
// serialized. The job is enqueued only after the claim commits; an enqueue failure drops
// the execution again so a later evaluation retries the batch.
func (g *Gate) Evaluate(ctx context.Context, userID string) (*models.AnalysisExecution, error) {
	ctx, span := tracer.Start(ctx, "Gate.Evaluate", trace.WithAttributes(
		attribute.String("userID", userID),
		attribute.Int("batchSize", g.batchSize),
	))
	defer span.End()

	execution, job, err := g.claim(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gate evaluation failed")
		return nil, err
	}

	if execution == nil {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "threshold not reached")
		return nil, nil
	}

	span.SetAttributes(attribute.String("executionID", execution.ID.String()))

	if err := g.queue.Enqueue(ctx, job); err != nil {
		err = fmt.Errorf("failed to enqueue analysis job: %w", err)
		// membership rows cascade with the execution
		if releaseErr := g.db.WithContext(ctx).Delete(&models.AnalysisExecution{}, "id = ?", execution.ID).Error; releaseErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release claim: %w", releaseErr))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue analysis job")
		return nil, err
	}

	audit.LogAnalysisBatchClaimed(audit.Context{UserID: userID}, execution.ID, execution.SubmissionIDs())

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "claimed batch")
	return execution, nil
}

// claim records the execution and its membership rows in one transaction under the
// user's advisory lock and builds the job from the same snapshot. A nil execution means
// the threshold was not reached.
func (g *Gate) claim(ctx context.Context, userID string) (*models.AnalysisExecution, types.AnalysisJob, error) {
	var (
		execution *models.AnalysisExecution
		job       types.AnalysisJob
	)

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", "analysis-gate:"+userID).Error; err != nil {
			return fmt.Errorf("failed to lock user gate: %w", err)
		}

		unclaimed, err := Unclaimed(ctx, tx, userID, g.batchSize)
		if err != nil {
			return fmt.Errorf("failed to load unclaimed submissions: %w", err)
		}

		trace.SpanFromContext(ctx).AddEvent("loaded_unclaimed", trace.WithAttributes(attribute.Int("count", len(unclaimed))))
		if len(unclaimed) < g.batchSize {
			return nil
		}

		pending := &models.AnalysisExecution{
			UserID: userID,
			Status: types.AnalysisStatusPending,
		}
		for _, s := range unclaimed {
			pending.Submissions = append(pending.Submissions, models.AnalysisExecutionSubmission{SubmissionID: s.ID})
		}

		if err := tx.Omit("Submissions").Create(pending).Error; err != nil {
			return fmt.Errorf("failed to create analysis execution: %w", err)
		}
		for i := range pending.Submissions {
			pending.Submissions[i].ExecutionID = pending.ID
		}

		// the primary key on the membership table rejects a submission claimed twice
		if err := tx.Create(&pending.Submissions).Error; err != nil {
			return fmt.Errorf("failed to claim submissions: %w", err)
		}

		job, err = g.buildJob(ctx, tx, pending, unclaimed)
		if err != nil {
			return err
		}

		execution = pending
		return nil
	})
	if err != nil {
		return nil, types.AnalysisJob{}, err
	}

	return execution, job, nil
}

func (g *Gate) buildJob(
	ctx context.Context,
	tx *gorm.DB,
	execution *models.AnalysisExecution,
	submissions []models.Submission,
) (types.AnalysisJob, error) {
	questionIDs := make([]uuid.UUID, 0, len(submissions))
	for _, s := range submissions {
		questionIDs = append(questionIDs, s.QuestionID)
	}

	var questions []models.Question
	if err := tx.Where("id IN ?", questionIDs).Find(&questions).Error; err != nil {
		return types.AnalysisJob{}, fmt.Errorf("failed to load questions: %w", err)
	}
	byID := make(map[uuid.UUID]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var remarks []string
	if g.pastRemarks > 0 {
		err := tx.Model(&models.UserRemark{}).
			Where("user_id = ?", execution.UserID).
			Order("created_at DESC").
			Limit(g.pastRemarks).
			Pluck("remark", &remarks).Error
		if err != nil {
			return types.AnalysisJob{}, fmt.Errorf("failed to load past remarks: %w", err)
		}
	}

	job := types.AnalysisJob{
		TraceContext: internalotel.InjectMessage(ctx),
		ExecutionID:  execution.ID.String(),
		UserID:       execution.UserID,
		PastRemarks:  strings.Join(remarks, ", "),
		Submissions:  make([]types.AnalysisSubmission, 0, len(submissions)),
	}

	for _, s := range submissions {
		q := byID[s.QuestionID]
		summary := types.AnalysisSubmission{
			SubmissionID:  s.ID.String(),
			QuestionTitle: q.Title,
			QuestionTags:  q.Tags,
			Difficulty:    q.Difficulty,
			LanguageID:    s.LanguageID,
			Status:        s.Status,
			PassedCount:   models.PtrFromNull(s.PassedCount),
			TotalCount:    models.PtrFromNull(s.TotalCount),
		}
		if s.FirstFailure != nil {
			summary.FirstFailure = &types.AnalysisFailure{ErrorMessage: s.FirstFailure.ErrorMessage}
		}
		job.Submissions = append(job.Submissions, summary)
	}

	return job, nil
}
