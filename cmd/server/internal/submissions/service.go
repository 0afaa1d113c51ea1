// Package submissions owns the coding submission state machine: creation, dispatch to the
// judging service, the callbacks the judging service reports through and cursor listing.
package submissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/models"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/watch"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/audit"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/upload"
)

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/submissions")

var (
	ErrNotFound           = errors.New("submission not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrLanguageNotAllowed = errors.New("language is not allowed for this question")
)

//go:generate mockgen -destination ./mock/mock.go -package mock . Dispatcher,Evaluator

type Dispatcher interface {
	Dispatch(ctx context.Context, req types.JudgeQuestion) (*types.JudgeQuestionResponse, error)
}

// Batch analysis gate, run after every applied terminal result
type Evaluator interface {
	Evaluate(ctx context.Context, userID string) (*models.AnalysisExecution, error)
}

type Service struct {
	db         *gorm.DB
	archive    upload.Uploader
	broker     watch.Broker
	dispatcher Dispatcher
	gate       Evaluator
}

func New(db *gorm.DB, archive upload.Uploader, broker watch.Broker, dispatcher Dispatcher, gate Evaluator) *Service {
	return &Service{
		db:         db,
		archive:    archive,
		broker:     broker,
		dispatcher: dispatcher,
		gate:       gate,
	}
}

// Test cases are executed in the order they are given
func (s *Service) CreateQuestion(ctx context.Context, req types.CreateQuestion) (*models.Question, error) {
	ctx, span := tracer.Start(ctx, "Service.CreateQuestion", trace.WithAttributes(
		attribute.String("title", req.Title),
		attribute.Int("testCases", len(req.TestCases)),
	))
	defer span.End()

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	question := &models.Question{
		Title:              req.Title,
		Difficulty:         req.Difficulty,
		Tags:               tags,
		LanguageIDsAllowed: req.LanguageIDsAllowed,
		DefaultLanguageID:  req.DefaultLanguageID,
		TimeLimitSeconds:   req.TimeLimitSeconds,
		MemoryLimitMB:      req.MemoryLimitMB,
		OutputComparison:   req.OutputComparison,
	}
	for i, tc := range req.TestCases {
		question.TestCases = append(question.TestCases, models.TestCase{
			Visibility:     tc.Visibility,
			Stdin:          tc.Stdin,
			ExpectedStdout: tc.ExpectedStdout,
			Name:           models.NewNull(tc.Name),
			Order:          i,
		})
	}

	if err := s.db.WithContext(ctx).Create(question).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create question")
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	span.SetAttributes(attribute.String("questionID", question.ID.String()))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created question")
	return question, nil
}

// Create stores a queued submission. Dispatching it is left to the caller.
func (s *Service) Create(ctx context.Context, req types.CreateSubmission) (*models.Submission, error) {
	ctx, span := tracer.Start(ctx, "Service.Create", trace.WithAttributes(
		attribute.String("questionID", req.QuestionID),
		attribute.String("userID", req.UserID),
		attribute.Int("languageID", req.LanguageID),
	))
	defer span.End()

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid question id")
		return nil, ErrQuestionNotFound
	}

	question, err := models.ByID[models.Question](ctx, s.db, questionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load question")
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}

	if !question.AllowsLanguage(req.LanguageID) {
		span.RecordError(ErrLanguageNotAllowed)
		span.SetStatus(codes.Error, "language not allowed")
		return nil, ErrLanguageNotAllowed
	}

	kind := req.Kind
	if kind == "" {
		kind = types.SubmissionKindStandard
	}

	submission := &models.Submission{
		QuestionID: question.ID,
		UserID:     req.UserID,
		LanguageID: req.LanguageID,
		SourceCode: req.SourceCode,
		Kind:       kind,
		Status:     types.SubmissionStatusQueued,
	}
	if err := s.db.WithContext(ctx).Create(submission).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create submission")
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	audit.LogSubmissionCreated(
		audit.Context{SubmissionID: &submission.ID, UserID: submission.UserID},
		question.ID,
		kind,
		submission.LanguageID,
		len(submission.SourceCode),
	)
	s.publish(ctx, submission)

	span.SetAttributes(attribute.String("submissionID", submission.ID.String()))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created submission")
	return submission, nil
}

// Archive copies the source into the content addressed archive and records its key.
// Nothing happens when archiving is disabled.
func (s *Service) Archive(ctx context.Context, submission *models.Submission) error {
	ctx, span := tracer.Start(ctx, "Service.Archive", trace.WithAttributes(
		attribute.String("submissionID", submission.ID.String()),
	))
	defer span.End()

	store, err := s.archive.StoreIdentifier(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get store identifier")
		return err
	}
	if store == upload.DisabledStore {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "archive disabled")
		return nil
	}

	key, err := upload.Source(ctx, s.archive, submission.SourceCode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to archive source")
		return err
	}

	err = s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", submission.ID).
		Update("source_key", key).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to record source key")
		return err
	}
	submission.SourceKey = models.NewNullFromData(key)

	audit.LogSourceArchived(audit.Context{SubmissionID: &submission.ID, UserID: submission.UserID}, store, key)

	span.SetAttributes(attribute.String("sourceKey", key))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "archived source")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	submission, err := models.ByID[models.Submission](ctx, s.db, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return submission, err
}

// TestCases returns the judging settings and test cases of a question, in execution order
func (s *Service) TestCases(ctx context.Context, questionID uuid.UUID) (*types.TestCasesResponse, error) {
	ctx, span := tracer.Start(ctx, "Service.TestCases", trace.WithAttributes(
		attribute.String("questionID", questionID.String()),
	))
	defer span.End()

	var question models.Question
	err := s.db.WithContext(ctx).
		Preload("TestCases", func(db *gorm.DB) *gorm.DB {
			return db.Order(`"order" ASC`)
		}).
		First(&question, "id = ?", questionID).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load question")
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}

	resp := &types.TestCasesResponse{
		Question:  question.JudgingSettings(),
		TestCases: make([]types.TestCase, 0, len(question.TestCases)),
	}
	for _, tc := range question.TestCases {
		resp.TestCases = append(resp.TestCases, tc.ToType())
	}

	span.SetAttributes(attribute.Int("testCases", len(resp.TestCases)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "loaded test cases")
	return resp, nil
}

// pushes the current state to watchers; a broker failure only costs a live update
func (s *Service) publish(ctx context.Context, submission *models.Submission) {
	if err := s.broker.Publish(ctx, submission.ToSummary()); err != nil {
		logger.Logger.WarnContext(ctx, "failed to publish submission update",
			"submissionID", submission.ID, "error", err)
	}
}
