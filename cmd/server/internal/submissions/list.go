package submissions

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/models"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

const DefaultPageSize = 20

var ErrInvalidCursor = errors.New("cursor does not name a submission of this user")

// List pages through a user's submissions newest first. The continue cursor is the id of
// the last submission on the page.
func (s *Service) List(ctx context.Context, req types.ListSubmissions) (*types.SubmissionPage, error) {
	ctx, span := tracer.Start(ctx, "Service.List", trace.WithAttributes(
		attribute.String("userID", req.UserID),
		attribute.Int("limit", req.Limit),
	))
	defer span.End()

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	query := s.db.WithContext(ctx).
		Omit("source_code").
		Where("user_id = ?", req.UserID)

	if req.QuestionID != nil {
		query = query.Where("question_id = ?", *req.QuestionID)
	}

	if req.Cursor != nil {
		var cursor models.Submission
		err := s.db.WithContext(ctx).
			Select("id", "created_at").
			Where("id = ? AND user_id = ?", *req.Cursor, req.UserID).
			Take(&cursor).Error
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to resolve cursor")
			return nil, ErrInvalidCursor
		}
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var submissions []models.Submission
	// one extra row tells whether another page exists
	err := query.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&submissions).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list submissions")
		return nil, err
	}

	page := &types.SubmissionPage{IsDone: len(submissions) <= limit}
	if !page.IsDone {
		submissions = submissions[:limit]
		page.ContinueCursor = submissions[limit-1].ID.String()
	}

	page.Page = make([]types.Submission, 0, len(submissions))
	for _, sub := range submissions {
		page.Page = append(page.Page, sub.ToSummary())
	}

	span.SetAttributes(attribute.Int("returned", len(page.Page)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed submissions")
	return page, nil
}
