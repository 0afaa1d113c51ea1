package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

type (
	AnalysisExecution struct {
		UserID      string
		Status      types.AnalysisStatus `gorm:"type:text;default:'pending'"`
		CompletedAt datatypes.Null[time.Time]
		Submissions []AnalysisExecutionSubmission `gorm:"foreignKey:ExecutionID"`
		Model
	}

	// Membership of a submission in an execution. The submission id is the primary key.
	AnalysisExecutionSubmission struct {
		SubmissionID uuid.UUID `gorm:"primaryKey"`
		ExecutionID  uuid.UUID
	}

	UserRemark struct {
		UserID        string
		Remark        string
		SubmissionIDs []string `gorm:"column:submission_ids;type:jsonb;serializer:json"`
		ExecutionID   *uuid.UUID
		Model
	}
)

func (AnalysisExecution) TableName() string {
	return "analysis_execution"
}

func (a AnalysisExecution) GetID() uuid.UUID {
	return a.ID
}

func (a AnalysisExecution) SubmissionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a.Submissions))
	for _, s := range a.Submissions {
		ids = append(ids, s.SubmissionID)
	}
	return ids
}

func (AnalysisExecutionSubmission) TableName() string {
	return "analysis_execution_submission"
}

func (UserRemark) TableName() string {
	return "coding_user_remark"
}

func (r UserRemark) GetID() uuid.UUID {
	return r.ID
}
