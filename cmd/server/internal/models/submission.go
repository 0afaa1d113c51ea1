package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

type Submission struct {
	UserID            string
	SourceCode        string
	Kind              types.SubmissionKind   `gorm:"type:text;default:'standard'"`
	Status            types.SubmissionStatus `gorm:"type:text;default:'queued'"`
	SourceKey         datatypes.Null[string]
	Stdout            datatypes.Null[string]
	Stderr            datatypes.Null[string]
	CompileOutput     datatypes.Null[string]
	FirstFailure      *types.FirstFailure `gorm:"type:jsonb;serializer:json"`
	PassedCount       datatypes.Null[int]
	TotalCount        datatypes.Null[int]
	FirstFailureIndex datatypes.Null[int]
	DurationMs        datatypes.Null[int64]
	Model
	QuestionID uuid.UUID
	LanguageID int
}

func (Submission) TableName() string {
	return "coding_submission"
}

func (s Submission) GetID() uuid.UUID {
	return s.ID
}

// Full view including the source code
func (s Submission) ToType() types.Submission {
	out := s.ToSummary()
	out.SourceCode = &s.SourceCode
	return out
}

// List view without the source code
func (s Submission) ToSummary() types.Submission {
	return types.Submission{
		ID:                s.ID.String(),
		QuestionID:        s.QuestionID.String(),
		UserID:            s.UserID,
		Kind:              s.Kind,
		Status:            s.Status,
		LanguageID:        s.LanguageID,
		PassedCount:       PtrFromNull(s.PassedCount),
		TotalCount:        PtrFromNull(s.TotalCount),
		FirstFailureIndex: PtrFromNull(s.FirstFailureIndex),
		FirstFailure:      s.FirstFailure,
		Stdout:            PtrFromNull(s.Stdout),
		Stderr:            PtrFromNull(s.Stderr),
		CompileOutput:     PtrFromNull(s.CompileOutput),
		DurationMs:        PtrFromNull(s.DurationMs),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}
