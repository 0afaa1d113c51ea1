package types

import "time"

type (
	CreateSubmission struct {
		QuestionID string         `json:"questionId"     validate:"required,uuid"`
		UserID     string         `json:"userId"         validate:"required,max=256"`
		SourceCode string         `json:"sourceCode"     validate:"notblank"`
		Kind       SubmissionKind `json:"kind,omitempty" validate:"omitempty,oneof=standard personalized"`
		LanguageID int            `json:"languageId"     validate:"required,gt=0"`
	}

	Submission struct {
		CreatedAt         time.Time        `json:"createdAt"`
		UpdatedAt         time.Time        `json:"updatedAt"`
		PassedCount       *int             `json:"passedCount,omitempty"`
		TotalCount        *int             `json:"totalCount,omitempty"`
		FirstFailureIndex *int             `json:"firstFailureIndex,omitempty"`
		FirstFailure      *FirstFailure    `json:"firstFailure,omitempty"`
		SourceCode        *string          `json:"sourceCode,omitempty"`
		Stdout            *string          `json:"stdout,omitempty"`
		Stderr            *string          `json:"stderr,omitempty"`
		CompileOutput     *string          `json:"compileOutput,omitempty"`
		DurationMs        *int64           `json:"durationMs,omitempty"`
		ID                string           `json:"id"`
		QuestionID        string           `json:"questionId"`
		UserID            string           `json:"userId"`
		Kind              SubmissionKind   `json:"kind"`
		Status            SubmissionStatus `json:"status"`
		LanguageID        int              `json:"languageId"`
	}

	ListSubmissions struct {
		UserID     string  `param:"user_id"     validate:"required"`
		QuestionID *string `query:"question_id" validate:"omitempty,uuid"`
		Cursor     *string `query:"cursor"      validate:"omitempty,uuid"`
		Limit      int     `query:"limit"       validate:"omitempty,min=1,max=100"`
	}

	SubmissionPage struct {
		// Empty when IsDone
		ContinueCursor string       `json:"continueCursor"`
		Page           []Submission `json:"page"`
		IsDone         bool         `json:"isDone"`
	}
)
