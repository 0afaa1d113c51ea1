package types

type (
	// Dispatch request from the store to the judging service
	JudgeQuestion struct {
		QuestionID     string         `json:"questionId"               validate:"required,uuid"`
		SubmissionID   string         `json:"submissionId"             validate:"required,uuid"`
		LanguageID     int            `json:"languageId"               validate:"required,gt=0"`
		SourceCode     string         `json:"sourceCode"               validate:"required"`
		SubmissionKind SubmissionKind `json:"submissionKind,omitempty" validate:"omitempty,oneof=standard personalized"`
	}

	JudgeQuestionResponse struct {
		Details      map[string]any `json:"details,omitempty"`
		Status       string         `json:"status"`
		SubmissionID string         `json:"submissionId"`
		Message      string         `json:"message"`
	}
)

const (
	JudgeStatusAccepted = "accepted"
	JudgeStatusError    = "error"
)
