package types

// Wire contract between the judging service and the submission store
type (
	TestCasesRequest struct {
		QuestionID string `json:"questionId" validate:"required,uuid"`
	}

	// Per question judging settings
	JudgingSettings struct {
		ID               string           `json:"id"`
		TimeLimitSeconds float64          `json:"timeLimitSeconds"`
		MemoryLimitMB    int              `json:"memoryLimitMb"`
		OutputComparison OutputComparison `json:"outputComparison"`
	}

	TestCase struct {
		Name           *string    `json:"name,omitempty"`
		ID             string     `json:"id"`
		Visibility     Visibility `json:"visibility"`
		Stdin          string     `json:"stdin"`
		ExpectedStdout string     `json:"expectedStdout"`
		Order          int        `json:"order"`
	}

	TestCasesResponse struct {
		Question  JudgingSettings `json:"question"`
		TestCases []TestCase      `json:"testCases"`
	}

	SubmissionRunning struct {
		SubmissionID   string         `json:"submissionId"             validate:"required,uuid"`
		SubmissionKind SubmissionKind `json:"submissionKind,omitempty" validate:"omitempty,oneof=standard personalized"`
	}

	// Failure report for the first non passing test case. Hidden test cases only ever
	// carry ActualOutput and ErrorMessage.
	FirstFailure struct {
		Stdin          *string `json:"stdin,omitempty"`
		ActualOutput   *string `json:"actualOutput,omitempty"`
		ExpectedOutput *string `json:"expectedOutput,omitempty"`
		ErrorMessage   *string `json:"errorMessage,omitempty"`
	}

	// Result patch. Nil fields are left untouched by the store.
	SubmissionResult struct {
		PassedCount       *int             `json:"passedCount,omitempty"       validate:"omitempty,min=0"`
		TotalCount        *int             `json:"totalCount,omitempty"        validate:"omitempty,min=0"`
		FirstFailureIndex *int             `json:"firstFailureIndex,omitempty" validate:"omitempty,min=0"`
		FirstFailure      *FirstFailure    `json:"firstFailure,omitempty"`
		Stdout            *string          `json:"stdout,omitempty"`
		Stderr            *string          `json:"stderr,omitempty"`
		CompileOutput     *string          `json:"compileOutput,omitempty"`
		DurationMs        *int64           `json:"durationMs,omitempty"        validate:"omitempty,min=0"`
		SubmissionID      string           `json:"submissionId"                validate:"required,uuid"`
		Status            SubmissionStatus `json:"status"                      validate:"required,oneof=running passed failed error"`
		SubmissionKind    SubmissionKind   `json:"submissionKind,omitempty"    validate:"omitempty,oneof=standard personalized"`
	}

	OK struct {
		OK bool `json:"ok"`
	}
)
