package types

type SubmissionStatus string

const (
	SubmissionStatusQueued  SubmissionStatus = "queued"  // Created, not yet picked up by the judging service
	SubmissionStatusRunning SubmissionStatus = "running" // Judging service accepted the submission
	SubmissionStatusPassed  SubmissionStatus = "passed"  // Every test case matched
	SubmissionStatusFailed  SubmissionStatus = "failed"  // Compile error, runtime error, time limit or wrong answer
	SubmissionStatusError   SubmissionStatus = "error"   // Dispatch or engine communication failure
)

// Statuses that no automatic transition leaves
var TerminalSubmissionStatuses = []SubmissionStatus{
	SubmissionStatusPassed,
	SubmissionStatusFailed,
	SubmissionStatusError,
}

// Statuses a result may still be applied to
var OpenSubmissionStatuses = []SubmissionStatus{
	SubmissionStatusQueued,
	SubmissionStatusRunning,
}

func (s SubmissionStatus) IsTerminal() bool {
	switch s {
	case SubmissionStatusPassed, SubmissionStatusFailed, SubmissionStatusError:
		return true
	default:
		return false
	}
}

type SubmissionKind string

const (
	SubmissionKindStandard     SubmissionKind = "standard"
	SubmissionKindPersonalized SubmissionKind = "personalized"
)

type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "pending"
	AnalysisStatusCompleted AnalysisStatus = "completed"
)

const (
	ExitNormal  int = 0
	ExitErrored int = 1
	ExitUsage   int = 2
)
