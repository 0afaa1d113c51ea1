package audit

import (
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

var schemaVersion = "1.0.0"
var logContext = "audit"

type Disposition string

const (
	DispositionNeutral Disposition = "neutral"
	DispositionGood    Disposition = "good"
	DispositionBad     Disposition = "bad"
)

type EventType string

const (
	EvtSubmissionCreated    EventType = "submission_created"
	EvtSubmissionResult     EventType = "submission_result"
	EvtSourceArchived       EventType = "source_archived"
	EvtAnalysisBatchClaimed EventType = "analysis_batch_claimed"
	EvtAnalysisCompleted    EventType = "analysis_completed"
)

type Message struct {
	SubmissionID  *string     `json:"submission_id,omitempty"`
	UserID        string      `json:"user_id"`
	LogContext    string      `json:"log_context"`
	SchemaVersion string      `json:"version"`
	Disposition   Disposition `json:"disposition"`
	Type          EventType   `json:"event_type"`

	Timestamp types.UnixMilli `json:"timestamp"`
}

type SubmissionCreatedEvent struct {
	QuestionID string               `json:"question_id"`
	Kind       types.SubmissionKind `json:"kind"`
	LanguageID int                  `json:"language_id"`
	SourceSize int                  `json:"source_size"`
}

type SubmissionResultEvent struct {
	PassedCount *int                   `json:"passed_count,omitempty"`
	TotalCount  *int                   `json:"total_count,omitempty"`
	DurationMs  *int64                 `json:"duration_ms,omitempty"`
	Status      types.SubmissionStatus `json:"status"`
	// set when the terminal state came from a failed dispatch rather than a judge callback
	Dispatch bool `json:"dispatch"`
}

type SourceArchivedEvent struct {
	Store     string `json:"store"`
	ObjectKey string `json:"object_key"`
}

type AnalysisBatchClaimedEvent struct {
	ExecutionID   string   `json:"execution_id"`
	SubmissionIDs []string `json:"submission_ids"`
}

type AnalysisCompletedEvent struct {
	ExecutionID *string `json:"execution_id,omitempty"`
	RemarkID    string  `json:"remark_id"`
}

type Event[T any] struct {
	Event T `json:"event"`
	Message
}
