package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

type Context struct {
	SubmissionID *uuid.UUID
	UserID       string
}

func dispForStatus(status types.SubmissionStatus) Disposition {
	switch status {
	case types.SubmissionStatusPassed:
		return DispositionGood
	case types.SubmissionStatusFailed, types.SubmissionStatusError:
		return DispositionBad
	default:
		return DispositionNeutral
	}
}

// writes one audit record to stdout as a single JSON line
func emit[T any](c Context, typ EventType, disposition Disposition, evt T) {
	event := Event[T]{Event: evt}
	event.Type = typ
	event.LogContext = logContext
	event.SchemaVersion = schemaVersion
	event.Timestamp = types.NewUnixMilli(time.Now())
	event.UserID = c.UserID
	event.Disposition = disposition
	if c.SubmissionID != nil {
		id := c.SubmissionID.String()
		event.SubmissionID = &id
	}

	evtStr, err := json.Marshal(event)
	if err != nil {
		logger.Logger.Error("could not serialize audit event", "type", typ, "userID", c.UserID, "error", err)
		return
	}

	fmt.Println(string(evtStr))
}

func LogSubmissionCreated(
	c Context,
	questionID uuid.UUID,
	kind types.SubmissionKind,
	languageID int,
	sourceSize int,
) {
	emit(c, EvtSubmissionCreated, DispositionNeutral, SubmissionCreatedEvent{
		QuestionID: questionID.String(),
		Kind:       kind,
		LanguageID: languageID,
		SourceSize: sourceSize,
	})
}

func LogSubmissionResult(
	c Context,
	status types.SubmissionStatus,
	passedCount *int,
	totalCount *int,
	durationMs *int64,
	dispatch bool,
) {
	emit(c, EvtSubmissionResult, dispForStatus(status), SubmissionResultEvent{
		Status:      status,
		PassedCount: passedCount,
		TotalCount:  totalCount,
		DurationMs:  durationMs,
		Dispatch:    dispatch,
	})
}

func LogSourceArchived(c Context, store string, objectKey string) {
	emit(c, EvtSourceArchived, DispositionNeutral, SourceArchivedEvent{
		Store:     store,
		ObjectKey: objectKey,
	})
}

func LogAnalysisBatchClaimed(c Context, executionID uuid.UUID, submissionIDs []uuid.UUID) {
	ids := make([]string, 0, len(submissionIDs))
	for _, id := range submissionIDs {
		ids = append(ids, id.String())
	}

	emit(c, EvtAnalysisBatchClaimed, DispositionNeutral, AnalysisBatchClaimedEvent{
		ExecutionID:   executionID.String(),
		SubmissionIDs: ids,
	})
}

func LogAnalysisCompleted(c Context, executionID *uuid.UUID, remarkID uuid.UUID) {
	evt := AnalysisCompletedEvent{RemarkID: remarkID.String()}
	if executionID != nil {
		id := executionID.String()
		evt.ExecutionID = &id
	}

	disposition := DispositionGood
	if executionID == nil {
		disposition = DispositionNeutral
	}

	emit(c, EvtAnalysisCompleted, disposition, evt)
}
