package types

import (
	"encoding/json"
	"fmt"
)

type (
	// Only the error message of a failure leaves the store
	AnalysisFailure struct {
		ErrorMessage *string `json:"errorMessage,omitempty"`
	}

	AnalysisSubmission struct {
		PassedCount   *int             `json:"passedCount,omitempty"`
		TotalCount    *int             `json:"totalCount,omitempty"`
		FirstFailure  *AnalysisFailure `json:"firstFailure,omitempty"`
		SubmissionID  string           `json:"submissionId"`
		QuestionTitle string           `json:"questionTitle"`
		Difficulty    Difficulty       `json:"difficulty"`
		Status        SubmissionStatus `json:"status"`
		QuestionTags  []string         `json:"questionTags"`
		LanguageID    int              `json:"languageId"`
	}

	// Payload enqueued for the downstream batch analysis
	AnalysisJob struct {
		// W3C trace context of the gate that claimed the batch
		TraceContext map[string]string    `json:"traceContext,omitempty"`
		ExecutionID  string               `json:"executionId"`
		UserID       string               `json:"userId"`
		PastRemarks  string               `json:"pastRemarks"`
		Submissions  []AnalysisSubmission `json:"submissions"`
	}

	// Completion callback from the downstream analysis
	AnalysisRemark struct {
		ExecutionID   *string       `json:"executionId,omitempty" validate:"omitempty,uuid"`
		UserID        string        `json:"userId"                validate:"required"`
		Remark        string        `json:"remark"                validate:"required"`
		SubmissionIDs SubmissionIDs `json:"submissionIds"         validate:"required,min=1,dive,uuid"`
	}

	AnalysisRemarkResponse struct {
		RemarkID    string  `json:"remarkId"`
		ExecutionID *string `json:"executionId,omitempty"`
		OK          bool    `json:"ok"`
	}

	// Accepts either a JSON array of ids or a string holding a JSON encoded array
	SubmissionIDs []string
)

func (s *SubmissionIDs) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return err
		}

		data = []byte(encoded)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("submissionIds must be an array of ids: %w", err)
	}

	*s = ids
	return nil
}
