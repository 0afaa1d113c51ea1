package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/queue"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/storeclient"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

func (s *ServerTestSuite) store() *storeclient.Client {
	return storeclient.New(storeclient.Config{BaseURL: s.server.URL, Timeout: 5 * time.Second})
}

func (s *ServerTestSuite) Test_FetchTestCases() {
	question := s.createQuestion()

	resp, err := s.store().FetchTestCases(s.T().Context(), question.ID)
	s.Require().NoError(err)

	s.Equal(question.ID, resp.Question.ID)
	s.InDelta(2.0, resp.Question.TimeLimitSeconds, 0.0001)
	s.Equal(128, resp.Question.MemoryLimitMB)
	s.Require().Len(resp.TestCases, 2)
	s.Equal(0, resp.TestCases[0].Order)
	s.Equal("1 2", resp.TestCases[0].Stdin)
	s.Equal(types.VisibilityHidden, resp.TestCases[1].Visibility)

	_, err = s.store().FetchTestCases(s.T().Context(), uuid.NewString())
	s.ErrorIs(err, storeclient.ErrNotFound)
}

func (s *ServerTestSuite) Test_RunningThenResult() {
	question := s.createQuestion()
	submission := s.createSubmission(question.ID, newUser())
	s.waitForDispatch(submission.ID)

	store := s.store()
	running := types.SubmissionRunning{SubmissionID: submission.ID}
	s.Require().NoError(store.MarkRunning(s.T().Context(), running))
	s.Require().NoError(store.MarkRunning(s.T().Context(), running))
	s.Equal(types.SubmissionStatusRunning, s.getSubmission(submission.ID).Status)

	s.Require().NoError(store.ReportResult(s.T().Context(), types.SubmissionResult{
		SubmissionID:      submission.ID,
		Status:            types.SubmissionStatusFailed,
		PassedCount:       ptr(1),
		TotalCount:        ptr(2),
		FirstFailureIndex: ptr(1),
		FirstFailure:      &types.FirstFailure{ActualOutput: ptr("11")},
		DurationMs:        ptr(int64(42)),
	}))

	got := s.getSubmission(submission.ID)
	s.Equal(types.SubmissionStatusFailed, got.Status)
	s.Equal(ptr(1), got.PassedCount)
	s.Equal(ptr(2), got.TotalCount)
	s.Equal(ptr(1), got.FirstFailureIndex)
	s.Require().NotNil(got.FirstFailure)
	s.Equal(ptr("11"), got.FirstFailure.ActualOutput)
	s.Nil(got.FirstFailure.ExpectedOutput)

	// a late duplicate report leaves the terminal state alone
	s.Require().NoError(store.ReportResult(s.T().Context(), types.SubmissionResult{
		SubmissionID: submission.ID,
		Status:       types.SubmissionStatusPassed,
		PassedCount:  ptr(2),
		TotalCount:   ptr(2),
	}))
	s.NoError(store.MarkRunning(s.T().Context(), running))

	got = s.getSubmission(submission.ID)
	s.Equal(types.SubmissionStatusFailed, got.Status)
	s.Equal(ptr(1), got.PassedCount)
}

func (s *ServerTestSuite) Test_CallbacksRejected() {
	question := s.createQuestion()
	submission := s.createSubmission(question.ID, newUser())

	store := s.store()
	s.ErrorIs(store.MarkRunning(s.T().Context(), types.SubmissionRunning{SubmissionID: uuid.NewString()}), storeclient.ErrNotFound)
	s.ErrorIs(store.ReportResult(s.T().Context(), types.SubmissionResult{
		SubmissionID: uuid.NewString(),
		Status:       types.SubmissionStatusPassed,
	}), storeclient.ErrNotFound)

	tests := []struct {
		name string
		body any
	}{
		{name: "unknown status", body: map[string]any{"submissionId": submission.ID, "status": "queued"}},
		{name: "passed above total", body: types.SubmissionResult{
			SubmissionID: submission.ID,
			Status:       types.SubmissionStatusPassed,
			PassedCount:  ptr(3),
			TotalCount:   ptr(2),
		}},
		{name: "negative count", body: map[string]any{"submissionId": submission.ID, "status": "failed", "passedCount": -1}},
		{name: "not json", body: "submission"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(http.StatusBadRequest, s.do(http.MethodPost, storeclient.PathSubmissionResult, tt.body, nil))
		})
	}

	s.Equal(types.SubmissionStatusQueued, s.getSubmission(submission.ID).Status)
}

func (s *ServerTestSuite) Test_PartialCountsCheckedAgainstStored() {
	question := s.createQuestion()
	submission := s.createSubmission(question.ID, newUser())
	s.waitForDispatch(submission.ID)

	post := func(body map[string]any) int {
		body["submissionId"] = submission.ID
		return s.do(http.MethodPost, storeclient.PathSubmissionResult, body, nil)
	}

	s.Equal(http.StatusOK, post(map[string]any{"status": "running", "totalCount": 2}))
	s.Equal(http.StatusBadRequest, post(map[string]any{"status": "failed", "passedCount": 5}))
	s.Equal(types.SubmissionStatusRunning, s.getSubmission(submission.ID).Status)

	s.Equal(http.StatusOK, post(map[string]any{"status": "running", "passedCount": 1}))
	s.Equal(http.StatusBadRequest, post(map[string]any{"status": "failed", "totalCount": 0}))

	s.Equal(http.StatusOK, post(map[string]any{"status": "failed", "passedCount": 2}))
	got := s.getSubmission(submission.ID)
	s.Equal(types.SubmissionStatusFailed, got.Status)
	s.Equal(ptr(2), got.PassedCount)
	s.Equal(ptr(2), got.TotalCount)

	// finished submissions ignore late results, conflicting or not
	s.Equal(http.StatusOK, post(map[string]any{"status": "passed", "passedCount": 9}))
}

type jobCollector struct {
	userID string
	job    *types.AnalysisJob
}

func (j *jobCollector) Handle(_ context.Context, message []byte) error {
	var job types.AnalysisJob
	if err := json.Unmarshal(message, &job); err != nil {
		return queue.WrapPoisonError(err)
	}
	if job.UserID == j.userID {
		j.job = &job
	}
	return nil
}

func (s *ServerTestSuite) Test_AnalysisRoundTrip() {
	question := s.createQuestion()
	user := newUser()
	store := s.store()

	var submitted []string
	for i := range batchSize {
		submission := s.createSubmission(question.ID, user)
		s.waitForDispatch(submission.ID)
		submitted = append(submitted, submission.ID)

		status := types.SubmissionStatusPassed
		if i == 0 {
			status = types.SubmissionStatusFailed
		}
		s.Require().NoError(store.ReportResult(s.T().Context(), types.SubmissionResult{
			SubmissionID: submission.ID,
			Status:       status,
			PassedCount:  ptr(1),
			TotalCount:   ptr(2),
		}))
	}

	collector := &jobCollector{userID: user}
	ctx, cancel := context.WithTimeout(s.T().Context(), 30*time.Second)
	defer cancel()
	for collector.job == nil {
		s.Require().NoError(s.queue.Dequeue(ctx, 10*time.Second, collector))
	}

	job := collector.job
	s.NotEmpty(job.ExecutionID)
	s.Require().Len(job.Submissions, batchSize)
	for _, sub := range job.Submissions {
		s.Contains(submitted, sub.SubmissionID)
		s.Equal("Add two numbers", sub.QuestionTitle)
		s.Equal([]string{"math"}, sub.QuestionTags)
	}

	s.Run("unknown execution", func() {
		missing := uuid.NewString()
		s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/coding/analysis-remark/", types.AnalysisRemark{
			ExecutionID:   &missing,
			UserID:        user,
			Remark:        "nothing",
			SubmissionIDs: submitted,
		}, nil))
	})

	s.Run("complete", func() {
		var resp types.AnalysisRemarkResponse
		s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/coding/analysis-remark/", types.AnalysisRemark{
			ExecutionID:   &job.ExecutionID,
			UserID:        user,
			Remark:        "Watch the off by one in the loop bounds.",
			SubmissionIDs: submitted,
		}, &resp))

		s.True(resp.OK)
		s.NotEmpty(resp.RemarkID)
		s.Equal(&job.ExecutionID, resp.ExecutionID)
	})

	s.Run("stringified ids without execution", func() {
		encoded, err := json.Marshal(submitted)
		s.Require().NoError(err)

		var resp types.AnalysisRemarkResponse
		s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/coding/analysis-remark/", map[string]any{
			"userId":        user,
			"remark":        "Second opinion.",
			"submissionIds": string(encoded),
		}, &resp))

		s.True(resp.OK)
		// the execution already completed, the remark is kept on its own
		s.Nil(resp.ExecutionID)
	})
}
