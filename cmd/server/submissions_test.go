package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

func (s *ServerTestSuite) Test_CreateQuestion() {
	question := s.createQuestion()

	s.NotEmpty(question.ID)
	s.Equal(2, question.TestCaseCount)
	s.Equal([]int{71, 63}, question.LanguageIDsAllowed)
	s.True(question.OutputComparison.TrimOutputs)
}

func (s *ServerTestSuite) Test_CreateQuestionInvalid() {
	var body types.Error
	status := s.do(http.MethodPost, "/v1/questions/", types.CreateQuestion{
		Title:              "No test cases",
		Difficulty:         "impossible",
		LanguageIDsAllowed: []int{71},
		DefaultLanguageID:  71,
		TimeLimitSeconds:   1,
		MemoryLimitMB:      64,
	}, &body)

	s.Equal(http.StatusBadRequest, status)
	s.NotEmpty(body.Fields)
}

func (s *ServerTestSuite) Test_CreateSubmission() {
	question := s.createQuestion()
	user := newUser()

	submission := s.createSubmission(question.ID, user)
	s.Equal(types.SubmissionStatusQueued, submission.Status)
	s.Equal(types.SubmissionKindStandard, submission.Kind)
	s.Equal(user, submission.UserID)
	s.Nil(submission.PassedCount)

	s.waitForDispatch(submission.ID)

	s.judge.mu.Lock()
	var dispatched types.JudgeQuestion
	for _, d := range s.judge.dispatched {
		if d.SubmissionID == submission.ID {
			dispatched = d
		}
	}
	s.judge.mu.Unlock()

	s.Equal(question.ID, dispatched.QuestionID)
	s.Equal(71, dispatched.LanguageID)
	s.Contains(dispatched.SourceCode, "print(a + b)")

	got := s.getSubmission(submission.ID)
	s.Equal(types.SubmissionStatusQueued, got.Status)
	s.Require().NotNil(got.SourceCode)
	s.Contains(*got.SourceCode, "print(a + b)")
}

func (s *ServerTestSuite) Test_CreateSubmissionRejected() {
	question := s.createQuestion()

	tests := []struct {
		name   string
		body   types.CreateSubmission
		status int
	}{
		{
			name:   "unknown question",
			body:   types.CreateSubmission{QuestionID: uuid.NewString(), UserID: newUser(), SourceCode: "print(1)", LanguageID: 71},
			status: http.StatusNotFound,
		},
		{
			name:   "language not allowed",
			body:   types.CreateSubmission{QuestionID: question.ID, UserID: newUser(), SourceCode: "print(1)", LanguageID: 50},
			status: http.StatusBadRequest,
		},
		{
			name:   "blank source",
			body:   types.CreateSubmission{QuestionID: question.ID, UserID: newUser(), SourceCode: "  \n", LanguageID: 71},
			status: http.StatusBadRequest,
		},
		{
			name:   "question id not a uuid",
			body:   types.CreateSubmission{QuestionID: "question-1", UserID: newUser(), SourceCode: "print(1)", LanguageID: 71},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.status, s.do(http.MethodPost, "/v1/submissions/", tt.body, nil))
		})
	}
}

func (s *ServerTestSuite) Test_DispatchFailureMarksError() {
	s.judge.status.Store(http.StatusServiceUnavailable)
	question := s.createQuestion()

	submission := s.createSubmission(question.ID, newUser())

	s.Require().Eventually(func() bool {
		return s.getSubmission(submission.ID).Status == types.SubmissionStatusError
	}, 5*time.Second, 20*time.Millisecond)

	got := s.getSubmission(submission.ID)
	s.Nil(got.PassedCount)
	s.Nil(got.TotalCount)
	s.Require().NotNil(got.FirstFailure)
	s.Require().NotNil(got.FirstFailure.ErrorMessage)
}

func (s *ServerTestSuite) Test_GetSubmission() {
	s.Run("unknown", func() {
		s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/v1/submissions/"+uuid.NewString()+"/", nil, nil))
	})

	s.Run("not a uuid", func() {
		s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/v1/submissions/submission-1/", nil, nil))
	})
}

func (s *ServerTestSuite) Test_ListSubmissions() {
	question := s.createQuestion()
	other := s.createQuestion()
	user := newUser()

	created := []types.Submission{
		s.createSubmission(question.ID, user),
		s.createSubmission(question.ID, user),
		s.createSubmission(other.ID, user),
	}
	s.createSubmission(question.ID, newUser())

	var first types.SubmissionPage
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/v1/users/"+user+"/submissions/?limit=2", nil, &first))
	s.Require().Len(first.Page, 2)
	s.False(first.IsDone)
	s.Equal(created[2].ID, first.Page[0].ID)
	s.Equal(created[1].ID, first.Page[1].ID)
	s.Nil(first.Page[0].SourceCode)

	var second types.SubmissionPage
	s.Require().Equal(http.StatusOK, s.do(
		http.MethodGet,
		"/v1/users/"+user+"/submissions/?limit=2&cursor="+first.ContinueCursor,
		nil,
		&second,
	))
	s.Require().Len(second.Page, 1)
	s.True(second.IsDone)
	s.Empty(second.ContinueCursor)
	s.Equal(created[0].ID, second.Page[0].ID)

	var filtered types.SubmissionPage
	s.Require().Equal(http.StatusOK, s.do(
		http.MethodGet,
		"/v1/users/"+user+"/submissions/?question_id="+other.ID,
		nil,
		&filtered,
	))
	s.Require().Len(filtered.Page, 1)
	s.Equal(created[2].ID, filtered.Page[0].ID)

	s.Equal(http.StatusBadRequest, s.do(
		http.MethodGet,
		"/v1/users/"+user+"/submissions/?cursor="+uuid.NewString(),
		nil,
		nil,
	))
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/v1/users/"+user+"/submissions/?limit=1000", nil, nil))
}
