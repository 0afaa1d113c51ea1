package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/inflight"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/routes"
	v1 "github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/routes/v1"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/routes/v1/mock"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/runner"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/judge0"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/taskrunner"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

const (
	submissionID = "0194a6d2-0000-7000-8000-000000000001"
	questionID   = "0194a6d2-0000-7000-8000-000000000002"
)

type fakeLanguages struct{ err error }

func (p fakeLanguages) Languages(context.Context) ([]judge0.Language, error) {
	return []judge0.Language{{ID: 71, Name: "Python"}}, p.err
}

type JudgeQuestionSuite struct {
	suite.Suite
	e         *echo.Echo
	store     *mock.MockMarker
	processor *mock.MockProcessor
	guard     *inflight.LocalGuard
	tasks     *taskrunner.Client
}

func (s *JudgeQuestionSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.store = mock.NewMockMarker(ctrl)
	s.processor = mock.NewMockProcessor(ctrl)
	s.guard = inflight.NewLocalGuard()
	s.tasks = taskrunner.Create()

	e, err := routes.BuildEcho(logger.Logger, fakeLanguages{})
	s.Require().NoError(err)
	v1.NewHandler(s.store, s.processor, s.guard, s.tasks, 64).AddRoutes(e)
	s.e = e
}

func (s *JudgeQuestionSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(s.tasks.Shutdown(ctx))
}

func (s *JudgeQuestionSuite) post(body string, headers map[string]string) (*httptest.ResponseRecorder, types.JudgeQuestionResponse) {
	// no trailing slash, the router adds it
	req := httptest.NewRequest(http.MethodPost, "/v1/judge-question", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var resp types.JudgeQuestionResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func validBody() string {
	return `{"questionId":"` + questionID + `","submissionId":"` + submissionID +
		`","languageId":71,"sourceCode":"print(1)"}`
}

func (s *JudgeQuestionSuite) TestAccepted() {
	processed := make(chan runner.Job, 1)

	s.store.EXPECT().MarkRunning(gomock.Any(), types.SubmissionRunning{
		SubmissionID:   submissionID,
		SubmissionKind: types.SubmissionKindStandard,
	}).Return(nil)
	s.processor.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, job runner.Job) types.SubmissionResult {
			processed <- job
			return types.SubmissionResult{Status: types.SubmissionStatusPassed}
		})

	rec, resp := s.post(validBody(), map[string]string{echo.HeaderXRequestID: "req-42"})

	s.Equal(http.StatusAccepted, rec.Code)
	s.Equal(types.JudgeStatusAccepted, resp.Status)
	s.Equal(submissionID, resp.SubmissionID)
	s.Equal(v1.MessageQueued, resp.Message)
	s.Equal("req-42", resp.Details["requestId"])

	select {
	case job := <-processed:
		s.Equal("req-42", job.RequestID)
		s.Equal(questionID, job.QuestionID)
		s.Equal(71, job.LanguageID)
		s.Equal("print(1)", job.SourceCode)
		s.False(job.ReceivedAt.IsZero())
	case <-time.After(5 * time.Second):
		s.FailNow("submission was never processed")
	}

	s.Require().NoError(s.tasks.Shutdown(context.Background()))
	claimed, err := s.guard.Acquire(context.Background(), submissionID)
	s.Require().NoError(err)
	s.True(claimed, "claim is released after processing")
}

func (s *JudgeQuestionSuite) TestInvalidBody() {
	tests := map[string]string{
		"malformed":        `{"questionId":`,
		"missing language": `{"questionId":"` + questionID + `","submissionId":"` + submissionID + `","sourceCode":"x"}`,
		"bad uuid":         `{"questionId":"nope","submissionId":"` + submissionID + `","languageId":71,"sourceCode":"x"}`,
		"zero language":    `{"questionId":"` + questionID + `","submissionId":"` + submissionID + `","languageId":0,"sourceCode":"x"}`,
		"bad kind":         `{"questionId":"` + questionID + `","submissionId":"` + submissionID + `","languageId":71,"sourceCode":"x","submissionKind":"other"}`,
	}

	for name, body := range tests {
		s.Run(name, func() {
			rec, resp := s.post(body, nil)

			s.Equal(http.StatusBadRequest, rec.Code)
			s.Equal(types.JudgeStatusError, resp.Status)
			s.Equal(v1.MessageInvalidBody, resp.Message)
			s.NotEmpty(resp.Details["issues"])
		})
	}
}

func (s *JudgeQuestionSuite) TestSourceTooLarge() {
	body := `{"questionId":"` + questionID + `","submissionId":"` + submissionID +
		`","languageId":71,"sourceCode":"` + strings.Repeat("é", 33) + `"}`

	rec, resp := s.post(body, nil)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(v1.MessageSourceTooLarge, resp.Message)
	s.Equal(submissionID, resp.SubmissionID)
	s.EqualValues(64, resp.Details["maxBytes"])
}

func (s *JudgeQuestionSuite) TestAlreadyJudging() {
	claimed, err := s.guard.Acquire(context.Background(), submissionID)
	s.Require().NoError(err)
	s.Require().True(claimed)

	rec, resp := s.post(validBody(), nil)

	s.Equal(http.StatusConflict, rec.Code)
	s.Equal(v1.MessageAlreadyJudging, resp.Message)
}

func (s *JudgeQuestionSuite) TestMarkRunningFails() {
	s.store.EXPECT().MarkRunning(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	rec, resp := s.post(validBody(), nil)

	s.Equal(http.StatusBadGateway, rec.Code)
	s.Equal(types.JudgeStatusError, resp.Status)
	s.Equal(v1.MessageMarkFailed, resp.Message)
	s.NotEmpty(resp.Details["requestId"])
	s.NotEmpty(rec.Header().Get(echo.HeaderXRequestID))

	claimed, err := s.guard.Acquire(context.Background(), submissionID)
	s.Require().NoError(err)
	s.True(claimed, "claim is released when the store cannot be reached")
}

func TestJudgeQuestion(t *testing.T) {
	suite.Run(t, new(JudgeQuestionSuite))
}

func TestHealth(t *testing.T) {
	t.Run("Healthz", func(t *testing.T) {
		e, err := routes.BuildEcho(logger.Logger, fakeLanguages{err: errors.New("down")})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	})

	t.Run("Ready", func(t *testing.T) {
		e, err := routes.BuildEcho(logger.Logger, fakeLanguages{})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	})

	t.Run("EngineDown", func(t *testing.T) {
		e, err := routes.BuildEcho(logger.Logger, fakeLanguages{err: errors.New("connection refused")})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz/", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"ok":false,"engine":{"reachable":false,"error":"connection refused"}}`, rec.Body.String())
	})
}
