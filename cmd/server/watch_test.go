package main

import (
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

func (s *ServerTestSuite) dialWatch(id string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/v1/submissions/" + id + "/watch/"

	conn, resp, err := websocket.DefaultDialer.DialContext(s.T().Context(), url, nil)
	s.Require().NoError(err)
	s.Require().NoError(resp.Body.Close())
	return conn
}

func (s *ServerTestSuite) readUpdate(conn *websocket.Conn) types.Submission {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))

	var update types.Submission
	s.Require().NoError(conn.ReadJSON(&update))
	return update
}

func (s *ServerTestSuite) Test_WatchSubmission() {
	question := s.createQuestion()
	submission := s.createSubmission(question.ID, newUser())
	s.waitForDispatch(submission.ID)

	conn := s.dialWatch(submission.ID)
	defer conn.Close()

	snapshot := s.readUpdate(conn)
	s.Equal(submission.ID, snapshot.ID)
	s.Equal(types.SubmissionStatusQueued, snapshot.Status)

	store := s.store()
	s.Require().NoError(store.MarkRunning(s.T().Context(), types.SubmissionRunning{SubmissionID: submission.ID}))
	s.Equal(types.SubmissionStatusRunning, s.readUpdate(conn).Status)

	s.Require().NoError(store.ReportResult(s.T().Context(), types.SubmissionResult{
		SubmissionID: submission.ID,
		Status:       types.SubmissionStatusPassed,
		PassedCount:  ptr(2),
		TotalCount:   ptr(2),
	}))

	final := s.readUpdate(conn)
	s.Equal(types.SubmissionStatusPassed, final.Status)
	s.Equal(ptr(2), final.PassedCount)
	s.Nil(final.SourceCode)

	_, _, err := conn.ReadMessage()
	s.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal close, got %v", err)
}

func (s *ServerTestSuite) Test_WatchFinishedSubmission() {
	question := s.createQuestion()
	submission := s.createSubmission(question.ID, newUser())
	s.waitForDispatch(submission.ID)

	s.Require().NoError(s.store().ReportResult(s.T().Context(), types.SubmissionResult{
		SubmissionID: submission.ID,
		Status:       types.SubmissionStatusError,
		FirstFailure: &types.FirstFailure{ErrorMessage: ptr("engine unavailable")},
	}))

	conn := s.dialWatch(submission.ID)
	defer conn.Close()

	s.Equal(types.SubmissionStatusError, s.readUpdate(conn).Status)

	_, _, err := conn.ReadMessage()
	s.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal close, got %v", err)
}

func (s *ServerTestSuite) Test_WatchUnknownSubmission() {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/v1/submissions/0190d6b4-0000-7000-8000-000000000000/watch/"

	_, resp, err := websocket.DefaultDialer.DialContext(s.T().Context(), url, nil)
	s.Require().Error(err)
	s.Require().NotNil(resp)
	defer resp.Body.Close()
	s.Equal(404, resp.StatusCode)
}
