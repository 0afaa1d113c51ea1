package storeclient_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/storeclient"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

const questionID = "0197a8e0-0000-7000-8000-000000000002"

func ptr[T any](v T) *T {
	return &v
}

func newStore(t *testing.T) (*httptest.Server, *atomic.Int32, *types.SubmissionResult) {
	t.Helper()

	resultCalls := &atomic.Int32{}
	received := &types.SubmissionResult{}

	e := echo.New()
	e.POST(storeclient.PathTestCases, func(c echo.Context) error {
		var req types.TestCasesRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		if req.QuestionID != questionID {
			return c.JSON(http.StatusNotFound, types.StringError("question not found"))
		}
		return c.JSON(http.StatusOK, types.TestCasesResponse{
			Question: types.JudgingSettings{
				ID:               questionID,
				TimeLimitSeconds: 2,
				MemoryLimitMB:    256,
				OutputComparison: types.OutputComparison{TrimOutputs: true, CaseSensitive: true},
			},
			TestCases: []types.TestCase{
				{ID: "a", Visibility: types.VisibilityPublic, Stdin: "1\n", ExpectedStdout: "1\n", Order: 0},
			},
		})
	})
	e.POST(storeclient.PathSubmissionRunning, func(c echo.Context) error {
		return c.JSON(http.StatusOK, types.OK{OK: true})
	})
	e.POST(storeclient.PathSubmissionResult, func(c echo.Context) error {
		resultCalls.Add(1)
		if err := c.Bind(received); err != nil {
			return err
		}
		if received.SubmissionID == "fail" {
			return c.JSON(http.StatusInternalServerError, types.StringError("db down"))
		}
		return c.JSON(http.StatusOK, types.OK{OK: true})
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, resultCalls, received
}

func newClient(baseURL string) *storeclient.Client {
	return storeclient.New(storeclient.Config{BaseURL: baseURL + "/", Timeout: 2 * time.Second, RetryMax: 2})
}

func TestFetchTestCases(t *testing.T) {
	srv, _, _ := newStore(t)
	client := newClient(srv.URL)

	t.Run("Found", func(t *testing.T) {
		got, err := client.FetchTestCases(t.Context(), questionID)
		require.NoError(t, err)
		assert.Equal(t, 256, got.Question.MemoryLimitMB)
		assert.True(t, got.Question.OutputComparison.TrimOutputs)
		require.Len(t, got.TestCases, 1)
		assert.Equal(t, "1\n", got.TestCases[0].Stdin)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := client.FetchTestCases(t.Context(), "0197a8e0-0000-7000-8000-00000000ffff")
		require.ErrorIs(t, err, storeclient.ErrNotFound)
	})
}

func TestReportResult(t *testing.T) {
	srv, calls, received := newStore(t)
	client := newClient(srv.URL)

	t.Run("Sent", func(t *testing.T) {
		err := client.ReportResult(t.Context(), types.SubmissionResult{
			SubmissionID:      "s1",
			Status:            types.SubmissionStatusFailed,
			PassedCount:       ptr(1),
			TotalCount:        ptr(4),
			FirstFailureIndex: ptr(1),
			FirstFailure:      &types.FirstFailure{ActualOutput: ptr(""), ErrorMessage: ptr("Time limit exceeded")},
		})
		require.NoError(t, err)
		assert.Equal(t, types.SubmissionStatusFailed, received.Status)
		require.NotNil(t, received.FirstFailure)
		assert.Nil(t, received.FirstFailure.Stdin)
		assert.Equal(t, "Time limit exceeded", *received.FirstFailure.ErrorMessage)
	})

	t.Run("NotRetried", func(t *testing.T) {
		calls.Store(0)
		err := client.ReportResult(t.Context(), types.SubmissionResult{SubmissionID: "fail", Status: types.SubmissionStatusError})

		var statusErr *storeclient.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
		assert.EqualValues(t, 1, calls.Load())
	})
}

func TestMarkRunning(t *testing.T) {
	srv, _, _ := newStore(t)

	require.NoError(t, newClient(srv.URL).MarkRunning(t.Context(), types.SubmissionRunning{SubmissionID: "s1"}))

	srv.Close()
	require.Error(t, newClient(srv.URL).MarkRunning(t.Context(), types.SubmissionRunning{SubmissionID: "s1"}))
}
