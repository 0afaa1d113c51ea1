package forward_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/worker/internal/forward"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/queue"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/workererrors"
)

const (
	route    = "/analysis/"
	username = "username"
	password = "password"
)

type webhook struct {
	status   int
	calls    atomic.Int32
	received map[string]any
}

func (w *webhook) server(t *testing.T) *url.URL {
	t.Helper()

	e := echo.New()
	e.Use(middleware.BasicAuth(func(reqUser, reqPassword string, _ echo.Context) (bool, error) {
		return reqUser == username && reqPassword == password, nil
	}))
	e.POST(route, func(c echo.Context) error {
		w.calls.Add(1)
		body := map[string]any{}
		if err := c.Bind(&body); err != nil {
			return err
		}
		w.received = body
		return c.NoContent(w.status)
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL + route)
	require.NoError(t, err)
	return u
}

func job(t *testing.T) []byte {
	t.Helper()

	raw, err := json.Marshal(types.AnalysisJob{
		TraceContext: map[string]string{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
		ExecutionID:  "0190d6b4-0000-7000-8000-000000000001",
		UserID:       "user-1",
		PastRemarks:  "Remark #1: check bounds",
		Submissions: []types.AnalysisSubmission{
			{SubmissionID: "0190d6b4-0000-7000-8000-000000000002", Status: types.SubmissionStatusFailed, QuestionTitle: "Sum"},
		},
	})
	require.NoError(t, err)
	return raw
}

func TestHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers without trace context", func(t *testing.T) {
		t.Parallel()

		hook := &webhook{status: http.StatusOK}
		f := forward.New(forward.Target{URL: hook.server(t), Username: username, Password: password}, 0, 5*time.Second)

		require.NoError(t, f.Handle(ctx, job(t)))
		assert.EqualValues(t, 1, hook.calls.Load())
		assert.Equal(t, "0190d6b4-0000-7000-8000-000000000001", hook.received["executionId"])
		assert.Equal(t, "Remark #1: check bounds", hook.received["pastRemarks"])
		assert.NotContains(t, hook.received, "traceContext")
	})

	t.Run("bad credentials poison", func(t *testing.T) {
		t.Parallel()

		hook := &webhook{status: http.StatusOK}
		f := forward.New(forward.Target{URL: hook.server(t), Username: username, Password: "wrong"}, 0, 5*time.Second)

		err := f.Handle(ctx, job(t))
		var pe *queue.PoisonError
		require.ErrorAs(t, err, &pe)

		var de workererrors.DeliveryError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, http.StatusUnauthorized, de.StatusCode)
	})

	t.Run("server errors are retried then redelivered", func(t *testing.T) {
		t.Parallel()

		hook := &webhook{status: http.StatusServiceUnavailable}
		f := forward.New(forward.Target{URL: hook.server(t), Username: username, Password: password}, 2, 5*time.Second)

		err := f.Handle(ctx, job(t))
		require.Error(t, err)

		var pe *queue.PoisonError
		assert.NotErrorAs(t, err, &pe)
		assert.EqualValues(t, 3, hook.calls.Load())
	})

	t.Run("throttled is not permanent", func(t *testing.T) {
		t.Parallel()

		hook := &webhook{status: http.StatusTooManyRequests}
		f := forward.New(forward.Target{URL: hook.server(t), Username: username, Password: password}, 0, 5*time.Second)

		err := f.Handle(ctx, job(t))
		require.Error(t, err)
		var pe *queue.PoisonError
		assert.NotErrorAs(t, err, &pe)
	})

	t.Run("unreachable is redelivered", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		u, err := url.Parse(srv.URL)
		require.NoError(t, err)
		srv.Close()

		f := forward.New(forward.Target{URL: u}, 0, time.Second)
		err = f.Handle(ctx, job(t))

		var de workererrors.DeliveryError
		require.ErrorAs(t, err, &de)
		assert.Zero(t, de.StatusCode)
		var pe *queue.PoisonError
		assert.NotErrorAs(t, err, &pe)
	})

	t.Run("malformed messages poison", func(t *testing.T) {
		t.Parallel()

		hook := &webhook{status: http.StatusOK}
		f := forward.New(forward.Target{URL: hook.server(t)}, 0, time.Second)

		for _, message := range []string{"{not json", `{"userId":"user-1"}`} {
			err := f.Handle(ctx, []byte(message))
			var pe *queue.PoisonError
			assert.ErrorAs(t, err, &pe, message)
		}
		assert.Zero(t, hook.calls.Load())
	})
}
