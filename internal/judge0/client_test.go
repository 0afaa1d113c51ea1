package judge0_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/judge0"
)

type fakeEngine struct {
	lastBody   map[string]any
	lastHeader http.Header
	result     map[string]any
	polls      atomic.Int32
	// number of polls answered with "Processing" before result is returned
	processingPolls int32
}

func (f *fakeEngine) server(t *testing.T) *httptest.Server {
	t.Helper()

	e := echo.New()
	e.POST("/submissions", func(c echo.Context) error {
		f.lastHeader = c.Request().Header.Clone()
		body := map[string]any{}
		if err := c.Bind(&body); err != nil {
			return err
		}
		f.lastBody = body
		assert.Equal(t, "true", c.QueryParam("base64_encoded"))
		assert.Equal(t, "false", c.QueryParam("wait"))
		return c.JSON(http.StatusCreated, map[string]string{"token": "tok-1"})
	})
	e.GET("/submissions/:token", func(c echo.Context) error {
		assert.Equal(t, "tok-1", c.Param("token"))
		assert.Equal(t, "*", c.QueryParam("fields"))
		n := f.polls.Add(1)
		if n <= f.processingPolls {
			return c.JSON(http.StatusOK, map[string]any{
				"token":  "tok-1",
				"status": map[string]any{"id": judge0.StatusProcessing, "description": "Processing"},
			})
		}
		return c.JSON(http.StatusOK, f.result)
	})
	e.GET("/languages", func(c echo.Context) error {
		return c.JSON(http.StatusOK, []map[string]any{{"id": 71, "name": "Python (3.8.1)"}})
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func newClient(baseURL string) *judge0.Client {
	return judge0.NewClient(judge0.Config{
		BaseURL:         baseURL,
		AuthToken:       "secret",
		RequestTimeout:  2 * time.Second,
		PollInterval:    5 * time.Millisecond,
		MaxPollAttempts: 5,
		RetryMax:        2,
	})
}

func TestSubmitAndWait(t *testing.T) {
	engine := &fakeEngine{
		processingPolls: 2,
		result: map[string]any{
			"token":     "tok-1",
			"stdout":    b64("hello\n"),
			"stderr":    nil,
			"status":    map[string]any{"id": judge0.StatusAccepted, "description": "Accepted"},
			"time":      "0.01",
			"memory":    1024,
			"exit_code": 0,
		},
	}
	srv := engine.server(t)

	result, err := newClient(srv.URL+"//").SubmitAndWait(context.Background(), judge0.Request{
		SourceCode: "print('hello')",
		Stdin:      "",
		LanguageID: 71,
		Limits:     judge0.Limits{CPUTimeLimit: 2, WallTimeLimit: 4, MemoryLimitKB: 262144},
	})
	require.NoError(t, err)

	assert.Equal(t, judge0.StatusAccepted, result.Status.ID)
	require.NotNil(t, result.Stdout)
	assert.Equal(t, "hello\n", *result.Stdout)
	assert.Nil(t, result.Stderr)
	assert.EqualValues(t, 3, engine.polls.Load())

	assert.Equal(t, "secret", engine.lastHeader.Get("X-Auth-Token"))
	assert.Equal(t, b64("print('hello')"), engine.lastBody["source_code"])
	assert.EqualValues(t, 71, engine.lastBody["language_id"])
	assert.EqualValues(t, 2, engine.lastBody["cpu_time_limit"])
	assert.EqualValues(t, 4, engine.lastBody["wall_time_limit"])
	assert.EqualValues(t, 262144, engine.lastBody["memory_limit"])
	assert.NotContains(t, engine.lastBody, "expected_output", "outputs are compared by the runner")
}

func TestPollDecodesWrappedBase64(t *testing.T) {
	long := "line one of the compiler output that is long enough to be wrapped\n"
	encoded := b64(long)
	wrapped := encoded[:60] + "\n" + encoded[60:]

	engine := &fakeEngine{result: map[string]any{
		"token":          "tok-1",
		"compile_output": wrapped,
		"message":        "not base64 at all!",
		"status":         map[string]any{"id": judge0.StatusCompilationError, "description": "Compilation Error"},
	}}
	srv := engine.server(t)

	result, err := newClient(srv.URL).Poll(context.Background(), "tok-1")
	require.NoError(t, err)

	require.NotNil(t, result.CompileOutput)
	assert.Equal(t, long, *result.CompileOutput)
	require.NotNil(t, result.Message)
	assert.Equal(t, "not base64 at all!", *result.Message)
	assert.True(t, judge0.IsCompileError(result.Status.ID))
}

func TestSubmitAndWaitTimeout(t *testing.T) {
	engine := &fakeEngine{processingPolls: 100}
	srv := engine.server(t)

	_, err := newClient(srv.URL).SubmitAndWait(context.Background(), judge0.Request{SourceCode: "x", LanguageID: 71})
	require.ErrorIs(t, err, judge0.ErrTimeout)
	assert.EqualValues(t, 5, engine.polls.Load())
}

func TestTransportErrors(t *testing.T) {
	t.Run("non2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newClient(srv.URL).Submit(context.Background(), judge0.Request{SourceCode: "x", LanguageID: 71})
		var transportErr *judge0.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, http.StatusInternalServerError, transportErr.StatusCode)
		assert.Equal(t, "submit", transportErr.Op)
	})

	t.Run("malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{not json"))
		}))
		defer srv.Close()

		_, err := newClient(srv.URL).Poll(context.Background(), "tok-1")
		var transportErr *judge0.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, "poll", transportErr.Op)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := newClient(url).Languages(context.Background())
		var transportErr *judge0.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Zero(t, transportErr.StatusCode)
	})
}

func TestRetriesOnlyReads(t *testing.T) {
	var creates, polls atomic.Int32

	e := echo.New()
	e.POST("/submissions", func(c echo.Context) error {
		creates.Add(1)
		return c.String(http.StatusServiceUnavailable, "overloaded")
	})
	e.GET("/submissions/:token", func(c echo.Context) error {
		if polls.Add(1) == 1 {
			return c.String(http.StatusServiceUnavailable, "overloaded")
		}
		return c.JSON(http.StatusOK, map[string]any{
			"token":  c.Param("token"),
			"status": map[string]any{"id": judge0.StatusAccepted, "description": "Accepted"},
		})
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	client := newClient(srv.URL)

	_, err := client.Submit(context.Background(), judge0.Request{SourceCode: "x", LanguageID: 71})
	var transportErr *judge0.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusServiceUnavailable, transportErr.StatusCode)
	assert.EqualValues(t, 1, creates.Load(), "a retried create could queue a second run")

	result, err := client.Poll(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, judge0.StatusAccepted, result.Status.ID)
	assert.EqualValues(t, 2, polls.Load())
}

func TestLanguages(t *testing.T) {
	srv := (&fakeEngine{}).server(t)

	languages, err := newClient(srv.URL).Languages(context.Background())
	require.NoError(t, err)
	require.Len(t, languages, 1)
	assert.Equal(t, 71, languages[0].ID)
}

func TestStatusClassification(t *testing.T) {
	for id := judge0.StatusInQueue; id <= judge0.StatusExecFormatError; id++ {
		assert.Equal(t, id >= judge0.StatusAccepted, judge0.IsTerminal(id), "status %d", id)
	}
	assert.True(t, judge0.IsRuntimeError(judge0.StatusRuntimeErrorNZEC))
	assert.False(t, judge0.IsRuntimeError(judge0.StatusInternalError))
	assert.True(t, judge0.IsTimeLimitExceeded(judge0.StatusTimeLimitExceeded))
	assert.Equal(t, 30, judge0.MaxPollAttemptsFor(15*time.Second, 500*time.Millisecond))
}
