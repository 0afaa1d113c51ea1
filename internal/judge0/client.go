package judge0

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
)

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/internal/judge0")

const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

// Returned when polling runs out of attempts before the engine reaches a terminal status
var ErrTimeout = errors.New("engine polling timed out")

// Connection failures, non 2xx responses and undecodable bodies
type TransportError struct {
	Err        error
	Op         string
	StatusCode int
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("engine %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("engine %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Config struct {
	BaseURL   string
	AuthToken string
	// Per HTTP call
	RequestTimeout  time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
	// Retries for reads. Creating a run is never retried, a retry could queue a second one.
	RetryMax        int
}

// Resource limits for a single run. Memory is in KB, times in seconds.
type Limits struct {
	CPUTimeLimit  float64
	WallTimeLimit float64
	MemoryLimitKB int
}

type Request struct {
	SourceCode string
	Stdin      string
	Limits     Limits
	LanguageID int
}

type Status struct {
	Description string `json:"description"`
	ID          int    `json:"id"`
}

// Outcome of one run, with the text fields already decoded
type Result struct {
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Time          *string `json:"time"`
	Memory        *int    `json:"memory"`
	ExitCode      *int    `json:"exit_code"`
	Token         string  `json:"token"`
	Status        Status  `json:"status"`
}

type Language struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

type createSubmissionBody struct {
	CPUTimeLimit  *float64 `json:"cpu_time_limit,omitempty"`
	WallTimeLimit *float64 `json:"wall_time_limit,omitempty"`
	MemoryLimit   *int     `json:"memory_limit,omitempty"`
	SourceCode    string   `json:"source_code"`
	Stdin         string   `json:"stdin"`
	LanguageID    int      `json:"language_id"`
}

type createSubmissionResponse struct {
	Token string `json:"token"`
}

type Client struct {
	reads           *retryablehttp.Client
	writes          *retryablehttp.Client
	baseURL         string
	authToken       string
	requestTimeout  time.Duration
	pollInterval    time.Duration
	maxPollAttempts int
}

// Attempts needed to cover requestTimeout at the given poll interval
func MaxPollAttemptsFor(requestTimeout time.Duration, pollInterval time.Duration) int {
	if pollInterval <= 0 {
		return 1
	}

	return int(math.Ceil(float64(requestTimeout) / float64(pollInterval)))
}

func newHTTPClient(retryMax int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = logger.Logger
	// hand the last response back so status codes surface as TransportErrors
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

func NewClient(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = MaxPollAttemptsFor(cfg.RequestTimeout, cfg.PollInterval)
	}

	return &Client{
		reads:           newHTTPClient(cfg.RetryMax),
		writes:          newHTTPClient(0),
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		authToken:       cfg.AuthToken,
		requestTimeout:  cfg.RequestTimeout,
		pollInterval:    cfg.PollInterval,
		maxPollAttempts: cfg.MaxPollAttempts,
	}
}

func (c *Client) newRequest(
	ctx context.Context,
	method string,
	path string,
	body any,
) (*retryablehttp.Request, error) {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, raw)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("X-Auth-Token", c.authToken)
	}

	return req, nil
}

// performs the request and decodes a 2xx JSON body into out
func (c *Client) do(httpClient *retryablehttp.Client, op string, req *retryablehttp.Request, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(text))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)}
	}

	return nil
}

// Submit queues one run on the engine and returns its token
func (c *Client) Submit(ctx context.Context, r Request) (string, error) {
	ctx, span := tracer.Start(ctx, "Client.Submit", trace.WithAttributes(
		attribute.Int("languageID", r.LanguageID),
		attribute.Int("source.bytes", len(r.SourceCode)),
		attribute.Int("stdin.bytes", len(r.Stdin)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	body := createSubmissionBody{
		SourceCode: encode(r.SourceCode),
		Stdin:      encode(r.Stdin),
		LanguageID: r.LanguageID,
	}
	if r.Limits.CPUTimeLimit > 0 {
		body.CPUTimeLimit = &r.Limits.CPUTimeLimit
	}
	if r.Limits.WallTimeLimit > 0 {
		body.WallTimeLimit = &r.Limits.WallTimeLimit
	}
	if r.Limits.MemoryLimitKB > 0 {
		body.MemoryLimit = &r.Limits.MemoryLimitKB
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/submissions?base64_encoded=true&wait=false", body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build request")
		return "", &TransportError{Op: "submit", Err: err}
	}

	var created createSubmissionResponse
	if err := c.do(c.writes, "submit", req, &created); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create submission")
		return "", err
	}

	if created.Token == "" {
		err := &TransportError{Op: "submit", Err: errors.New("malformed response: missing token")}
		span.RecordError(err)
		span.SetStatus(codes.Error, "no token in response")
		return "", err
	}

	span.SetAttributes(attribute.String("token", created.Token))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created submission")
	return created.Token, nil
}

// Poll fetches the current state of a run
func (c *Client) Poll(ctx context.Context, token string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Client.Poll", trace.WithAttributes(
		attribute.String("token", token),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	path := fmt.Sprintf("/submissions/%s?base64_encoded=true&fields=*", url.PathEscape(token))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build request")
		return nil, &TransportError{Op: "poll", Err: err}
	}

	result := &Result{}
	if err := c.do(c.reads, "poll", req, result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get submission")
		return nil, err
	}

	if result.Status.ID == 0 {
		err := &TransportError{Op: "poll", Err: errors.New("malformed response: missing status")}
		span.RecordError(err)
		span.SetStatus(codes.Error, "no status in response")
		return nil, err
	}

	result.Stdout = decode(result.Stdout)
	result.Stderr = decode(result.Stderr)
	result.CompileOutput = decode(result.CompileOutput)
	result.Message = decode(result.Message)

	span.SetAttributes(attribute.Int("status.id", result.Status.ID))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got submission")
	return result, nil
}

// SubmitAndWait submits then polls at a fixed interval until the engine reports a
// terminal status. Exhausting the attempt budget returns ErrTimeout.
func (c *Client) SubmitAndWait(ctx context.Context, r Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Client.SubmitAndWait")
	defer span.End()

	token, err := c.Submit(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit")
		return nil, err
	}

	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		result, err := c.Poll(ctx, token)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to poll")
			return nil, err
		}

		if IsTerminal(result.Status.ID) {
			span.AddEvent("terminal", trace.WithAttributes(
				attribute.Int("attempts", attempt+1),
				attribute.Int("status.id", result.Status.ID),
			))
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "got terminal result")
			return result, nil
		}

		select {
		case <-ctx.Done():
			err := &TransportError{Op: "poll", Err: ctx.Err()}
			span.RecordError(err)
			span.SetStatus(codes.Error, "context done while polling")
			return nil, err
		case <-time.After(c.pollInterval):
		}
	}

	err = fmt.Errorf("%w after %d attempts (token %s)", ErrTimeout, c.maxPollAttempts, token)
	span.RecordError(err)
	span.SetStatus(codes.Error, "polling timed out")
	return nil, err
}

// Languages lists the engine's languages. Used as a readiness probe.
func (c *Client) Languages(ctx context.Context) ([]Language, error) {
	ctx, span := tracer.Start(ctx, "Client.Languages")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/languages", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build request")
		return nil, &TransportError{Op: "languages", Err: err}
	}

	var languages []Language
	if err := c.do(c.reads, "languages", req, &languages); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list languages")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed languages")
	return languages, nil
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// the engine wraps base64 output at 60 columns. Undecodable text is passed through.
func decode(s *string) *string {
	if s == nil {
		return nil
	}

	compact := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, *s)

	raw, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return s
	}

	decoded := string(raw)
	return &decoded
}
