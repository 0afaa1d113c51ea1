// Package runner judges one submission: it runs the question's test cases through the
// execution engine in order, stops at the first non-passing case and reports the
// outcome to the submission store.
package runner

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/compare"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/judge0"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

const name = "github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/runner"

var (
	tracer = otel.Tracer(name)
	meter  = otel.Meter(name)
)

const (
	MessageCompilationFailed = "Compilation failed"
	MessageRuntimeError      = "Runtime error"
	MessageTimeLimit         = "Time limit exceeded"
	MessageWrongAnswer       = "Wrong answer"
)

//go:generate mockgen -destination ./mock/mock.go -package mock . Engine,Store

type Engine interface {
	SubmitAndWait(ctx context.Context, req judge0.Request) (*judge0.Result, error)
}

// Store is the submission store as seen from the judging service
type Store interface {
	FetchTestCases(ctx context.Context, questionID string) (*types.TestCasesResponse, error)
	ReportResult(ctx context.Context, result types.SubmissionResult) error
}

type Job struct {
	ReceivedAt   time.Time
	RequestID    string
	SubmissionID string
	QuestionID   string
	SourceCode   string
	Kind         types.SubmissionKind
	LanguageID   int
}

type Runner struct {
	engine       Engine
	store        Store
	now          func() time.Time
	executed     metric.Int64Counter
	duration     metric.Int64Histogram
	maxTestCases int
}

func New(engine Engine, store Store, maxTestCases int) (*Runner, error) {
	executed, err := meter.Int64Counter(
		"judge.testcases.executed",
		metric.WithDescription("Test cases sent to the execution engine"),
		metric.WithUnit("{testcase}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Int64Histogram(
		"judge.submission.duration",
		metric.WithDescription("Time from request receipt to the final verdict"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Runner{
		engine:       engine,
		store:        store,
		now:          time.Now,
		executed:     executed,
		duration:     duration,
		maxTestCases: maxTestCases,
	}, nil
}

// Process judges the job and reports exactly one result to the store. The reported
// result is returned. A failed report is logged and not retried.
func (r *Runner) Process(ctx context.Context, job Job) types.SubmissionResult {
	ctx, span := tracer.Start(ctx, "Runner.Process", trace.WithAttributes(
		attribute.String("submissionID", job.SubmissionID),
		attribute.String("questionID", job.QuestionID),
		attribute.String("requestID", job.RequestID),
		attribute.Int("languageID", job.LanguageID),
	))
	defer span.End()

	log := slog.With("submissionID", job.SubmissionID, "requestID", job.RequestID)

	result := r.judge(ctx, job, log)
	result.SubmissionID = job.SubmissionID
	result.SubmissionKind = job.Kind
	result.DurationMs = r.elapsed(job)

	r.duration.Record(ctx, *result.DurationMs, metric.WithAttributes(
		attribute.String("status", string(result.Status)),
	))

	span.AddEvent("judged", trace.WithAttributes(
		attribute.String("status", string(result.Status)),
	))

	if err := r.store.ReportResult(ctx, result); err != nil {
		log.ErrorContext(ctx, "failed to report submission result", "error", err, "status", result.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to report result")
		return result
	}

	log.InfoContext(ctx, "reported submission result", "status", result.Status, "durationMs", *result.DurationMs)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "processed submission")
	return result
}

func (r *Runner) elapsed(job Job) *int64 {
	ms := r.now().Sub(job.ReceivedAt).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return &ms
}

func (r *Runner) judge(ctx context.Context, job Job, log *slog.Logger) types.SubmissionResult {
	span := trace.SpanFromContext(ctx)

	testCases, err := r.store.FetchTestCases(ctx, job.QuestionID)
	if err != nil {
		log.ErrorContext(ctx, "failed to fetch test cases", "error", err, "questionID", job.QuestionID)
		span.AddEvent("fetch_failed", trace.WithAttributes(attribute.String("error", err.Error())))
		return types.SubmissionResult{Status: types.SubmissionStatusError}
	}

	count := len(testCases.TestCases)
	if count == 0 || count > r.maxTestCases {
		log.WarnContext(ctx, "rejected test case count", "testCases", count, "max", r.maxTestCases)
		span.AddEvent("bad_testcase_count", trace.WithAttributes(attribute.Int("testCases", count)))
		return types.SubmissionResult{Status: types.SubmissionStatusError}
	}

	return r.Run(ctx, strings.ReplaceAll(job.SourceCode, "\r\n", "\n"), job.LanguageID, testCases)
}

// Limits derived from the question's judging settings. The wall clock gets twice the cpu budget.
func Limits(settings types.JudgingSettings) judge0.Limits {
	return judge0.Limits{
		CPUTimeLimit:  settings.TimeLimitSeconds,
		WallTimeLimit: settings.TimeLimitSeconds * 2,
		MemoryLimitKB: settings.MemoryLimitMB * 1024,
	}
}

// Run executes the test cases in ascending order, one at a time, and stops at the first
// one that does not pass. The returned result carries no submission identity or duration.
func (r *Runner) Run(
	ctx context.Context,
	source string,
	languageID int,
	testCases *types.TestCasesResponse,
) types.SubmissionResult {
	ctx, span := tracer.Start(ctx, "Runner.Run", trace.WithAttributes(
		attribute.Int("testCases", len(testCases.TestCases)),
	))
	defer span.End()

	ordered := slices.Clone(testCases.TestCases)
	slices.SortStableFunc(ordered, func(a, b types.TestCase) int {
		return cmp.Compare(a.Order, b.Order)
	})

	limits := Limits(testCases.Question)
	settings := testCases.Question.OutputComparison
	total := len(ordered)
	passed := 0

	for i, tc := range ordered {
		res, err := r.engine.SubmitAndWait(ctx, judge0.Request{
			SourceCode: source,
			Stdin:      strings.ReplaceAll(tc.Stdin, "\r\n", "\n"),
			LanguageID: languageID,
			Limits:     limits,
		})
		if err != nil {
			r.count(ctx, "error")
			span.RecordError(err)
			span.SetStatus(codes.Error, "engine call failed")
			slog.ErrorContext(ctx, "engine call failed", "error", err, "index", i, "timeout", errors.Is(err, judge0.ErrTimeout))
			return types.SubmissionResult{
				Status:            types.SubmissionStatusError,
				PassedCount:       ptr(passed),
				TotalCount:        ptr(total),
				FirstFailureIndex: ptr(i),
			}
		}

		stdout := deref(res.Stdout)
		statusID := res.Status.ID

		switch {
		case judge0.IsCompileError(statusID):
			r.count(ctx, "compile_error")
			compileOutput := deref(res.CompileOutput)
			message := compileOutput
			if res.CompileOutput == nil {
				message = MessageCompilationFailed
			}
			return r.failed(ctx, 0, total, i, failure(tc, stdout, message), func(out *types.SubmissionResult) {
				out.CompileOutput = &compileOutput
			})
		case judge0.IsRuntimeError(statusID):
			r.count(ctx, "runtime_error")
			stderr := deref(res.Stderr)
			message := stderr
			if res.Stderr == nil {
				message = MessageRuntimeError
			}
			return r.failed(ctx, passed, total, i, failure(tc, stdout, message), func(out *types.SubmissionResult) {
				out.Stderr = &stderr
			})
		case judge0.IsTimeLimitExceeded(statusID):
			r.count(ctx, "time_limit")
			return r.failed(ctx, passed, total, i, failure(tc, stdout, MessageTimeLimit), nil)
		}

		if !compare.Outputs(stdout, tc.ExpectedStdout, settings) {
			r.count(ctx, "wrong_answer")
			return r.failed(ctx, passed, total, i, failure(tc, stdout, MessageWrongAnswer), nil)
		}

		r.count(ctx, "passed")
		passed++
		span.AddEvent("testcase_passed", trace.WithAttributes(attribute.Int("index", i)))
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "all test cases passed")
	return types.SubmissionResult{
		Status:      types.SubmissionStatusPassed,
		PassedCount: ptr(passed),
		TotalCount:  ptr(total),
	}
}

func (r *Runner) failed(
	ctx context.Context,
	passed, total, index int,
	ff *types.FirstFailure,
	extra func(*types.SubmissionResult),
) types.SubmissionResult {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("testcase_failed", trace.WithAttributes(
		attribute.Int("index", index),
		attribute.String("reason", deref(ff.ErrorMessage)),
	))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "submission failed")

	out := types.SubmissionResult{
		Status:            types.SubmissionStatusFailed,
		PassedCount:       ptr(passed),
		TotalCount:        ptr(total),
		FirstFailureIndex: ptr(index),
		FirstFailure:      ff,
	}
	if extra != nil {
		extra(&out)
	}
	return out
}

func (r *Runner) count(ctx context.Context, outcome string) {
	r.executed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Only public test cases expose their input and expected output
func failure(tc types.TestCase, actual string, message string) *types.FirstFailure {
	ff := &types.FirstFailure{
		ActualOutput: &actual,
		ErrorMessage: &message,
	}
	if tc.Visibility == types.VisibilityPublic {
		stdin := tc.Stdin
		expected := tc.ExpectedStdout
		ff.Stdin = &stdin
		ff.ExpectedOutput = &expected
	}
	return ff
}

func ptr[T any](v T) *T {
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
