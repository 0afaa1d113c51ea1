package v1

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/inflight"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/runner"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/taskrunner"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

const name = "github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/routes/v1"

var tracer = otel.Tracer(name)

//go:generate mockgen -destination ./mock/mock.go -package mock . Marker,Processor

type Marker interface {
	MarkRunning(ctx context.Context, running types.SubmissionRunning) error
}

type Processor interface {
	Process(ctx context.Context, job runner.Job) types.SubmissionResult
}

type Handler struct {
	store          Marker
	runner         Processor
	guard          inflight.Guard
	tasks          *taskrunner.Client
	maxSourceBytes int
}

func NewHandler(
	store Marker,
	processor Processor,
	guard inflight.Guard,
	tasks *taskrunner.Client,
	maxSourceBytes int,
) *Handler {
	return &Handler{
		store:          store,
		runner:         processor,
		guard:          guard,
		tasks:          tasks,
		maxSourceBytes: maxSourceBytes,
	}
}

func (h *Handler) AddRoutes(e *echo.Echo) {
	v1 := e.Group("/v1")
	v1.POST("/judge-question/", h.JudgeQuestion)
}
