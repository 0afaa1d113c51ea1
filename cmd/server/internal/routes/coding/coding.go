// Package coding serves the callbacks the judging service and the analysis worker report through
package coding

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/models"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/submissions"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/storeclient"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/routes/coding")

const PathAnalysisRemark = "/coding/analysis-remark/"

//go:generate mockgen -destination ./mock/mock.go -package mock . Completer

type Completer interface {
	Complete(ctx context.Context, remark types.AnalysisRemark) (*models.UserRemark, *models.AnalysisExecution, error)
}

type Handler struct {
	service  *submissions.Service
	analysis Completer
}

func NewHandler(service *submissions.Service, analysis Completer) *Handler {
	return &Handler{service: service, analysis: analysis}
}

func (h *Handler) AddRoutes(e *echo.Echo) {
	e.POST(storeclient.PathTestCases, h.TestCases)
	e.POST(storeclient.PathSubmissionRunning, h.SubmissionRunning)
	e.POST(storeclient.PathSubmissionResult, h.SubmissionResult)
	e.POST(PathAnalysisRemark, h.AnalysisRemark)
}
