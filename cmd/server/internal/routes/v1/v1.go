package v1

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	servermiddleware "github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/middleware"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/models"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/submissions"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/watch"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/taskrunner"
)

var tracer = otel.Tracer("github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/routes/v1")

// Context key of the submission loaded from the path
const submissionKey = "submission"

type Handler struct {
	service  *submissions.Service
	broker   watch.Broker
	tasks    *taskrunner.Client
	upgrader websocket.Upgrader
}

func NewHandler(service *submissions.Service, broker watch.Broker, tasks *taskrunner.Client) *Handler {
	return &Handler{
		service: service,
		broker:  broker,
		tasks:   tasks,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) AddRoutes(e *echo.Echo, middlewareHandler *servermiddleware.Handler) {
	v1Group := e.Group("/v1")

	v1Group.POST("/questions/", h.CreateQuestion)
	v1Group.POST("/submissions/", h.CreateSubmission)
	v1Group.GET("/users/:user_id/submissions/", h.ListSubmissions)

	submissionGroup := v1Group.Group(
		"/submissions/:submission_id",
		servermiddleware.PopulateFromIDParam[models.Submission](middlewareHandler, "submission_id", submissionKey),
	)
	submissionGroup.GET("/", h.GetSubmission)
	submissionGroup.GET("/watch/", h.WatchSubmission)
}
