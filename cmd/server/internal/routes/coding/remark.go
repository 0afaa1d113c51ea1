package coding

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/gate"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/response"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

// AnalysisRemark stores the outcome of a batch analysis and completes its execution
func (h *Handler) AnalysisRemark(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "AnalysisRemark")
	defer span.End()

	var rdata types.AnalysisRemark
	if err := bindBody(c, &rdata); err != nil {
		span.SetStatus(codes.Ok, "invalid request")
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.String("userID", rdata.UserID),
		attribute.Int("submissions", len(rdata.SubmissionIDs)),
	)

	remark, execution, err := h.analysis.Complete(ctx, rdata)
	if errors.Is(err, gate.ErrExecutionNotFound) {
		span.SetStatus(codes.Ok, "execution not found")
		span.RecordError(err)
		return response.NotFoundError
	}
	if err != nil {
		span.SetStatus(codes.Error, "failed to save remark")
		span.RecordError(err)
		return response.InternalServerError
	}

	resp := types.AnalysisRemarkResponse{RemarkID: remark.ID.String(), OK: true}
	if execution != nil {
		id := execution.ID.String()
		resp.ExecutionID = &id
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "saved remark")
	return c.JSON(http.StatusOK, resp)
}
