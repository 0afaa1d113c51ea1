package v1

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/models"
	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/response"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/logger"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

const writeWait = 10 * time.Second

// WatchSubmission streams the submission over a websocket: the current state first, then
// every change, closing once a terminal state has been sent
func (h *Handler) WatchSubmission(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "WatchSubmission")
	defer span.End()

	loaded, ok := c.Get(submissionKey).(*models.Submission)
	if !ok {
		span.RecordError(errTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("submission: %s", errTypeAssertMismatch))
		return response.InternalServerError
	}
	span.SetAttributes(attribute.String("submissionID", loaded.ID.String()))

	// subscribe before reading the snapshot so no change falls between the two
	updates, cancel, err := h.broker.Subscribe(ctx, loaded.ID.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to subscribe")
		return response.InternalServerError
	}
	defer cancel()

	snapshot, err := h.service.Get(ctx, loaded.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load snapshot")
		return response.InternalServerError
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upgrade connection")
		return nil
	}
	defer conn.Close()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	// the client only ever closes, reading notices that
	go func() {
		defer stop()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	current := snapshot.ToSummary()
	for {
		if err := send(conn, current); err != nil {
			logger.Logger.DebugContext(ctx, "watcher went away", "submissionID", current.ID, "error", err)
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "watcher went away")
			return nil
		}
		span.AddEvent("sent_update", trace.WithAttributes(attribute.String("status", string(current.Status))))

		if current.Status.IsTerminal() {
			closeNormally(conn)
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "sent terminal state")
			return nil
		}

		select {
		case <-ctx.Done():
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "watcher closed")
			return nil
		case update, open := <-updates:
			if !open {
				span.RecordError(nil)
				span.SetStatus(codes.Ok, "subscription ended")
				closeNormally(conn)
				return nil
			}
			current = update
		}
	}
}

func send(conn *websocket.Conn, submission types.Submission) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(submission)
}

func closeNormally(conn *websocket.Conn) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "submission finished"),
		time.Now().Add(writeWait),
	)
}
