package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	"github.com/fastygo/taskboard/usecase"
	finalizeUC "github.com/fastygo/taskboard/usecase/finalize"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

const streamHeartbeat = 15 * time.Second

type TaskHandler struct {
	baseHandler
	uc       *taskUC.UseCase
	finalize *finalizeUC.UseCase
	friends  usecase.FriendSource
}

func NewTaskHandler(
	uc *taskUC.UseCase,
	finalize *finalizeUC.UseCase,
	friends usecase.FriendSource,
	adapter *httpcontext.Adapter,
	logger *zap.Logger,
) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		finalize:    finalize,
		friends:     friends,
	}
}

// @Summary List own tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) ListOwn(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListOwnTasks(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, nonNil(tasks), len(tasks))
}

// @Summary List tasks friends shared with the caller
// @Tags tasks
// @Router /api/v1/tasks/shared [get]
func (h *TaskHandler) ListShared(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	friendIDs, err := h.friends.Friends(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	tasks, err := h.uc.ListSharedTasks(stdCtx, userID, friendIDs)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, nonNil(tasks), len(tasks))
}

// @Summary Stream the merged shared-task payload
// @Description Server-Sent Events; every event carries the full list.
// @Tags tasks
// @Router /api/v1/tasks/shared/stream [get]
func (h *TaskHandler) StreamShared(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	updates := make(chan []domain.Task, 1)
	push := func(tasks []domain.Task) {
		for {
			select {
			case updates <- tasks:
				return
			default:
			}
			// keep only the newest payload
			select {
			case <-updates:
			default:
			}
		}
	}

	stdCtx, cancel := h.requestContext(ctx)
	watch, err := h.uc.WatchSharedTasks(stdCtx, userID, h.friends, push)
	cancel()
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.Response.Header.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.SetStatusCode(http.StatusOK)

	logger := h.logger.With(zap.String("user_id", userID))
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer watch.Unsubscribe()
		logger.Debug("shared task stream opened")

		ticker := time.NewTicker(streamHeartbeat)
		defer ticker.Stop()
		for {
			select {
			case tasks := <-updates:
				if err := writeEvent(w, "shared-tasks", nonNil(tasks)); err != nil {
					logger.Debug("shared task stream closed", zap.Error(err))
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					logger.Debug("shared task stream closed", zap.Error(err))
					return
				}
			}
		}
	})
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) Create(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	var req transport.TaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	draft := taskUC.Draft{
		Name:        req.Name,
		Description: req.Description,
		Difficulty:  req.Difficulty,
		Workload:    req.Workload,
		Risk:        req.Risk,
		Subtasks:    req.Subtasks,
	}
	if req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			h.respondInvalid(ctx, "due_date must be RFC3339")
			return
		}
		draft.DueDate = &due
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.CreateTask(stdCtx, userID, draft)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Get a task the caller owns or collaborates on
// @Tags tasks
// @Router /api/v1/tasks/{owner}/{id} [get]
func (h *TaskHandler) Get(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, userID, pathParam(ctx, "owner"), pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Toggle a subtask
// @Tags tasks
// @Router /api/v1/tasks/{owner}/{id}/subtasks/{index}/toggle [post]
func (h *TaskHandler) ToggleSubtask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	index, err := strconv.Atoi(pathParam(ctx, "index"))
	if err != nil {
		h.respondInvalid(ctx, "invalid subtask index")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.ToggleSubtask(stdCtx, userID, pathParam(ctx, "owner"), pathParam(ctx, "id"), index)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Toggle task completion
// @Tags tasks
// @Router /api/v1/tasks/{owner}/{id}/complete [post]
func (h *TaskHandler) ToggleComplete(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.ToggleTaskComplete(stdCtx, userID, pathParam(ctx, "owner"), pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Finalize a completed task and distribute points
// @Tags tasks
// @Router /api/v1/tasks/{owner}/{id}/finalize [post]
func (h *TaskHandler) Finalize(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" || !h.ownerOnly(ctx, userID) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.finalize.FinalizeTask(stdCtx, userID, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{owner}/{id} [delete]
func (h *TaskHandler) Delete(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteTask(stdCtx, userID, pathParam(ctx, "owner"), pathParam(ctx, "id")); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

func writeEvent(w *bufio.Writer, event string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body); err != nil {
		return err
	}
	return w.Flush()
}

func nonNil(tasks []domain.Task) []domain.Task {
	if tasks == nil {
		return []domain.Task{}
	}
	return tasks
}

