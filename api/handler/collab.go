package handler

import (
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	collabUC "github.com/fastygo/taskboard/usecase/collab"
)

type CollabHandler struct {
	baseHandler
	uc *collabUC.UseCase
}

func NewCollabHandler(uc *collabUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *CollabHandler {
	return &CollabHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Share a task with friends
// @Tags collaboration
// @Router /api/v1/tasks/{owner}/{id}/share [post]
func (h *CollabHandler) Share(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" || !h.ownerOnly(ctx, userID) {
		return
	}
	var req transport.ShareRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.ShareTask(stdCtx, userID, pathParam(ctx, "id"), req.FriendIDs)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Stop sharing a task with a friend
// @Tags collaboration
// @Router /api/v1/tasks/{owner}/{id}/share/{friend} [delete]
func (h *CollabHandler) Unshare(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" || !h.ownerOnly(ctx, userID) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.UnshareTask(stdCtx, userID, pathParam(ctx, "id"), pathParam(ctx, "friend"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Set a subtask on a shared task
// @Tags collaboration
// @Router /api/v1/tasks/{owner}/{id}/subtasks/{index} [put]
func (h *CollabHandler) UpdateSubtask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	index, err := strconv.Atoi(pathParam(ctx, "index"))
	if err != nil {
		h.respondInvalid(ctx, "invalid subtask index")
		return
	}
	var req transport.SubtaskRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.UpdateSharedSubtask(stdCtx, userID, pathParam(ctx, "owner"), pathParam(ctx, "id"), index, req.Completed)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Comment on a task
// @Tags collaboration
// @Router /api/v1/tasks/{owner}/{id}/comments [post]
func (h *CollabHandler) AddComment(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	var req transport.CommentRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	comment, err := h.uc.AddComment(stdCtx, userID, pathParam(ctx, "owner"), pathParam(ctx, "id"), req.Text)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, comment)
}

// @Summary Edit own comment
// @Tags collaboration
// @Router /api/v1/tasks/{owner}/{id}/comments/{comment} [put]
func (h *CollabHandler) EditComment(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	var req transport.CommentRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	comment, err := h.uc.EditComment(stdCtx, userID, pathParam(ctx, "owner"), pathParam(ctx, "id"), commentRef(ctx, req.Index), req.Text)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, comment)
}

// @Summary Delete a comment (author or task owner)
// @Tags collaboration
// @Router /api/v1/tasks/{owner}/{id}/comments/{comment} [delete]
func (h *CollabHandler) DeleteComment(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	var index *int
	if raw := ctx.QueryArgs().Peek("index"); len(raw) > 0 {
		if v, err := strconv.Atoi(string(raw)); err == nil {
			index = &v
		}
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteComment(stdCtx, userID, pathParam(ctx, "owner"), pathParam(ctx, "id"), commentRef(ctx, index)); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

func commentRef(ctx *fasthttp.RequestCtx, index *int) collabUC.CommentRef {
	ref := collabUC.CommentRef{ID: pathParam(ctx, "comment"), Index: -1}
	// "_" addresses legacy comments without an id by their index
	if ref.ID == "_" {
		ref.ID = ""
	}
	if index != nil {
		ref.Index = *index
	}
	return ref
}
