package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	friendUC "github.com/fastygo/taskboard/usecase/friend"
	notifyUC "github.com/fastygo/taskboard/usecase/notify"
)

type FriendHandler struct {
	baseHandler
	uc *friendUC.UseCase
}

func NewFriendHandler(uc *friendUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *FriendHandler {
	return &FriendHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List friends
// @Tags friends
// @Router /api/v1/friends [get]
func (h *FriendHandler) List(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	friends, err := h.uc.ListFriends(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if friends == nil {
		friends = []domain.User{}
	}
	h.respondSuccess(ctx, http.StatusOK, friends)
}

// @Summary Send a friend request by email or user id
// @Tags friends
// @Router /api/v1/friends/requests [post]
func (h *FriendHandler) Send(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	var req transport.FriendRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	var (
		outcome friendUC.Outcome
		err     error
	)
	if req.UserID != "" {
		outcome, err = h.uc.SendFriendRequestByID(stdCtx, userID, req.UserID)
	} else {
		outcome, err = h.uc.SendFriendRequest(stdCtx, userID, req.Email)
	}
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, map[string]string{"outcome": string(outcome)})
}

// @Summary List pending requests addressed to the caller
// @Tags friends
// @Router /api/v1/friends/requests [get]
func (h *FriendHandler) Pending(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	requests, err := h.uc.ListPendingRequests(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if requests == nil {
		requests = []domain.FriendRequest{}
	}
	h.respondSuccess(ctx, http.StatusOK, requests)
}

// @Summary Accept a friend request
// @Tags friends
// @Router /api/v1/friends/requests/{id}/accept [post]
func (h *FriendHandler) Accept(ctx *fasthttp.RequestCtx) {
	h.resolve(ctx, h.uc.AcceptFriendRequest)
}

// @Summary Reject a friend request
// @Tags friends
// @Router /api/v1/friends/requests/{id}/reject [post]
func (h *FriendHandler) Reject(ctx *fasthttp.RequestCtx) {
	h.resolve(ctx, h.uc.RejectFriendRequest)
}

// @Summary Remove a friend in both directions
// @Tags friends
// @Router /api/v1/friends/{id} [delete]
func (h *FriendHandler) Remove(ctx *fasthttp.RequestCtx) {
	h.resolve(ctx, h.uc.RemoveFriend)
}

func (h *FriendHandler) resolve(ctx *fasthttp.RequestCtx, fn func(ctx context.Context, userID, id string) error) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := fn(stdCtx, userID, pathParam(ctx, "id")); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

type NotificationHandler struct {
	baseHandler
	uc *notifyUC.UseCase
}

func NewNotificationHandler(uc *notifyUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List notifications, newest first
// @Tags notifications
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) List(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	items, err := h.uc.List(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	if items == nil {
		items = []domain.Notification{}
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(items, transport.ListMeta{Count: len(items), Unread: &unread}))
}

// @Summary Mark a notification read
// @Tags notifications
// @Router /api/v1/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.MarkRead(stdCtx, userID, pathParam(ctx, "id")); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

// @Summary Delete a notification
// @Tags notifications
// @Router /api/v1/notifications/{id} [delete]
func (h *NotificationHandler) Delete(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Delete(stdCtx, userID, pathParam(ctx, "id")); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}
