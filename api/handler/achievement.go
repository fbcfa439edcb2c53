package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/pkg/httpcontext"
	achievementUC "github.com/fastygo/taskboard/usecase/achievement"
)

type AchievementHandler struct {
	baseHandler
	uc *achievementUC.UseCase
}

func NewAchievementHandler(uc *achievementUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AchievementHandler {
	return &AchievementHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Achievement catalog with the caller's unlocks
// @Tags achievements
// @Router /api/v1/achievements [get]
func (h *AchievementHandler) List(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	items, err := h.uc.ListAchievements(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, items)
}

// @Summary Unlocks not yet shown to the caller
// @Tags achievements
// @Router /api/v1/achievements/unnotified [get]
func (h *AchievementHandler) Unnotified(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	items, err := h.uc.GetUnnotifiedAchievements(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, items)
}

// @Summary Mark an unlock as shown
// @Tags achievements
// @Router /api/v1/achievements/{id}/notified [post]
func (h *AchievementHandler) MarkNotified(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.MarkAchievementAsNotified(stdCtx, userID, pathParam(ctx, "id")); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

// @Summary Points, level and stats
// @Tags achievements
// @Router /api/v1/progress [get]
func (h *AchievementHandler) Progress(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	progress, err := h.uc.GetProgress(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, progress)
}

// @Summary Points ledger, newest first
// @Tags achievements
// @Param limit query int false "max entries"
// @Router /api/v1/progress/history [get]
func (h *AchievementHandler) History(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	limit := parseInt(string(ctx.QueryArgs().Peek("limit")), 50)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	entries, err := h.uc.History(stdCtx, userID, limit)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, entries)
}
