package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	cleanupUC "github.com/fastygo/taskboard/usecase/cleanup"
)

type CleanupHandler struct {
	baseHandler
	uc *cleanupUC.UseCase
}

func NewCleanupHandler(uc *cleanupUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *CleanupHandler {
	return &CleanupHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Repair the caller's dangling friend and collaborator references
// @Tags cleanup
// @Router /api/v1/cleanup [post]
func (h *CleanupHandler) Run(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	report, err := h.uc.CleanupUserData(stdCtx, userID)
	if err != nil {
		// partial runs still report what they removed
		status, code := mapError(err)
		h.respondJSON(ctx, status, transport.NewError(code, err.Error(), report))
		return
	}
	h.respondSuccess(ctx, http.StatusOK, report)
}
