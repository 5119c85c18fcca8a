package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stagepay/internal/service/access"
	"stagepay/internal/service/admin"
	"stagepay/pkg/rbac"
)

// OutboxReplayer re-publishes outbox events; *outbox.ReplayService satisfies it.
type OutboxReplayer interface {
	ReplayEvent(ctx context.Context, eventID int64) error
	ReplayFailedEvents(ctx context.Context, limit int) (int, error)
}

type AdminHandler struct {
	admin         *admin.Service
	replayService OutboxReplayer
	logger        *zap.Logger
}

func NewAdminHandler(admin *admin.Service, replayService OutboxReplayer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		admin:         admin,
		replayService: replayService,
		logger:        logger,
	}
}

// ActivateProject handles POST /admin/projects/:id/activate
func (h *AdminHandler) ActivateProject(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.admin.Activate(c.Request.Context(), actorFrom(c), projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeactivateProject handles POST /admin/projects/:id/deactivate
func (h *AdminHandler) DeactivateProject(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.admin.Deactivate(c.Request.Context(), actorFrom(c), projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ReplayOutboxEvent 重放指定的 Outbox 事件
// POST /admin/outbox/replay?id=xxx
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	if err := access.Require(actorFrom(c), rbac.PermissionReplayOutbox); err != nil {
		respondError(c, h.logger, err)
		return
	}

	eventID, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil || eventID <= 0 {
		badRequest(c, "invalid id parameter")
		return
	}

	if err := h.replayService.ReplayEvent(c.Request.Context(), eventID); err != nil {
		h.logger.Error("Failed to replay event",
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "failed to replay event", Code: "internal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "replayed",
		"event_id": eventID,
	})
}

// ReplayFailedEvents 重放所有失败的事件
// POST /admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	if err := access.Require(actorFrom(c), rbac.PermissionReplayOutbox); err != nil {
		respondError(c, h.logger, err)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	successCount, err := h.replayService.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to replay failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody{Error: "failed to replay failed events", Code: "internal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "completed",
		"success_count": successCount,
		"limit":         limit,
	})
}
