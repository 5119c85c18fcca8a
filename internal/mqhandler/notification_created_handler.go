package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "stagepay/contracts/mq"
	"stagepay/internal/model"
	"stagepay/pkg/metrics"
	"stagepay/pkg/util"
)

const notificationHandlerName = "notification_created"

// Inbox stores delivered notifications; Insert reports false for a duplicate event id.
type Inbox interface {
	Insert(ctx context.Context, n *model.Notification) (bool, error)
}

type NotificationCreatedHandler struct {
	inbox   Inbox
	deduper *util.Deduper
	logger  *zap.Logger
}

func NewNotificationCreatedHandler(inbox Inbox, deduper *util.Deduper, logger *zap.Logger) *NotificationCreatedHandler {
	return &NotificationCreatedHandler{
		inbox:   inbox,
		deduper: deduper,
		logger:  logger,
	}
}

// Handle 返回 nil 表示 ack；只有可重试的错误才返回，让 consumer 重新投递或进入 DLQ
func (h *NotificationCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.NotificationCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal NotificationCreatedPayload", zap.Error(err))
		metrics.IncrementMQError(mqcontracts.RoutingKeyNotificationCreated, "json_decode_error")
		return nil
	}
	if p.EventID == "" || (p.UserID == nil && p.Role == "") {
		h.logger.Warn("Dropping notification without event id or recipient",
			zap.String("event_id", p.EventID),
			zap.String("type", p.Type),
		)
		return nil
	}

	if !h.deduper.AcquireOnce(ctx, notificationHandlerName, p.EventID) {
		return nil
	}

	n := &model.Notification{
		EventID: p.EventID,
		UserID:  p.UserID,
		Type:    p.Type,
		Title:   p.Title,
		Message: p.Message,
		Data:    p.Data,
	}
	if p.Role != "" {
		role := p.Role
		n.Role = &role
	}

	inserted, err := h.inbox.Insert(ctx, n)
	if err != nil {
		retryable, errType := util.IsRetryableError(err)
		metrics.IncrementMQError(mqcontracts.RoutingKeyNotificationCreated, errType)
		if !retryable {
			h.logger.Error("Dropping notification after non-retryable error",
				zap.String("event_id", p.EventID),
				zap.String("error_type", errType),
				zap.Error(err),
			)
			return nil
		}
		h.deduper.Forget(ctx, notificationHandlerName, p.EventID)
		return fmt.Errorf("store notification %s: %w", p.EventID, err)
	}

	h.logger.Info("Notification stored",
		zap.String("event_id", p.EventID),
		zap.String("type", p.Type),
		zap.Bool("duplicate", !inserted),
	)
	return nil
}
