// Package notify delivers best-effort in-app notifications over the event bus.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stagepay/contracts/mq"
	"stagepay/internal/model"
	"stagepay/pkg/logger"
	"stagepay/pkg/trace"
)

type Message struct {
	Type    string
	Title   string
	Message string
	Data    map[string]any
}

// Notifier never fails the caller; delivery errors are logged.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, msg Message)
	NotifyUsers(ctx context.Context, userIDs []int64, msg Message)
	NotifyRole(ctx context.Context, role model.Role, msg Message)
}

type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// publishTimeout bounds one publish; a slow broker must not hold the request.
const publishTimeout = 3 * time.Second

// Dispatcher publishes notification.created events; the worker stores them in the inbox.
type Dispatcher struct {
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
	timeout   time.Duration
}

func NewDispatcher(publisher Publisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		timeout:   publishTimeout,
	}
}

func (d *Dispatcher) NotifyUser(ctx context.Context, userID int64, msg Message) {
	id := userID
	d.publish(ctx, mq.NotificationCreatedPayload{UserID: &id}, msg)
}

// NotifyUsers skips zero ids and duplicates.
func (d *Dispatcher) NotifyUsers(ctx context.Context, userIDs []int64, msg Message) {
	seen := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		d.NotifyUser(ctx, id, msg)
	}
}

func (d *Dispatcher) NotifyRole(ctx context.Context, role model.Role, msg Message) {
	d.publish(ctx, mq.NotificationCreatedPayload{Role: string(role)}, msg)
}

func (d *Dispatcher) publish(ctx context.Context, payload mq.NotificationCreatedPayload, msg Message) {
	payload.EventID = uuid.NewString()
	payload.Type = msg.Type
	payload.Title = msg.Title
	payload.Message = msg.Message
	payload.Data = msg.Data
	payload.TraceID = trace.FromContext(ctx)
	payload.CreatedAt = d.now()

	log := logger.WithTrace(ctx, d.logger)

	// 请求结束或客户端断开都不应该丢掉已经提交的状态变更的通知
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := d.publisher.PublishWithContext(pubCtx, mq.RoutingKeyNotificationCreated, payload); err != nil {
		log.Warn("Failed to publish notification",
			zap.String("type", msg.Type),
			zap.Int64p("user_id", payload.UserID),
			zap.String("role", payload.Role),
			zap.Error(err),
		)
		return
	}
	log.Debug("Notification published",
		zap.String("event_id", payload.EventID),
		zap.String("type", msg.Type),
	)
}
