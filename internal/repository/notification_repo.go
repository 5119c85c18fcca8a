package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stagepay/internal/model"
	"stagepay/pkg/db"
)

// NotificationRepository is the in-app inbox written by the worker.
type NotificationRepository struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewNotificationRepository(conn db.DBTX, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     conn,
		logger: logger,
	}
}

// Insert stores n once per event id; a redelivered event reports false.
func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO notifications (event_id, user_id, role, type, title, message, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
	`, n.EventID, n.UserID, n.Role, n.Type, n.Title, n.Message, n.Data)
	if err != nil {
		r.logger.Error("Failed to store notification",
			zap.String("event_id", n.EventID),
			zap.Error(err),
		)
		return false, fmt.Errorf("insert notification %s: %w", n.EventID, err)
	}
	return tag.RowsAffected() > 0, nil
}
