package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stagepay/pkg/metrics"
)

// ReplaySource is the part of Repository used by admin replays.
type ReplaySource interface {
	GetEventByID(ctx context.Context, eventID int64) (*Event, error)
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	MarkAsSent(ctx context.Context, eventID int64) error
	MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error
}

// ReplayService 提供重放 Outbox 事件的服务
type ReplayService struct {
	repo       ReplaySource
	publisher  Publisher
	logger     *zap.Logger
	maxRetries int
}

func NewReplayService(repo ReplaySource, publisher Publisher, logger *zap.Logger) *ReplayService {
	return &ReplayService{
		repo:       repo,
		publisher:  publisher,
		logger:     logger,
		maxRetries: 5,
	}
}

// WithMaxRetries keeps replays on the dispatcher's retry budget.
func (s *ReplayService) WithMaxRetries(maxRetries int) *ReplayService {
	if maxRetries > 0 {
		s.maxRetries = maxRetries
	}
	return s
}

// ReplayEvent 重放指定的事件（sent 事件也可以重放，消费端按 event_id 去重）
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	event, err := s.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}

	ctx = extractTraceID(ctx, event.Payload)
	if err := s.publisher.PublishWithContext(ctx, event.RoutingKey, event.Payload); err != nil {
		metrics.IncrementOutboxPublish("replay_error")
		if markErr := s.repo.MarkAsFailed(ctx, eventID, s.maxRetries); markErr != nil {
			return fmt.Errorf("failed to publish and mark as failed: %w (mark error: %v)", err, markErr)
		}
		return fmt.Errorf("failed to publish: %w", err)
	}

	if err := s.repo.MarkAsSent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to mark as sent: %w", err)
	}
	metrics.IncrementOutboxPublish("replayed")
	s.logger.Info("Outbox event replayed",
		zap.Int64("event_id", eventID),
		zap.String("aggregate_type", event.AggregateType),
		zap.String("routing_key", event.RoutingKey),
	)
	return nil
}

// ReplayFailedEvents 重放失败的事件，返回成功数量
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	events, err := s.repo.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	successCount := 0
	for _, event := range events {
		if err := s.ReplayEvent(ctx, event.ID); err != nil {
			s.logger.Warn("Replay failed", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		successCount++
	}
	return successCount, nil
}
