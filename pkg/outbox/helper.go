package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"stagepay/pkg/db"
)

var ErrMissingRoutingKey = errors.New("outbox: routing key is required")

// NewEvent encodes payload into a pending event.
func NewEvent(aggregateType string, aggregateID int64, routingKey string, payload any) (*Event, error) {
	if routingKey == "" {
		return nil, ErrMissingRoutingKey
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s %d event: %w", aggregateType, aggregateID, err)
	}

	id := aggregateID
	return &Event{
		AggregateType: aggregateType,
		AggregateID:   &id,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	}, nil
}

// InsertEventInTx 在业务事务中写入 outbox 事件，与业务数据一起提交
func InsertEventInTx(ctx context.Context, tx db.DBTX, repo *Repository, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	event, err := NewEvent(aggregateType, aggregateID, routingKey, payload)
	if err != nil {
		return err
	}
	return repo.InsertEvent(ctx, tx, event)
}
