package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stagepay/contracts/mq"
	"stagepay/internal/model"
	"stagepay/pkg/trace"
)

type capturePublisher struct {
	keys      []string
	payloads  []mq.NotificationCreatedPayload
	ctxErrs   []error
	deadlines []time.Time
	err       error
}

func (c *capturePublisher) PublishWithContext(ctx context.Context, key string, payload any) error {
	deadline, _ := ctx.Deadline()
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	c.deadlines = append(c.deadlines, deadline)
	if c.err != nil {
		return c.err
	}
	c.keys = append(c.keys, key)
	c.payloads = append(c.payloads, payload.(mq.NotificationCreatedPayload))
	return nil
}

func TestNotifyUsers_DeduplicatesAndSkipsZero(t *testing.T) {
	pub := &capturePublisher{}
	d := NewDispatcher(pub, zap.NewNop())

	ctx := trace.WithContext(context.Background(), "trace-1")
	d.NotifyUsers(ctx, []int64{7, 0, 7, 9}, Message{Type: "stage_updated", Title: "t"})

	require.Len(t, pub.payloads, 2)
	assert.Equal(t, int64(7), *pub.payloads[0].UserID)
	assert.Equal(t, int64(9), *pub.payloads[1].UserID)
	assert.Equal(t, mq.RoutingKeyNotificationCreated, pub.keys[0])
	assert.Equal(t, "trace-1", pub.payloads[0].TraceID)
	assert.NotEqual(t, pub.payloads[0].EventID, pub.payloads[1].EventID)
}

func TestNotifyRole(t *testing.T) {
	pub := &capturePublisher{}
	NewDispatcher(pub, zap.NewNop()).NotifyRole(context.Background(), model.RoleAdmin, Message{Type: "manual_payment_declared"})

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "admin", pub.payloads[0].Role)
	assert.Nil(t, pub.payloads[0].UserID)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	assert.NotPanics(t, func() {
		NewDispatcher(pub, zap.NewNop()).NotifyUser(context.Background(), 1, Message{Type: "x"})
	})
}

func TestPublishOutlivesCanceledRequest(t *testing.T) {
	pub := &capturePublisher{}
	d := NewDispatcher(pub, zap.NewNop())
	d.timeout = time.Second

	ctx, cancel := context.WithCancel(trace.WithContext(context.Background(), "trace-2"))
	cancel()
	d.NotifyUser(ctx, 4, Message{Type: "stage_updated"})

	require.Len(t, pub.payloads, 1)
	assert.NoError(t, pub.ctxErrs[0])
	require.False(t, pub.deadlines[0].IsZero())
	assert.WithinDuration(t, time.Now().Add(time.Second), pub.deadlines[0], time.Second)
	assert.Equal(t, "trace-2", pub.payloads[0].TraceID)
}
