package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stagepay/pkg/trace"
)

type fakeSource struct {
	pending []*Event
	sent    []int64
	failed  []int64
}

func (f *fakeSource) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeSource) MarkAsSent(_ context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeSource) MarkAsFailed(_ context.Context, id int64, _ int) error {
	f.failed = append(f.failed, id)
	return nil
}

type published struct {
	key     string
	traceID string
}

type fakePublisher struct {
	failKey string
	out     []published
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, key string, _ any) error {
	if key == p.failKey {
		return errors.New("broker down")
	}
	p.out = append(p.out, published{key: key, traceID: trace.FromContext(ctx)})
	return nil
}

func TestDispatcher_PublishesAndMarks(t *testing.T) {
	payload, err := json.Marshal(map[string]string{"trace_id": "t-1"})
	require.NoError(t, err)

	src := &fakeSource{pending: []*Event{
		{ID: 1, RoutingKey: "project.7", Payload: payload},
		{ID: 2, RoutingKey: "broken", Payload: json.RawMessage(`{}`)},
		{ID: 3, RoutingKey: "project.7", Payload: json.RawMessage(`not json`)},
	}}
	pub := &fakePublisher{failKey: "broken"}

	NewDispatcher(src, pub, zap.NewNop()).ProcessPendingEvents(context.Background())

	assert.Equal(t, []int64{1}, src.sent)
	assert.ElementsMatch(t, []int64{2, 3}, src.failed)
	require.Len(t, pub.out, 1)
	assert.Equal(t, "t-1", pub.out[0].traceID)
}

func TestNextAttempt_BacksOffThenFails(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	status, next := nextAttempt(2, 5, now)
	assert.Equal(t, StatusPending, status)
	require.NotNil(t, next)
	assert.Equal(t, now.Add(10*time.Second), *next)

	status, next = nextAttempt(5, 5, now)
	assert.Equal(t, StatusFailed, status)
	assert.Nil(t, next)
}
