package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReplaySource struct {
	events     map[int64]*Event
	sent       []int64
	failed     []int64
	maxRetries int
}

func (f *fakeReplaySource) GetEventByID(_ context.Context, id int64) (*Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return ev, nil
}

func (f *fakeReplaySource) GetFailedEvents(_ context.Context, _ int) ([]*Event, error) {
	var out []*Event
	for _, ev := range f.events {
		if ev.Status == StatusFailed {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeReplaySource) MarkAsSent(_ context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeReplaySource) MarkAsFailed(_ context.Context, id int64, maxRetries int) error {
	f.failed = append(f.failed, id)
	f.maxRetries = maxRetries
	return nil
}

func TestReplayService(t *testing.T) {
	src := &fakeReplaySource{events: map[int64]*Event{
		1: {ID: 1, RoutingKey: "project.1", Payload: []byte(`{"trace_id":"t-9"}`), Status: StatusFailed},
		2: {ID: 2, RoutingKey: "project.2", Payload: []byte(`{}`), Status: StatusFailed},
		3: {ID: 3, RoutingKey: "project.3", Payload: []byte(`{}`), Status: StatusSent},
	}}
	pub := &fakePublisher{failKey: "project.2"}
	svc := NewReplayService(src, pub, zap.NewNop()).WithMaxRetries(8)

	n, err := svc.ReplayFailedEvents(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, src.sent)
	assert.Equal(t, []int64{2}, src.failed)
	assert.Equal(t, 8, src.maxRetries)
	require.Len(t, pub.out, 1)
	assert.Equal(t, "t-9", pub.out[0].traceID)

	require.NoError(t, svc.ReplayEvent(context.Background(), 3))
	assert.Error(t, svc.ReplayEvent(context.Background(), 99))
}
