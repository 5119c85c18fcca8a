package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("stage", 42, "project.7", map[string]any{"stage_id": 42, "status": "in_progress"})
	require.NoError(t, err)

	assert.Equal(t, "stage", ev.AggregateType)
	require.NotNil(t, ev.AggregateID)
	assert.Equal(t, int64(42), *ev.AggregateID)
	assert.Equal(t, StatusPending, ev.Status)
	assert.JSONEq(t, `{"stage_id":42,"status":"in_progress"}`, string(ev.Payload))
}

func TestNewEvent_Rejects(t *testing.T) {
	_, err := NewEvent("stage", 1, "", struct{}{})
	assert.ErrorIs(t, err, ErrMissingRoutingKey)

	_, err = NewEvent("stage", 1, "project.1", map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}
