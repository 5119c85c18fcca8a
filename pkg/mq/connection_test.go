package mq

import (
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnection_GivesUpAfterRetries(t *testing.T) {
	origDial, origBackoff := dial, dialBackoff
	t.Cleanup(func() { dial, dialBackoff = origDial, origBackoff })

	calls := 0
	refused := errors.New("connection refused")
	dialBackoff = time.Millisecond
	dial = func(string) (*amqp091.Connection, error) {
		calls++
		return nil, refused
	}

	conn, err := NewConnection("amqp://localhost:5672/")
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, dialAttempts, calls)
}

func TestNewConnection_ReturnsFirstSuccess(t *testing.T) {
	origDial, origBackoff := dial, dialBackoff
	t.Cleanup(func() { dial, dialBackoff = origDial, origBackoff })

	calls := 0
	want := &amqp091.Connection{}
	dialBackoff = time.Millisecond
	dial = func(string) (*amqp091.Connection, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("not ready")
		}
		return want, nil
	}

	conn, err := NewConnection("amqp://localhost:5672/")
	require.NoError(t, err)
	assert.Same(t, want, conn)
	assert.Equal(t, 3, calls)
}
