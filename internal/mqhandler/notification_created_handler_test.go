package mqhandler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "stagepay/contracts/mq"
	"stagepay/internal/model"
)

type fakeInbox struct {
	stored map[string]*model.Notification
	err    error
}

func newInbox() *fakeInbox {
	return &fakeInbox{stored: map[string]*model.Notification{}}
}

func (f *fakeInbox) Insert(_ context.Context, n *model.Notification) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.stored[n.EventID]; ok {
		return false, nil
	}
	f.stored[n.EventID] = n
	return true, nil
}

func encode(t *testing.T, p mqcontracts.NotificationCreatedPayload) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return b
}

func TestHandle_StoresUserNotification(t *testing.T) {
	inbox := newInbox()
	h := NewNotificationCreatedHandler(inbox, nil, zap.NewNop())
	userID := int64(7)

	err := h.Handle(context.Background(), encode(t, mqcontracts.NotificationCreatedPayload{
		EventID:   "evt-1",
		UserID:    &userID,
		Type:      "stage_updated",
		Title:     "Stage started",
		Message:   "Framing is in progress",
		Data:      map[string]any{"project_id": float64(3)},
		CreatedAt: time.Now(),
	}))
	require.NoError(t, err)

	n := inbox.stored["evt-1"]
	require.NotNil(t, n)
	assert.Equal(t, userID, *n.UserID)
	assert.Nil(t, n.Role)
	assert.Equal(t, "stage_updated", n.Type)
	assert.Equal(t, float64(3), n.Data["project_id"])
}

func TestHandle_RoleNotificationAndRedelivery(t *testing.T) {
	inbox := newInbox()
	h := NewNotificationCreatedHandler(inbox, nil, zap.NewNop())
	raw := encode(t, mqcontracts.NotificationCreatedPayload{
		EventID: "evt-2",
		Role:    string(model.RoleAdmin),
		Type:    "manual_payment_declared",
	})

	require.NoError(t, h.Handle(context.Background(), raw))
	require.NoError(t, h.Handle(context.Background(), raw))

	require.Len(t, inbox.stored, 1)
	assert.Equal(t, "admin", *inbox.stored["evt-2"].Role)
}

func TestHandle_AcksMalformedAndUnaddressed(t *testing.T) {
	inbox := newInbox()
	h := NewNotificationCreatedHandler(inbox, nil, zap.NewNop())

	assert.NoError(t, h.Handle(context.Background(), json.RawMessage(`{not json`)))
	assert.NoError(t, h.Handle(context.Background(), encode(t, mqcontracts.NotificationCreatedPayload{
		EventID: "evt-3",
		Type:    "stage_updated",
	})))
	assert.Empty(t, inbox.stored)
}

func TestHandle_RetryableErrorIsReturned(t *testing.T) {
	inbox := newInbox()
	inbox.err = context.DeadlineExceeded
	h := NewNotificationCreatedHandler(inbox, nil, zap.NewNop())
	userID := int64(1)

	err := h.Handle(context.Background(), encode(t, mqcontracts.NotificationCreatedPayload{
		EventID: "evt-4",
		UserID:  &userID,
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandle_ConstraintViolationIsDropped(t *testing.T) {
	inbox := newInbox()
	inbox.err = &pgconn.PgError{Code: "23514", Message: "check violation"}
	h := NewNotificationCreatedHandler(inbox, nil, zap.NewNop())
	userID := int64(1)

	err := h.Handle(context.Background(), encode(t, mqcontracts.NotificationCreatedPayload{
		EventID: "evt-5",
		UserID:  &userID,
	}))
	assert.NoError(t, err)
}
